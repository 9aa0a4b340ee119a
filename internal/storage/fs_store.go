package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FSStore is a filesystem-based implementation of EntryStore.
// Each URL maps to one JSON document:
//
//	<cache>/
//	  sources/
//	    <sha256(url)>.json
type FSStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFSStore creates a new filesystem-based entry store.
func NewFSStore(basePath string) (*FSStore, error) {
	dir := filepath.Join(basePath, "sources")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}
	return &FSStore{basePath: basePath}, nil
}

// Get reads the entry for url. Unreadable or corrupt files read as a miss.
func (fs *FSStore) Get(ctx context.Context, url string) (*Entry, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	path := fs.entryPath(url)
	// #nosec G304 - path is derived from a hex digest under basePath
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Cache entry unreadable, treating as miss", "path", path, "error", err)
		}
		return nil, ErrNotFound{URL: url}
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil || e.URL != url {
		slog.Warn("Cache entry corrupt, treating as miss", "path", path, "error", err)
		return nil, ErrNotFound{URL: url}
	}
	if err := e.Verify(); err != nil {
		slog.Warn("Cache entry failed verification, treating as miss", "path", path, "error", err)
		return nil, ErrNotFound{URL: url}
	}
	return &e, nil
}

// Put writes the entry to a temporary file and renames it into place.
func (fs *FSStore) Put(ctx context.Context, e *Entry) error {
	if e.SHA256 == "" {
		e.SHA256 = Digest(e.Data)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := fs.entryPath(e.URL)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".entry-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp entry: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp entry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp entry: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace entry: %w", err)
	}
	return nil
}

// Delete removes the entry for url.
func (fs *FSStore) Delete(ctx context.Context, url string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := os.Remove(fs.entryPath(url)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// Close is a no-op for the filesystem store.
func (fs *FSStore) Close() error { return nil }

func (fs *FSStore) entryPath(url string) string {
	return filepath.Join(fs.basePath, "sources", Digest([]byte(url))+".json")
}
