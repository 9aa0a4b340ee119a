// Package storage persists conditional-fetch cache entries for remote spec sources.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// EntryStore persists one cache entry per source URL.
// Implementations must replace entries atomically so a concurrent reader
// never observes a torn entry.
type EntryStore interface {
	// Get returns the entry stored for url.
	// Returns ErrNotFound if no usable entry exists.
	Get(ctx context.Context, url string) (*Entry, error)

	// Put replaces the entry for e.URL.
	Put(ctx context.Context, e *Entry) error

	// Delete removes the entry for url. Deleting a missing entry is not an error.
	Delete(ctx context.Context, url string) error

	// Close releases any resources held by the store.
	Close() error
}

// Entry is the cached copy of a remote spec plus the validators returned with it.
type Entry struct {
	URL          string `json:"url"`
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	SHA256       string `json:"sha256"`
	Data         []byte `json:"data"`
}

// HasValidator reports whether the entry can drive a conditional request.
func (e *Entry) HasValidator() bool {
	return e != nil && (e.ETag != "" || e.LastModified != "")
}

// Verify checks the stored bytes against the recorded digest.
func (e *Entry) Verify() error {
	if got := Digest(e.Data); got != e.SHA256 {
		return fmt.Errorf("cache entry for %s: digest mismatch (stored %s, computed %s)", e.URL, e.SHA256, got)
	}
	return nil
}

// Digest returns the hex SHA-256 of data.
func Digest(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ErrNotFound is returned when no entry exists for a URL.
type ErrNotFound struct {
	URL string
}

func (e ErrNotFound) Error() string {
	return "cache entry not found: " + e.URL
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// Backend names accepted by Open.
const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open creates the store for backend rooted at dir.
func Open(backend, dir string) (EntryStore, error) {
	switch backend {
	case BackendFS, "":
		return NewFSStore(dir)
	case BackendSQLite:
		return NewSQLiteStore(SQLitePath(dir))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
