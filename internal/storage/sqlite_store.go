package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLitePath returns the database file used by the sqlite backend under dir.
func SQLitePath(dir string) string {
	return filepath.Join(dir, "sources.db")
}

// SQLiteStore implements EntryStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the cache database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS source_cache (
		url TEXT PRIMARY KEY,
		etag TEXT NOT NULL DEFAULT '',
		last_modified TEXT NOT NULL DEFAULT '',
		sha256 TEXT NOT NULL,
		data BLOB NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get retrieves the entry for url.
func (s *SQLiteStore) Get(ctx context.Context, url string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e Entry
	err := s.db.QueryRowContext(ctx,
		"SELECT url, etag, last_modified, sha256, data FROM source_cache WHERE url = ?", url,
	).Scan(&e.URL, &e.ETag, &e.LastModified, &e.SHA256, &e.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound{URL: url}
	}
	if err != nil {
		return nil, fmt.Errorf("query entry: %w", err)
	}
	if err := e.Verify(); err != nil {
		return nil, ErrNotFound{URL: url}
	}
	return &e, nil
}

// Put upserts the entry inside a single transaction.
func (s *SQLiteStore) Put(ctx context.Context, e *Entry) error {
	if e.SHA256 == "" {
		e.SHA256 = Digest(e.Data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO source_cache (url, etag, last_modified, sha256, data) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			etag = excluded.etag,
			last_modified = excluded.last_modified,
			sha256 = excluded.sha256,
			data = excluded.data`,
		e.URL, e.ETag, e.LastModified, e.SHA256, e.Data,
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entry: %w", err)
	}
	return nil
}

// Delete removes the entry for url.
func (s *SQLiteStore) Delete(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM source_cache WHERE url = ?", url); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
