package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-process implementation of EntryStore for tests and ephemeral runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	calls   MemoryCalls
}

// MemoryCalls tracks method invocations for test verification.
type MemoryCalls struct {
	Get    int
	Put    int
	Delete int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Get returns a copy of the entry for url.
func (m *MemoryStore) Get(ctx context.Context, url string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Get++

	e, ok := m.entries[url]
	if !ok {
		return nil, ErrNotFound{URL: url}
	}
	e.Data = append([]byte(nil), e.Data...)
	return &e, nil
}

// Put stores a copy of the entry.
func (m *MemoryStore) Put(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Put++

	stored := *e
	stored.Data = append([]byte(nil), e.Data...)
	if stored.SHA256 == "" {
		stored.SHA256 = Digest(stored.Data)
	}
	m.entries[e.URL] = stored
	return nil
}

// Delete removes the entry for url.
func (m *MemoryStore) Delete(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Delete++
	delete(m.entries, url)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Calls returns a snapshot of the invocation counters.
func (m *MemoryStore) Calls() MemoryCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}
