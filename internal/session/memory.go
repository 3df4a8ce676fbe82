package session

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of the Store interface.
// It uses a map for storage and RWMutex for thread-safe concurrent access.
// Suitable for tests and single-instance development runs; production
// deployments share contexts across workers through the RedisStore.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Get retrieves the record for sessionKey, or ErrNotFound.
func (m *MemoryStore) Get(ctx context.Context, sessionKey string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[sessionKey]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Put stores the record under sessionKey, replacing any prior record.
func (m *MemoryStore) Put(ctx context.Context, sessionKey string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.SessionKey = sessionKey
	m.records[sessionKey] = rec
	return nil
}

// Close is a no-op for MemoryStore as there are no resources to release.
func (m *MemoryStore) Close() error {
	return nil
}
