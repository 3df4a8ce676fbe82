package flagcache

import (
	"context"
	"sync"
)

// MemoryCache is an in-memory implementation of the Cache interface for
// tests and development. It mirrors the RedisCache semantics, including
// ErrFlagNotFound for absent keys.
type MemoryCache struct {
	mu    sync.RWMutex
	flags map[string]FlagDoc
	down  bool
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{flags: make(map[string]FlagDoc)}
}

// GetFlag retrieves one flag document, or ErrFlagNotFound.
func (m *MemoryCache) GetFlag(ctx context.Context, key string) (*FlagDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.down {
		return nil, context.DeadlineExceeded
	}
	doc, ok := m.flags[key]
	if !ok {
		return nil, ErrFlagNotFound
	}
	return &doc, nil
}

// AllFlags retrieves every flag document.
func (m *MemoryCache) AllFlags(ctx context.Context) (map[string]FlagDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.down {
		return nil, context.DeadlineExceeded
	}
	out := make(map[string]FlagDoc, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out, nil
}

// Ping reports whether the cache is "reachable" (see SetDown).
func (m *MemoryCache) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.down {
		return context.DeadlineExceeded
	}
	return nil
}

// PutFlag stores a flag document.
func (m *MemoryCache) PutFlag(ctx context.Context, doc FlagDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags[doc.Key] = doc
	return nil
}

// DeleteFlag removes a flag document. Idempotent.
func (m *MemoryCache) DeleteFlag(ctx context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.flags, key)
}

// SetDown toggles simulated unreachability for failure-path tests.
func (m *MemoryCache) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.down = down
}

// Close is a no-op for MemoryCache.
func (m *MemoryCache) Close() error {
	return nil
}
