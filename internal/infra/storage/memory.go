package storage

import (
	"context"
	"sync"
)

// MemoryStore is a non-durable StateStore for dry runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string

	// FailSet, when non-nil, is returned by Set without writing anything.
	FailSet error
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSet != nil {
		return m.FailSet
	}
	for k, v := range entries {
		m.entries[k] = v
	}
	return nil
}

// Snapshot returns a copy of all entries.
func (m *MemoryStore) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}
