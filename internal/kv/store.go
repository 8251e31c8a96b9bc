// Package kv is the durable key/value storage behind per-session state.
// Values are opaque strings; callers own their encoding.
package kv

import (
	"context"
	"sync"
)

type Store interface {
	// Get reports whether key exists. A missing key is not an error.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Key builds the storage key for a named value owned by a session.
func Key(sessionID, name string) string {
	return "session:" + sessionID + ":" + name
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}
