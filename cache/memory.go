package cache

import (
	"context"
	"sync"
)

// compile-time interface check.
var _ KV = (*Memory)(nil)

// Memory is an in-process KV backed by a mutex-guarded map.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory creates an empty in-process KV.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

// Get returns the value for key, or ErrMiss.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}

	// Copy out so callers cannot mutate the cached bytes.
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set stores the value for key.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)

	m.mu.Lock()
	m.entries[key] = v
	m.mu.Unlock()
	return nil
}

// Delete removes any entry for key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of cached entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
