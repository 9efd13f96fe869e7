package memory

import (
	"context"
	"sync"

	"github.com/alvmarrod/profile-weaver/internal/storage"
)

// KV holds bucket values in process memory
// Used by the "memory" backend and by tests that don't need persistence
type KV struct {
	values map[string][]byte
	mu     sync.RWMutex
}

// NewKV creates an empty in-memory bucket
func NewKV() *KV {
	return &KV{
		values: make(map[string][]byte),
	}
}

// Get returns a copy of the stored value
func (m *KV) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.values[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy to prevent external modifications
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Put stores a copy of value, replacing any previous one
func (m *KV) Put(ctx context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = stored
	return nil
}

// Delete removes a key; deleting a missing key is not an error
func (m *KV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Len returns the number of keys held
func (m *KV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
