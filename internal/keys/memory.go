package keys

import (
	"context"
	"fmt"
	"sync"

	"github.com/project-kessel/oidcforge/internal/credentials"
)

// MemoryStore is an in-memory implementation of Store for testing and development.
type MemoryStore struct {
	mu      sync.RWMutex
	keyType KeyType
	keys    map[string]credentials.Key // Current keys by name
	retired []credentials.Key          // Keys replaced by a rotation
}

// NewMemoryStore creates a new in-memory key store
func NewMemoryStore(keyType KeyType) (*MemoryStore, error) {
	if err := keyType.Validate(); err != nil {
		return nil, err
	}
	return &MemoryStore{
		keyType: keyType,
		keys:    make(map[string]credentials.Key),
	}, nil
}

// Load returns the current key for name
func (m *MemoryStore) Load(_ context.Context, name string) (credentials.Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.keys[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}
	return key, nil
}

// Rotate generates a new key for name, retiring the previous one
func (m *MemoryStore) Rotate(_ context.Context, name string) (credentials.Key, error) {
	raw, err := generate(m.keyType)
	if err != nil {
		return nil, err
	}
	key, err := credentials.KeyFromRaw(raw)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.keys[name]; ok {
		m.retired = append(m.retired, existing)
	}
	m.keys[name] = key
	return key, nil
}

// Retired returns the keys replaced by rotations, oldest first
func (m *MemoryStore) Retired() []credentials.Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]credentials.Key(nil), m.retired...)
}
