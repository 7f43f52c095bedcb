package storage

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrNotFound is returned when a blob doesn't exist in the store.
// It is os.ErrNotExist, so file-backed stores report it without translation.
var ErrNotFound = os.ErrNotExist

// Store defines the interface for durable blob storage.
// All implementations must be thread-safe for concurrent access.
type Store interface {
	// Get retrieves a blob by name
	// Returns an error satisfying errors.Is(err, ErrNotFound) if it doesn't exist
	Get(ctx context.Context, name string) ([]byte, error)

	// Put stores data under name, replacing any existing blob as a single unit
	// Readers observe either the old or the new content, never a partial write
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob
	// No error if it doesn't exist
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix
	// Order is not guaranteed
	List(ctx context.Context, prefix string) ([]string, error)
}

// IsNotFound reports whether err means the blob does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// MemoryStore implements Store with in-memory storage
// Used by tests and by the "memory" snapshot backend
type MemoryStore struct {
	mu    sync.RWMutex      // Protects concurrent access
	blobs map[string][]byte // Blob storage
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
	}
}

// Get retrieves a blob by name
// Returns a copy of the data to prevent external modification
func (m *MemoryStore) Get(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.blobs[name]
	if !exists {
		return nil, ErrNotFound
	}

	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// Put stores a blob
// Makes a copy of the data to prevent external modification
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = stored
	return nil
}

// Delete removes a blob
// No error if it doesn't exist (idempotent)
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, name)
	return nil
}

// List returns all blob names with the given prefix
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.blobs))
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}
