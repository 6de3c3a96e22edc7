package storage

import (
	"errors"
	"sync"

	"golang.org/x/exp/slices"
)

// ErrKeyNotFound is returned when a key doesn't exist in the store
var ErrKeyNotFound = errors.New("key not found")

// Entry is a stored value with the write stamp used to order replicas.
// Entries are ordered by Version, then by Origin.
type Entry struct {
	Value   []byte
	Version uint64 // Lamport clock value at the accepting node
	Origin  string // name of the node that accepted the write
}

// Newer reports whether e should replace other.
func (e Entry) Newer(other Entry) bool {
	if e.Version != other.Version {
		return e.Version > other.Version
	}
	return e.Origin > other.Origin
}

// Store defines the interface for a replica's key-value storage.
// All implementations must be thread-safe for concurrent access
type Store interface {
	// Get retrieves a value by key
	// Returns ErrKeyNotFound if the key doesn't exist
	Get(key string) ([]byte, error)

	// Put stores a locally accepted write and returns its stamped entry
	Put(key string, value []byte) Entry

	// Apply stores a replicated entry if it is newer than the current one
	Apply(key string, e Entry) bool

	// Delete removes a key-value pair
	// No error if key doesn't exist
	Delete(key string) error

	// List returns all keys in the store, sorted
	List() []string

	// Stats returns storage statistics
	Stats() StoreStats
}

// StoreStats contains statistics about the store
type StoreStats struct {
	Keys  int `json:"keys"`  // Number of keys
	Bytes int `json:"bytes"` // Total size of all values in bytes
}

// MemoryStore implements Store with in-memory last-writer-wins storage.
// Uses sync.RWMutex for thread-safe concurrent access
type MemoryStore struct {
	mu     sync.RWMutex     // Protects data and clock
	data   map[string]Entry // Key-value storage
	origin string
	clock  uint64
}

// NewMemoryStore creates a new in-memory store for the named node
func NewMemoryStore(origin string) *MemoryStore {
	return &MemoryStore{
		data:   make(map[string]Entry),
		origin: origin,
	}
}

// Get retrieves a value by key
// Returns a copy of the value to prevent external modification
func (m *MemoryStore) Get(key string) ([]byte, error) {
	e, err := m.Entry(key)
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}

// Entry returns a copy of the stored entry for key
func (m *MemoryStore) Entry(key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, exists := m.data[key]
	if !exists {
		return Entry{}, ErrKeyNotFound
	}
	e.Value = clone(e.Value)
	return e, nil
}

// Put stores a value with the given key, stamped with the next clock value
// Makes a copy of the value to prevent external modification
func (m *MemoryStore) Put(key string, value []byte) Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clock++
	e := Entry{Value: clone(value), Version: m.clock, Origin: m.origin}
	m.data[key] = e

	e.Value = clone(e.Value)
	return e
}

// Apply stores a replicated entry unless the current entry is newer, and
// advances the local clock past the entry's version
func (m *MemoryStore) Apply(key string, e Entry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.Version > m.clock {
		m.clock = e.Version
	}
	if cur, exists := m.data[key]; exists && !e.Newer(cur) {
		return false
	}
	e.Value = clone(e.Value)
	m.data[key] = e
	return true
}

// Delete removes a key-value pair
// No error if key doesn't exist (idempotent)
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// List returns all keys in the store in sorted order
func (m *MemoryStore) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Stats returns storage statistics
func (m *MemoryStore) Stats() StoreStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	totalBytes := 0
	for _, e := range m.data {
		totalBytes += len(e.Value)
	}

	return StoreStats{
		Keys:  len(m.data),
		Bytes: totalBytes,
	}
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
