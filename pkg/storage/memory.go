package storage

import (
	"sort"
	"sync"
)

// MemoryStore is a thread-safe in-memory Store implementation.
//
// Use Cases:
//   - Unit testing (no disk I/O, fast cleanup)
//   - Tooling that inspects exported data without touching disk
//   - Development and prototyping
//
// Performance Characteristics:
//   - Insert/Get/Remove/Has: O(1)
//   - Keys/Items: O(n log n) (sorted on demand)
//
// ELI12:
//
// Think of MemoryStore like writing on a whiteboard:
//   - Super fast to write and erase
//   - Everyone in the room can read it
//   - When the meeting ends (process exits), it all gets wiped
//
// Perfect for tests — a clean whiteboard every time. NOT for data you
// want to keep; use BadgerStore for that.
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Insert sets the value for a key, overwriting any previous value.
func (m *MemoryStore) Insert(key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
	return nil
}

// Get returns the value for a key; the boolean reports presence.
func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	return value, ok, nil
}

// Remove deletes a key-value pair. Missing keys return ErrNotFound.
func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[key]; !ok {
		return ErrNotFound
	}
	delete(m.data, key)
	return nil
}

// Has reports whether a key exists.
func (m *MemoryStore) Has(key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.data[key]
	return ok, nil
}

// Keys returns every key in lexicographically sorted order.
func (m *MemoryStore) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Items returns every key-value pair, sorted by key.
func (m *MemoryStore) Items() ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]Item, 0, len(keys))
	for _, k := range keys {
		items = append(items, Item{Key: k, Value: m.data[k]})
	}
	return items, nil
}

// Len returns the number of stored pairs.
func (m *MemoryStore) Len() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data), nil
}

// Clear removes every key-value pair.
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string]string)
}
