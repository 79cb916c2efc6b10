// Package storage provides the ordered string key-value stores the
// engine persists through.
//
// Two implementations ship with the engine: MemoryStore keeps everything
// in a map for tests and tooling, BadgerStore keeps it on disk through
// BadgerDB with bounded key and value sizes. Both present the same Store
// contract, so the engine never knows which one it is writing to.
package storage

import "errors"

// Sentinel errors for store operations. Implementations wrap these with
// detail; callers classify with errors.Is.
var (
	// ErrNotFound reports a Remove of a key that is not stored.
	ErrNotFound = errors.New("key not found")

	// ErrInvalidKey reports an empty key.
	ErrInvalidKey = errors.New("invalid key")

	// ErrCapacity reports a key or value beyond the store's size bounds.
	ErrCapacity = errors.New("capacity exceeded")

	// ErrStoreClosed reports an operation on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// Item is one key-value pair as returned by Items.
type Item struct {
	Key   string
	Value string
}

// Store is the flat string-to-string map the engine persists through.
// Keys are unique; Keys and Items enumerate them in lexicographic order,
// so iteration over a fixed data set is deterministic.
//
// Implementations must be safe for concurrent readers. The engine itself
// serializes writes (one logical actor per call), so stores may assume a
// single writer.
type Store interface {
	// Insert sets the value for a key, overwriting any previous value.
	Insert(key, value string) error

	// Get returns the value for a key; the boolean reports presence.
	// A missing key is not an error.
	Get(key string) (string, bool, error)

	// Remove deletes a key-value pair. Missing keys return ErrNotFound.
	Remove(key string) error

	// Has reports whether a key is stored.
	Has(key string) (bool, error)

	// Keys returns all keys in lexicographic order.
	Keys() ([]string, error)

	// Items returns all key-value pairs in key order.
	Items() ([]Item, error)

	// Len returns the number of stored pairs.
	Len() (int, error)
}
