package storage

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Default size bounds for the durable store. Values larger than this are
// rejected with ErrCapacity rather than written.
const (
	DefaultMaxKeySize   = 100_000
	DefaultMaxValueSize = 1_000_000
)

// BadgerOptions configures the durable BadgerDB-backed store.
type BadgerOptions struct {
	// DataDir is the directory for data files. Required unless InMemory.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode. Useful for testing.
	InMemory bool

	// SyncWrites forces fsync after each write. Slower but more durable.
	SyncWrites bool

	// ReadOnly opens the store for reading only (diagnostics tooling).
	ReadOnly bool

	// MaxKeySize bounds key length in bytes. Zero means DefaultMaxKeySize.
	MaxKeySize int

	// MaxValueSize bounds value length in bytes. Zero means DefaultMaxValueSize.
	MaxValueSize int

	// Logger for BadgerDB internal logging. If nil, badger stays quiet.
	Logger badger.Logger
}

// BadgerStore is the durable Store realization backed by BadgerDB.
//
// Unlike MemoryStore it enforces maximum key and value byte sizes, the
// way a paged stable store would, and surfaces ErrCapacity when a write
// exceeds them. Keys iterate in lexicographic byte order, which BadgerDB
// guarantees natively.
//
// Example:
//
//	store, err := storage.NewBadgerStore("./data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	if err := store.Insert("User@1", data); err != nil {
//		if errors.Is(err, storage.ErrCapacity) {
//			// value too large for the durable store
//		}
//	}
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
type BadgerStore struct {
	db           *badger.DB
	maxKeySize   int
	maxValueSize int

	mu     sync.RWMutex
	closed bool
}

// NewBadgerStore opens a durable store in dataDir with default bounds.
func NewBadgerStore(dataDir string) (*BadgerStore, error) {
	return NewBadgerStoreWithOptions(BadgerOptions{DataDir: dataDir})
}

// NewBadgerStoreWithOptions opens a durable store with explicit options.
func NewBadgerStoreWithOptions(opts BadgerOptions) (*BadgerStore, error) {
	if opts.DataDir == "" && !opts.InMemory {
		return nil, fmt.Errorf("badger store: DataDir is required")
	}
	if opts.MaxKeySize == 0 {
		opts.MaxKeySize = DefaultMaxKeySize
	}
	if opts.MaxValueSize == 0 {
		opts.MaxValueSize = DefaultMaxValueSize
	}

	badgerOpts := badger.DefaultOptions(opts.DataDir).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithReadOnly(opts.ReadOnly).
		WithLogger(opts.Logger)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store: %w", err)
	}

	return &BadgerStore{
		db:           db,
		maxKeySize:   opts.MaxKeySize,
		maxValueSize: opts.MaxValueSize,
	}, nil
}

// Insert sets the value for a key, overwriting any previous value.
// Keys or values beyond the configured bounds return ErrCapacity.
func (b *BadgerStore) Insert(key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > b.maxKeySize {
		return fmt.Errorf("%w: key is %d bytes, limit %d", ErrCapacity, len(key), b.maxKeySize)
	}
	if len(value) > b.maxValueSize {
		return fmt.Errorf("%w: value is %d bytes, limit %d", ErrCapacity, len(value), b.maxValueSize)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStoreClosed
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("inserting %q: %w", key, err)
	}
	return nil
}

// Get returns the value for a key; the boolean reports presence.
func (b *BadgerStore) Get(key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return "", false, ErrStoreClosed
	}

	var value string
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			found = true
			return nil
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("reading %q: %w", key, err)
	}
	return value, found, nil
}

// Remove deletes a key-value pair. Missing keys return ErrNotFound.
func (b *BadgerStore) Remove(key string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStoreClosed
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete([]byte(key))
	})
	if err == ErrNotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("removing %q: %w", key, err)
	}
	return nil
}

// Has reports whether a key exists.
func (b *BadgerStore) Has(key string) (bool, error) {
	_, ok, err := b.Get(key)
	return ok, err
}

// Keys returns every key in lexicographically sorted order.
func (b *BadgerStore) Keys() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrStoreClosed
	}

	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterating keys: %w", err)
	}
	return keys, nil
}

// Items returns every key-value pair, sorted by key.
func (b *BadgerStore) Items() ([]Item, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrStoreClosed
	}

	var items []Item
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			items = append(items, Item{Key: key, Value: string(val)})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

// Len returns the number of stored pairs.
func (b *BadgerStore) Len() (int, error) {
	keys, err := b.Keys()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Close releases the underlying BadgerDB handle. Close is idempotent.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}
