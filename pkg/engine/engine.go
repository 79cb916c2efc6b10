// Package engine implements the RelKV database engine: structured records
// encoded onto an ordered key-value store, plus the append-only audit
// trail that shadows every mutating operation.
//
// The engine owns two stores. The primary store holds entity records under
// "{type}@{id}" keys, alias index entries, and the per-type id/count
// counters. The optional audit store holds one immutable entry per
// save/update/delete, keyed by a decimal sequence number bracketed by the
// "_min_id"/"_max_id" sentinels.
//
// Example Usage:
//
//	db, err := engine.New(engine.Options{AuditEnabled: true})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	db.Save("User", "1", engine.Record{"name": "Alice"})
//	db.Update("User", "1", "name", "Alicia")
//	db.Delete("User", "1")
//
//	entries, _ := db.GetAudit(0, 0) // the full trail
//	for _, e := range entries {
//		fmt.Printf("%d %s %s\n", e.ID, e.Op, e.Key)
//	}
package engine

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/VictoriaMetrics/metrics"

	"github.com/relkv/relkv/pkg/clock"
	"github.com/relkv/relkv/pkg/storage"
)

// Audit opcodes. Every audited operation is recorded as one of these.
const (
	OpSave   = "save"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Sentinel keys bracketing the audit sequence in the audit store.
const (
	auditMinKey = "_min_id"
	auditMaxKey = "_max_id"
)

// Engine-wide operation counters.
var (
	saveOps   = metrics.GetOrCreateCounter(`relkv_engine_ops_total{op="save"}`)
	loadOps   = metrics.GetOrCreateCounter(`relkv_engine_ops_total{op="load"}`)
	updateOps = metrics.GetOrCreateCounter(`relkv_engine_ops_total{op="update"}`)
	deleteOps = metrics.GetOrCreateCounter(`relkv_engine_ops_total{op="delete"}`)
)

// Record is the flat attribute map an entity serializes to. Values are
// restricted to what encoding/json round-trips: strings, numbers, bools,
// nil, and lists thereof.
type Record map[string]any

// Key forms the primary-store key for a record. The "{type}@{id}" shape
// is a public on-disk contract — external tooling parses it back.
func Key(typeName, id string) string {
	return typeName + "@" + id
}

// Options configures a Database.
type Options struct {
	// Store is the primary store. Defaults to a fresh MemoryStore.
	Store storage.Store

	// AuditStore receives audit entries. Defaults to a fresh MemoryStore
	// when AuditEnabled is set.
	AuditStore storage.Store

	// AuditEnabled turns the audit trail on.
	AuditEnabled bool

	// Clock stamps audit entries. Defaults to a real-time clock.
	Clock *clock.Clock
}

// Database wraps the primary and audit stores and performs record
// encoding, audit appends, and bulk export.
//
// A Database assumes a single logical actor per call (no internal
// parallelism); the underlying stores are still safe for concurrent
// readers.
type Database struct {
	store storage.Store
	audit storage.Store
	clock *clock.Clock
}

// New creates a Database. Missing options are filled with defaults; when
// auditing is enabled the audit min/max counters are initialized to "0"
// unless the store already carries them (a reopened durable trail).
func New(opts Options) (*Database, error) {
	if opts.Store == nil {
		opts.Store = storage.NewMemoryStore()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	d := &Database{
		store: opts.Store,
		clock: opts.Clock,
	}

	if opts.AuditEnabled {
		if opts.AuditStore == nil {
			opts.AuditStore = storage.NewMemoryStore()
		}
		d.audit = opts.AuditStore
		if err := d.initAuditCounters(); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// AuditEnabled reports whether the engine records an audit trail.
func (d *Database) AuditEnabled() bool {
	return d.audit != nil
}

// Store exposes the primary store for scans (entity listing, dumps).
func (d *Database) Store() storage.Store {
	return d.store
}

// Clock returns the engine's time source.
func (d *Database) Clock() *clock.Clock {
	return d.clock
}

func (d *Database) initAuditCounters() error {
	for _, key := range []string{auditMinKey, auditMaxKey} {
		ok, err := d.audit.Has(key)
		if err != nil {
			return fmt.Errorf("reading audit counter %s: %w", key, err)
		}
		if !ok {
			if err := d.audit.Insert(key, "0"); err != nil {
				return fmt.Errorf("initializing audit counter %s: %w", key, err)
			}
		}
	}
	return nil
}

// Save stores a record under "{type}@{id}" and appends a save audit entry.
func (d *Database) Save(typeName, id string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", Key(typeName, id), err)
	}
	if err := d.store.Insert(Key(typeName, id), string(data)); err != nil {
		return err
	}
	saveOps.Inc()
	return d.appendAudit(OpSave, Key(typeName, id), rec)
}

// Load returns the record stored under "{type}@{id}". An absent record is
// reported through the boolean, not as an error.
func (d *Database) Load(typeName, id string) (Record, bool, error) {
	data, ok, err := d.store.Get(Key(typeName, id))
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, false, fmt.Errorf("decoding %s: %w", Key(typeName, id), err)
	}
	loadOps.Inc()
	return rec, true, nil
}

// Delete removes a record and appends a delete audit entry carrying the
// last stored payload as its snapshot. Deleting a missing record returns
// storage.ErrNotFound.
func (d *Database) Delete(typeName, id string) error {
	key := Key(typeName, id)

	var snapshot Record
	if data, ok, err := d.store.Get(key); err != nil {
		return err
	} else if ok {
		// Best effort: a snapshot that fails to parse is recorded as nil.
		_ = json.Unmarshal([]byte(data), &snapshot)
	}

	if err := d.store.Remove(key); err != nil {
		return err
	}
	deleteOps.Inc()
	return d.appendAudit(OpDelete, key, snapshot)
}

// Update loads a record, replaces one field, stores the result, and
// appends a single update audit entry. Updating a missing record is a
// no-op, matching load-mutate-save semantics.
func (d *Database) Update(typeName, id, field string, value any) error {
	rec, ok, err := d.Load(typeName, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	rec[field] = value
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", Key(typeName, id), err)
	}
	if err := d.store.Insert(Key(typeName, id), string(data)); err != nil {
		return err
	}
	updateOps.Inc()
	return d.appendAudit(OpUpdate, Key(typeName, id), rec)
}

// Clear wipes both stores and reinitializes the audit counters to zero.
// Intended for test isolation and reinitialization, not routine use.
func (d *Database) Clear() error {
	if err := wipe(d.store); err != nil {
		return err
	}
	if d.audit == nil {
		return nil
	}
	if err := wipe(d.audit); err != nil {
		return err
	}
	if err := d.audit.Insert(auditMinKey, "0"); err != nil {
		return err
	}
	return d.audit.Insert(auditMaxKey, "0")
}

func wipe(s storage.Store) error {
	keys, err := s.Keys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.Remove(k); err != nil {
			return err
		}
	}
	return nil
}

// GetSystem reads a raw system value (counter or alias entry) from the
// primary store. System values are plain strings, not JSON records, and
// are never audited.
func (d *Database) GetSystem(key string) (string, bool, error) {
	return d.store.Get(key)
}

// SetSystem writes a raw system value to the primary store.
func (d *Database) SetSystem(key, value string) error {
	return d.store.Insert(key, value)
}

// RemoveSystem deletes a raw system value. Missing keys are ignored.
func (d *Database) RemoveSystem(key string) error {
	err := d.store.Remove(key)
	if err == storage.ErrNotFound {
		return nil
	}
	return err
}

// GetSystemInt reads a system counter as an integer, defaulting to zero
// when the counter does not exist yet.
func (d *Database) GetSystemInt(key string) (int, error) {
	value, ok, err := d.GetSystem(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("system counter %s holds %q: %w", key, value, err)
	}
	return n, nil
}

// SetSystemInt writes a system counter.
func (d *Database) SetSystemInt(key string, n int) error {
	return d.SetSystem(key, strconv.Itoa(n))
}
