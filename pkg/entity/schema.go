package entity

import (
	"sort"
	"sync"

	"github.com/relkv/relkv/pkg/actor"
	"github.com/relkv/relkv/pkg/clock"
	"github.com/relkv/relkv/pkg/engine"
)

// Migration upgrades a stored record by exactly one schema version. It
// receives the record at version N and returns it at version N+1. The
// input may be mutated in place.
type Migration func(rec engine.Record) (engine.Record, error)

// Schema is the set of entity types sharing one database, one registry of
// live instances, and one actor handle. All type definitions and
// cross-type operations (deserialization, relation resolution) go
// through the Schema.
type Schema struct {
	db     *engine.Database
	clock  *clock.Clock
	actors *actor.Handle

	mu       sync.RWMutex
	types    map[string]*Type
	registry map[string]*Entity
}

// SchemaOption configures a Schema at construction time.
type SchemaOption func(*Schema)

// WithActors shares an existing actor handle instead of creating one.
func WithActors(h *actor.Handle) SchemaOption {
	return func(s *Schema) { s.actors = h }
}

// NewSchema creates an empty schema over db. The schema reuses the
// database's clock so fixed test times flow through to timestamps.
func NewSchema(db *engine.Database, opts ...SchemaOption) *Schema {
	s := &Schema{
		db:       db,
		clock:    db.Clock(),
		actors:   actor.NewHandle(),
		types:    make(map[string]*Type),
		registry: make(map[string]*Entity),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Database returns the underlying database.
func (s *Schema) Database() *engine.Database { return s.db }

// Clock returns the schema's clock.
func (s *Schema) Clock() *clock.Clock { return s.clock }

// Actors returns the schema's actor handle.
func (s *Schema) Actors() *actor.Handle { return s.actors }

// Type is a registered entity type: its declared properties, relations,
// version and lineage. Instances are created and loaded through the Type.
type Type struct {
	schema      *Schema
	name        string
	namespace   string
	aliasField  string
	version     int
	parent      *Type
	hook        Hook
	timestamped bool
	props       map[string]*Property
	relations   map[string]*Relation
	migrations  map[int]Migration
}

// TypeOption configures a Type at definition time.
type TypeOption func(*Type)

// WithNamespace scopes the type's storage keys and counters under ns.
// The qualified name becomes "ns::Name".
func WithNamespace(ns string) TypeOption {
	return func(t *Type) { t.namespace = ns }
}

// WithAlias declares field as an alternate unique lookup key. Lookup and
// upsert resolve alias values when no entity has the value as its id.
func WithAlias(field string) TypeOption {
	return func(t *Type) { t.aliasField = field }
}

// WithVersion sets the type's current schema version. Defaults to 1.
func WithVersion(v int) TypeOption {
	return func(t *Type) { t.version = v }
}

// WithParent makes the type a subtype of parent. Instances listings on
// the parent include subtype instances; counters stay per-type.
func WithParent(parent *Type) TypeOption {
	return func(t *Type) { t.parent = parent }
}

// WithHook installs the type's mutation gate.
func WithHook(h Hook) TypeOption {
	return func(t *Type) { t.hook = h }
}

// WithProperties declares the type's fields.
func WithProperties(props ...*Property) TypeOption {
	return func(t *Type) {
		for _, p := range props {
			t.props[p.name] = p
		}
	}
}

// WithRelations declares the type's relation endpoints.
func WithRelations(rels ...*Relation) TypeOption {
	return func(t *Type) {
		for _, r := range rels {
			t.relations[r.name] = r
		}
	}
}

// WithMigration registers the upgrade step from version from to from+1.
func WithMigration(from int, m Migration) TypeOption {
	return func(t *Type) { t.migrations[from] = m }
}

// WithTimestamps enables creation/update stamps and creator/updater/owner
// tracking on every instance of the type.
func WithTimestamps() TypeOption {
	return func(t *Type) { t.timestamped = true }
}

// Define registers a new entity type under name. The qualified name
// (namespace included) must be unique within the schema.
func (s *Schema) Define(name string, opts ...TypeOption) (*Type, error) {
	if name == "" {
		return nil, validationf("type name must not be empty")
	}
	t := &Type{
		schema:     s,
		name:       name,
		version:    1,
		props:      make(map[string]*Property),
		relations:  make(map[string]*Relation),
		migrations: make(map[int]Migration),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.aliasField != "" {
		if _, ok := t.propByName(t.aliasField); !ok {
			return nil, validationf("alias field %q is not a declared property of %q", t.aliasField, name)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	qual := t.Qualified()
	if _, exists := s.types[qual]; exists {
		return nil, validationf("type %q already defined", qual)
	}
	s.types[qual] = t
	return t, nil
}

// MustDefine is Define that panics on error, for static schema setup.
func (s *Schema) MustDefine(name string, opts ...TypeOption) *Type {
	t, err := s.Define(name, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// TypeByName resolves a type by qualified name first, then by bare name.
// When several namespaces define the same bare name the lexicographically
// smallest qualified name wins, so resolution is deterministic.
func (s *Schema) TypeByName(name string) (*Type, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.types[name]; ok {
		return t, true
	}
	var quals []string
	for qual, t := range s.types {
		if t.name == name {
			quals = append(quals, qual)
		}
	}
	if len(quals) == 0 {
		return nil, false
	}
	sort.Strings(quals)
	return s.types[quals[0]], true
}

// typeByQualified resolves a type by its exact qualified name.
func (s *Schema) typeByQualified(name string) (*Type, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[name]
	return t, ok
}

// ClearRegistry drops every live instance so subsequent loads hit
// storage. Stored data is untouched.
func (s *Schema) ClearRegistry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry = make(map[string]*Entity)
}

func (s *Schema) getEntity(qual, id string) (*Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.registry[qual+"@"+id]
	return e, ok
}

func (s *Schema) putEntity(e *Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry[e.typ.Qualified()+"@"+e.id] = e
}

func (s *Schema) dropEntity(e *Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.registry, e.typ.Qualified()+"@"+e.id)
}

// Name returns the type's bare name.
func (t *Type) Name() string { return t.name }

// Namespace returns the type's namespace, empty when unscoped.
func (t *Type) Namespace() string { return t.namespace }

// Version returns the type's current schema version.
func (t *Type) Version() int { return t.version }

// Schema returns the owning schema.
func (t *Type) Schema() *Schema { return t.schema }

// Qualified returns "ns::Name", or the bare name when unscoped.
func (t *Type) Qualified() string {
	if t.namespace == "" {
		return t.name
	}
	return t.namespace + "::" + t.name
}

// isSubtypeOf reports whether t is other or descends from it.
func (t *Type) isSubtypeOf(other *Type) bool {
	for cur := t; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

// matchesName reports whether the type answers to name, either its
// qualified or its bare form.
func (t *Type) matchesName(name string) bool {
	return t.Qualified() == name || t.name == name
}

func (t *Type) idCounterKey() string { return t.Qualified() + "_id" }
func (t *Type) countKey() string     { return t.Qualified() + "_count" }
func (t *Type) aliasKey(value string) string {
	return t.Qualified() + "_alias@" + value
}
