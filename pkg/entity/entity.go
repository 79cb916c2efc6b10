package entity

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/relkv/relkv/pkg/engine"
	"github.com/relkv/relkv/pkg/storage"
)

// DefaultLoadDepth bounds relation traversal when an entity is loaded
// without an explicit depth. The entity itself is level one, its direct
// partners level two.
const DefaultLoadDepth = 2

// Entity is a live instance of a Type. Within one schema, at most one
// live instance exists per (type, id); loads of the same id return the
// same pointer until the registry is cleared.
//
// ELI12: the schema's registry works like name tags at a party. When you
// ask for "User 3" you always get pointed at the same person wearing
// that tag, no matter how many times you ask, so everyone agrees on what
// User 3 currently looks like.
type Entity struct {
	typ       *Type
	id        string
	loaded    bool
	persisted bool

	// suppressSave batches field writes during create and upsert so the
	// entity persists once, not once per field.
	suppressSave bool
	skipOwner    bool

	values    map[string]any
	relations map[string][]*Entity
	ts        timestamps
}

// Type returns the entity's type.
func (e *Entity) Type() *Type { return e.typ }

// ID returns the entity's id, empty while transient.
func (e *Entity) ID() string { return e.id }

// Key returns the entity's primary storage key, "{type}@{id}".
func (e *Entity) Key() string { return engine.Key(e.typ.Qualified(), e.id) }

// Loaded reports whether the instance was constructed from storage
// rather than created in this session.
func (e *Entity) Loaded() bool { return e.loaded }

func (e *Entity) db() *engine.Database { return e.typ.schema.db }

// Get returns the current value of a field, falling back to the
// property's default when the field was never written. Unknown fields
// return nil.
func (e *Entity) Get(field string) any {
	if v, ok := e.values[field]; ok {
		return v
	}
	if p, ok := e.typ.propByName(field); ok && p.hasDefault {
		return p.def
	}
	return nil
}

// GetString returns a string field, or "" when unset or not a string.
func (e *Entity) GetString(field string) string {
	s, _ := e.Get(field).(string)
	return s
}

// GetInt returns an integer field, or 0 when unset or not an integer.
func (e *Entity) GetInt(field string) int64 {
	n, _ := e.Get(field).(int64)
	return n
}

// GetFloat returns a float field, or 0 when unset or not a float.
func (e *Entity) GetFloat(field string) float64 {
	f, _ := e.Get(field).(float64)
	return f
}

// GetBool returns a boolean field, or false when unset or not a boolean.
func (e *Entity) GetBool(field string) bool {
	b, _ := e.Get(field).(bool)
	return b
}

// Set writes one field. The write runs the full gate: hook, coercion,
// constraint checks. On success the entity is re-persisted. Any failure
// leaves both the field and storage unchanged.
func (e *Entity) Set(field string, value any) error {
	return e.setField(field, value)
}

func (e *Entity) setField(field string, value any) error {
	prop, ok := e.typ.propByName(field)
	if !ok {
		return validationf("type %q has no field %q", e.typ.Qualified(), field)
	}

	action := ActionModify
	if !e.persisted {
		action = ActionCreate
	}
	old := e.Get(field)
	if h := e.typ.hookFor(); h != nil {
		res := h.OnEvent(e, field, old, value, action)
		if !res.allow {
			return validationf("hook rejected %s of field %q on type %q", action, field, e.typ.Qualified())
		}
		if res.rewritten {
			value = res.value
		}
	}

	coerced, err := prop.coerce(value)
	if err != nil {
		return err
	}
	if err := prop.check(coerced); err != nil {
		return err
	}
	// Ownership is checked before anything mutates so a rejected write
	// is a true no-op.
	if e.persisted {
		if err := e.ownershipError(); err != nil {
			return err
		}
	}

	// Changing the alias field retires the old alias entry so stale
	// values stop resolving.
	if e.persisted && field == e.typ.aliasFieldName() {
		if prev, ok := e.values[field].(string); ok && prev != "" && prev != coerced {
			if err := e.db().RemoveSystem(e.typ.aliasKey(prev)); err != nil {
				return err
			}
		}
	}

	prev, had := e.values[field]
	e.values[field] = coerced
	if e.suppressSave {
		return nil
	}
	if err := e.save(); err != nil {
		if had {
			e.values[field] = prev
		} else {
			delete(e.values, field)
		}
		return err
	}
	return nil
}

// New creates and persists an instance with the next sequential id.
// Fields are applied in sorted name order before the id is assigned, so
// a hook denial aborts creation with no counter or count movement.
func (t *Type) New(fields map[string]any) (*Entity, error) {
	return t.create("", fields)
}

// NewWithID creates an instance under a caller-chosen id. A numeric id
// greater than the type's id counter advances the counter so later
// auto-assigned ids do not collide; a smaller or non-numeric id leaves
// the counter untouched. Reusing a stored id is a consistency error.
func (t *Type) NewWithID(id string, fields map[string]any) (*Entity, error) {
	if id == "" {
		return nil, validationf("explicit id must not be empty")
	}
	return t.create(id, fields)
}

func (t *Type) create(id string, fields map[string]any) (*Entity, error) {
	e := &Entity{
		typ:       t,
		values:    make(map[string]any),
		relations: make(map[string][]*Entity),
	}

	e.suppressSave = true
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := e.setField(name, fields[name]); err != nil {
			return nil, err
		}
	}
	e.suppressSave = false

	db := t.schema.db
	if id != "" {
		if _, found, err := db.Load(t.Qualified(), id); err != nil {
			return nil, err
		} else if found {
			return nil, consistencyf("id %q already exists for type %q", id, t.Qualified())
		}
		if _, live := t.schema.getEntity(t.Qualified(), id); live {
			return nil, consistencyf("id %q already exists for type %q", id, t.Qualified())
		}
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			cur, err := db.GetSystemInt(t.idCounterKey())
			if err != nil {
				return nil, err
			}
			if int(n) > cur {
				if err := db.SetSystemInt(t.idCounterKey(), int(n)); err != nil {
					return nil, err
				}
			}
		}
	} else {
		cur, err := db.GetSystemInt(t.idCounterKey())
		if err != nil {
			return nil, err
		}
		cur++
		if err := db.SetSystemInt(t.idCounterKey(), cur); err != nil {
			return nil, err
		}
		id = strconv.Itoa(cur)
	}
	e.id = id

	count, err := db.GetSystemInt(t.countKey())
	if err != nil {
		return nil, err
	}
	if err := db.SetSystemInt(t.countKey(), count+1); err != nil {
		return nil, err
	}

	t.schema.putEntity(e)
	if err := e.save(); err != nil {
		t.schema.dropEntity(e)
		_ = db.SetSystemInt(t.countKey(), count)
		return nil, err
	}
	return e, nil
}

// Save re-persists the entity's current state, including its relation
// edges and alias entry.
func (e *Entity) Save() error {
	return e.save()
}

func (e *Entity) save() error {
	if e.typ.isTimestamped() {
		if err := e.stampAndCheckOwnership(); err != nil {
			return err
		}
	}
	if err := e.db().Save(e.typ.Qualified(), e.id, e.Serialize()); err != nil {
		return err
	}
	if af := e.typ.aliasFieldName(); af != "" {
		if v, ok := e.values[af].(string); ok && v != "" {
			if err := e.db().SetSystem(e.typ.aliasKey(v), e.id); err != nil {
				return err
			}
		}
	}
	e.persisted = true
	return nil
}

// Delete removes the entity from storage, its alias entry, and the live
// registry, and decrements the type's count. A hook denial is a
// permission error and mutates nothing. The id is retired, never reused.
//
// Partner entities that still reference the deleted entity keep their
// edges; severing them first is the caller's job.
func (e *Entity) Delete() error {
	if h := e.typ.hookFor(); h != nil {
		if res := h.OnEvent(e, "", nil, nil, ActionDelete); !res.allow {
			return permissionf("hook rejected delete of %s", e.Key())
		}
	}
	if err := e.ownershipError(); err != nil {
		return err
	}

	db := e.db()
	count, err := db.GetSystemInt(e.typ.countKey())
	if err != nil {
		return err
	}
	if count <= 0 {
		return consistencyf("count for type %q is already zero", e.typ.Qualified())
	}

	if err := db.Delete(e.typ.Qualified(), e.id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFoundf("%s is not stored", e.Key())
		}
		return err
	}
	if err := db.SetSystemInt(e.typ.countKey(), count-1); err != nil {
		return err
	}
	if af := e.typ.aliasFieldName(); af != "" {
		if v, ok := e.values[af].(string); ok && v != "" {
			if err := db.RemoveSystem(e.typ.aliasKey(v)); err != nil {
				return err
			}
		}
	}
	e.typ.schema.dropEntity(e)
	e.persisted = false
	return nil
}

// Load returns the instance stored under id at the default traversal
// depth. An id already live in the registry is returned as-is without a
// store read. An absent id returns (nil, nil), not an error.
func (t *Type) Load(id string) (*Entity, error) {
	return t.LoadDepth(id, DefaultLoadDepth)
}

// LoadDepth loads id with relation traversal bounded at level: the
// entity counts as one level, each hop of partners one more. A level of
// zero or an empty id yields no entity.
func (t *Type) LoadDepth(id string, level int) (*Entity, error) {
	if level <= 0 || id == "" {
		return nil, nil
	}
	if e, ok := t.schema.getEntity(t.Qualified(), id); ok {
		return e, nil
	}

	rec, found, err := t.schema.db.Load(t.Qualified(), id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	rec, migrated, err := t.migrate(rec)
	if err != nil {
		return nil, err
	}
	if migrated {
		if err := t.schema.db.Save(t.Qualified(), id, rec); err != nil {
			return nil, err
		}
	}

	e := t.instantiate(id, rec)
	// Registered before relations resolve so cyclic references find this
	// instance instead of recursing forever.
	t.schema.putEntity(e)
	if err := t.loadStoredRelations(e, rec, level-1); err != nil {
		return nil, err
	}
	return e, nil
}

// instantiate rebuilds an instance from its stored record. Values pass
// through kind coercion only; hooks and validators gate writes, not
// reads.
func (t *Type) instantiate(id string, rec engine.Record) *Entity {
	e := &Entity{
		typ:       t,
		id:        id,
		values:    make(map[string]any),
		relations: make(map[string][]*Entity),
	}
	for name, p := range t.allProps() {
		raw, ok := rec[name]
		if !ok || raw == nil {
			continue
		}
		if v, err := p.coerce(raw); err == nil {
			e.values[name] = v
		}
	}
	if t.isTimestamped() {
		e.restoreTimestamps(rec)
	}
	e.loaded = true
	e.persisted = true
	return e
}

// loadStoredRelations attaches the partners named by a stored record,
// loading each at the given depth. Ids that no longer resolve are
// skipped: a deleted partner leaves a dangling reference, not an error.
func (t *Type) loadStoredRelations(e *Entity, rec engine.Record, level int) error {
	if level <= 0 {
		return nil
	}
	for name, rel := range t.allRelations() {
		raw, ok := rec[name]
		if !ok || raw == nil {
			continue
		}
		var keys []string
		switch v := raw.(type) {
		case string:
			keys = []string{v}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					keys = append(keys, s)
				}
			}
		}
		for _, key := range keys {
			partner, err := rel.resolveAt(t.schema, key, level)
			if err != nil {
				return err
			}
			if partner == nil {
				continue
			}
			// Both in-memory sides carry the edge even when the partner
			// was loaded too shallow to resolve its own relations, so
			// later set-difference mutations see the full edge set.
			e.attach(name, partner)
			partner.attach(rel.reverseName, e)
		}
	}
	return nil
}

// Lookup resolves key first as an id, then as an alias value.
func (t *Type) Lookup(key string) (*Entity, error) {
	e, err := t.Load(key)
	if err != nil || e != nil {
		return e, err
	}
	return t.loadByAliasDepth(key, DefaultLoadDepth)
}

func (t *Type) loadByAliasDepth(value string, level int) (*Entity, error) {
	if t.aliasFieldName() == "" || value == "" {
		return nil, nil
	}
	id, ok, err := t.schema.db.GetSystem(t.aliasKey(value))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return t.LoadDepth(id, level)
}

// Count returns the number of stored instances of the type. A counter
// read, not a scan.
func (t *Type) Count() (int, error) {
	return t.schema.db.GetSystemInt(t.countKey())
}

// MaxID returns the highest numeric id ever assigned for the type,
// deleted instances included.
func (t *Type) MaxID() (int, error) {
	return t.schema.db.GetSystemInt(t.idCounterKey())
}

// Instances scans the store and loads every instance of the type,
// subtypes included, in key order.
func (t *Type) Instances() ([]*Entity, error) {
	keys, err := t.schema.db.Store().Keys()
	if err != nil {
		return nil, err
	}
	var out []*Entity
	for _, key := range keys {
		if strings.HasPrefix(key, "_") {
			continue
		}
		typeName, id, ok := engine.SplitKey(key)
		if !ok {
			continue
		}
		st, ok := t.schema.typeByQualified(typeName)
		if !ok || !st.isSubtypeOf(t) {
			continue
		}
		e, err := st.Load(id)
		if err != nil {
			return nil, err
		}
		if e != nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// LoadSome walks the sequential id space from fromID, skipping ids that
// no longer load, and collects up to count live entities.
func (t *Type) LoadSome(fromID, count int) ([]*Entity, error) {
	if fromID < 1 {
		return nil, validationf("fromID must be at least 1, got %d", fromID)
	}
	if count < 1 {
		return nil, validationf("count must be at least 1, got %d", count)
	}
	maxID, err := t.MaxID()
	if err != nil {
		return nil, err
	}
	out := make([]*Entity, 0, count)
	for id := fromID; id <= maxID && len(out) < count; id++ {
		e, err := t.Load(strconv.Itoa(id))
		if err != nil {
			return nil, err
		}
		if e != nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// Find returns the instances whose serialized record matches every
// filter entry. Numeric values compare by magnitude, so a filter of 30
// matches a stored int64(30).
func (t *Type) Find(filter map[string]any) ([]*Entity, error) {
	all, err := t.Instances()
	if err != nil {
		return nil, err
	}
	var out []*Entity
	for _, e := range all {
		rec := e.Serialize()
		match := true
		for field, want := range filter {
			if !looseEqual(rec[field], want) {
				match = false
				break
			}
		}
		if match {
			out = append(out, e)
		}
	}
	return out, nil
}

func looseEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// propByName resolves a property through the type's parent chain.
func (t *Type) propByName(name string) (*Property, bool) {
	for cur := t; cur != nil; cur = cur.parent {
		if p, ok := cur.props[name]; ok {
			return p, true
		}
	}
	return nil, false
}

// relationByName resolves a relation through the type's parent chain.
func (t *Type) relationByName(name string) (*Relation, bool) {
	for cur := t; cur != nil; cur = cur.parent {
		if r, ok := cur.relations[name]; ok {
			return r, true
		}
	}
	return nil, false
}

// allProps collects declared properties, subtypes overriding parents.
func (t *Type) allProps() map[string]*Property {
	out := make(map[string]*Property)
	var chain []*Type
	for cur := t; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for name, p := range chain[i].props {
			out[name] = p
		}
	}
	return out
}

// allRelations collects declared relations, subtypes overriding parents.
func (t *Type) allRelations() map[string]*Relation {
	out := make(map[string]*Relation)
	var chain []*Type
	for cur := t; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for name, r := range chain[i].relations {
			out[name] = r
		}
	}
	return out
}

// hookFor returns the nearest hook up the parent chain.
func (t *Type) hookFor() Hook {
	for cur := t; cur != nil; cur = cur.parent {
		if cur.hook != nil {
			return cur.hook
		}
	}
	return nil
}

// aliasFieldName returns the nearest alias field up the parent chain.
func (t *Type) aliasFieldName() string {
	for cur := t; cur != nil; cur = cur.parent {
		if cur.aliasField != "" {
			return cur.aliasField
		}
	}
	return ""
}

// isTimestamped reports whether the type or an ancestor enabled stamps.
func (t *Type) isTimestamped() bool {
	for cur := t; cur != nil; cur = cur.parent {
		if cur.timestamped {
			return true
		}
	}
	return false
}
