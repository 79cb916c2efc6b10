package entity

import (
	"fmt"
	"sort"

	"github.com/relkv/relkv/pkg/engine"
)

// Serialize renders the entity as a flat record: identity fields, every
// declared property (defaults filled in, nil when truly unset), and
// relation edges. Single-valued relations emit a bare partner id and are
// omitted when unset; collection relations always emit a list, even a
// one-element one.
func (e *Entity) Serialize() engine.Record {
	rec := engine.Record{
		"_type":       e.typ.Qualified(),
		"_id":         e.id,
		"__version__": e.typ.version,
	}
	for name, p := range e.typ.allProps() {
		if v, ok := e.values[name]; ok {
			rec[name] = v
		} else if p.hasDefault {
			rec[name] = p.def
		} else {
			rec[name] = nil
		}
	}
	for name, rel := range e.typ.allRelations() {
		edges := e.relations[name]
		if rel.kind.Many() {
			ids := make([]string, 0, len(edges))
			for _, p := range edges {
				ids = append(ids, p.id)
			}
			rec[name] = ids
		} else if len(edges) > 0 {
			rec[name] = edges[0].id
		}
	}
	if e.typ.isTimestamped() {
		e.emitTimestamps(rec)
	}
	return rec
}

// Deserialize upserts a record through the type named by its _type
// field, qualified or bare. A missing or unknown type is a validation
// error and mutates nothing.
func (s *Schema) Deserialize(rec engine.Record) (*Entity, error) {
	rawType, _ := rec["_type"].(string)
	if rawType == "" {
		return nil, validationf("record has no _type field")
	}
	t, ok := s.TypeByName(rawType)
	if !ok {
		return nil, validationf("unknown type %q", rawType)
	}
	return t.Deserialize(rec)
}

// Deserialize upserts a record into the type: migrate if the stored
// version lags, match an existing instance by id then alias, merge the
// record's declared fields into it and re-persist; otherwise create a
// new instance, preserving a supplied id. Relations named by the record
// are re-resolved immediately, so an unresolvable partner fails the
// upsert with a not-found error.
//
// Counters move only on the create path; updating a matched instance
// never touches count or max id.
func (t *Type) Deserialize(rec engine.Record) (*Entity, error) {
	if rawType, ok := rec["_type"].(string); ok && rawType != "" && !t.matchesName(rawType) {
		return nil, validationf("record type %q does not match %q", rawType, t.Qualified())
	}

	// Work on a copy so migration never mutates the caller's record.
	work := make(engine.Record, len(rec))
	for k, v := range rec {
		work[k] = v
	}
	work, _, err := t.migrate(work)
	if err != nil {
		return nil, err
	}

	var target *Entity
	if id, ok := work["_id"].(string); ok && id != "" {
		if target, err = t.Load(id); err != nil {
			return nil, err
		}
	}
	if target == nil {
		if af := t.aliasFieldName(); af != "" {
			if v, ok := work[af].(string); ok && v != "" {
				if target, err = t.loadByAliasDepth(v, DefaultLoadDepth); err != nil {
					return nil, err
				}
			}
		}
	}

	if target != nil {
		target.suppressSave = true
		for _, name := range sortedPropNames(t) {
			if v, ok := work[name]; ok {
				if err := target.setField(name, v); err != nil {
					target.suppressSave = false
					return nil, err
				}
			}
		}
		target.suppressSave = false
		if err := target.save(); err != nil {
			return nil, err
		}
		if err := target.applyRecordRelations(work); err != nil {
			return nil, err
		}
		return target, nil
	}

	fields := make(map[string]any)
	for name := range t.allProps() {
		if v, ok := work[name]; ok && v != nil {
			fields[name] = v
		}
	}
	id, _ := work["_id"].(string)
	e, err := t.create(id, fields)
	if err != nil {
		return nil, err
	}
	if err := e.applyRecordRelations(work); err != nil {
		return nil, err
	}
	return e, nil
}

func sortedPropNames(t *Type) []string {
	props := t.allProps()
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// applyRecordRelations replaces the entity's edges with the ones a
// record names, resolving each key through the relation's target types.
func (e *Entity) applyRecordRelations(rec engine.Record) error {
	for name, rel := range e.typ.allRelations() {
		raw, ok := rec[name]
		if !ok || raw == nil {
			continue
		}
		var refs []Ref
		switch v := raw.(type) {
		case string:
			if v != "" {
				refs = append(refs, ByKey(v))
			}
		case []string:
			for _, key := range v {
				refs = append(refs, ByKey(key))
			}
		case []any:
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return validationf("relation %q holds a non-string reference %v", name, item)
				}
				refs = append(refs, ByKey(s))
			}
		default:
			return validationf("relation %q value %v is neither an id nor a list of ids", name, raw)
		}
		if err := e.setRelation(rel, refs); err != nil {
			return err
		}
	}
	return nil
}

// migrate lifts a stored record to the type's current version, applying
// each registered step in sequence. Records already current pass through
// untouched; a record from the future or a gap in the migration table is
// a consistency error.
func (t *Type) migrate(rec engine.Record) (engine.Record, bool, error) {
	stored := 1
	switch v := rec["__version__"].(type) {
	case int:
		stored = v
	case int64:
		stored = int(v)
	case float64:
		stored = int(v)
	}
	if stored == t.version {
		return rec, false, nil
	}
	if stored > t.version {
		return nil, false, consistencyf("record version %d is newer than type %q at version %d",
			stored, t.Qualified(), t.version)
	}
	for v := stored; v < t.version; v++ {
		step, ok := t.migrations[v]
		if !ok {
			return nil, false, consistencyf("type %q has no migration from version %d", t.Qualified(), v)
		}
		next, err := step(rec)
		if err != nil {
			return nil, false, fmt.Errorf("migrating %q from version %d: %w", t.Qualified(), v, err)
		}
		rec = next
	}
	rec["__version__"] = t.version
	return rec, true, nil
}
