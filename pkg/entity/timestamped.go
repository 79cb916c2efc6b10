package entity

import "github.com/relkv/relkv/pkg/engine"

// timestamps carries the bookkeeping a timestamped type maintains on
// every instance: creation and update times in epoch milliseconds, plus
// the actors who created, last updated, and currently own the entity.
type timestamps struct {
	created int64
	updated int64
	creator string
	updater string
	owner   string
}

// stampAndCheckOwnership runs before every persist of a timestamped
// entity. The first persist records the current actor as creator and
// owner; every later persist requires the current actor to be the owner
// and refreshes the update stamp.
func (e *Entity) stampAndCheckOwnership() error {
	now := e.typ.schema.clock.Now()
	who := e.typ.schema.actors.Current()
	if e.ts.created == 0 {
		e.ts.created = now
		e.ts.creator = who
		e.ts.owner = who
	} else if err := e.ownershipError(); err != nil {
		return err
	}
	e.ts.updated = now
	e.ts.updater = who
	return nil
}

// ownershipError reports whether the current actor may mutate the
// entity. Types without timestamps have no owner and always pass, as
// does an entity that was never persisted.
func (e *Entity) ownershipError() error {
	if !e.typ.isTimestamped() || e.skipOwner || e.ts.owner == "" || e.ts.created == 0 {
		return nil
	}
	if who := e.typ.schema.actors.Current(); who != e.ts.owner {
		return permissionf("actor %q does not own %s (owner is %q)", who, e.Key(), e.ts.owner)
	}
	return nil
}

// SetOwner transfers ownership to another actor and re-persists. The
// transfer itself is not owner-gated.
func (e *Entity) SetOwner(id string) error {
	e.ts.owner = id
	e.skipOwner = true
	err := e.save()
	e.skipOwner = false
	return err
}

// CreatedAt returns the creation time in epoch milliseconds, zero when
// the type is not timestamped or the entity was never persisted.
func (e *Entity) CreatedAt() int64 { return e.ts.created }

// UpdatedAt returns the last persist time in epoch milliseconds.
func (e *Entity) UpdatedAt() int64 { return e.ts.updated }

// Creator returns the actor that first persisted the entity.
func (e *Entity) Creator() string { return e.ts.creator }

// Updater returns the actor behind the most recent persist.
func (e *Entity) Updater() string { return e.ts.updater }

// Owner returns the actor allowed to modify the entity.
func (e *Entity) Owner() string { return e.ts.owner }

func (e *Entity) emitTimestamps(rec engine.Record) {
	rec["timestamp_created"] = e.ts.created
	rec["timestamp_updated"] = e.ts.updated
	rec["creator"] = e.ts.creator
	rec["updater"] = e.ts.updater
	rec["owner"] = e.ts.owner
}

func (e *Entity) restoreTimestamps(rec engine.Record) {
	e.ts.created = intField(rec, "timestamp_created")
	e.ts.updated = intField(rec, "timestamp_updated")
	if s, ok := rec["creator"].(string); ok {
		e.ts.creator = s
	}
	if s, ok := rec["updater"].(string); ok {
		e.ts.updater = s
	}
	if s, ok := rec["owner"].(string); ok {
		e.ts.owner = s
	}
}

func intField(rec engine.Record, key string) int64 {
	switch v := rec[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
