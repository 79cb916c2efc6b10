package entity

// RelationKind identifies the multiplicity of a relation endpoint.
type RelationKind int

const (
	// OneToOne links a single entity to a single partner.
	OneToOne RelationKind = iota + 1
	// OneToMany links a single entity to a set of partners whose reverse
	// side is ManyToOne.
	OneToMany
	// ManyToOne links a member to a single owner whose reverse side is
	// OneToMany.
	ManyToOne
	// ManyToMany links sets on both sides.
	ManyToMany
)

// String returns the kind name used in error messages.
func (k RelationKind) String() string {
	switch k {
	case OneToOne:
		return "one-to-one"
	case OneToMany:
		return "one-to-many"
	case ManyToOne:
		return "many-to-one"
	case ManyToMany:
		return "many-to-many"
	}
	return "unknown"
}

// Many reports whether the local side of the relation holds a collection.
func (k RelationKind) Many() bool {
	return k == OneToMany || k == ManyToMany
}

// reverse returns the kind the partner type must declare for the
// reverse side of a relation of this kind.
func (k RelationKind) reverse() RelationKind {
	switch k {
	case OneToMany:
		return ManyToOne
	case ManyToOne:
		return OneToMany
	}
	return k
}

// Relation declares a named, bidirectional link between entity types.
// Every edge is mirrored: when a points to b through this relation, b
// points back to a through the partner type's relation named reverseName.
type Relation struct {
	name        string
	kind        RelationKind
	targets     []string
	reverseName string
}

// OneToOneRelation declares a one-to-one relation. targets lists the
// type names (bare or namespace-qualified) partners may have. An empty
// reverseName defaults to name, for symmetric relations such as "spouse".
func OneToOneRelation(name string, targets []string, reverseName string) *Relation {
	return newRelation(name, OneToOne, targets, reverseName)
}

// OneToManyRelation declares the collection side of an owner/member pair.
func OneToManyRelation(name string, targets []string, reverseName string) *Relation {
	return newRelation(name, OneToMany, targets, reverseName)
}

// ManyToOneRelation declares the single side of an owner/member pair.
func ManyToOneRelation(name string, targets []string, reverseName string) *Relation {
	return newRelation(name, ManyToOne, targets, reverseName)
}

// ManyToManyRelation declares a set-to-set relation such as "friends".
func ManyToManyRelation(name string, targets []string, reverseName string) *Relation {
	return newRelation(name, ManyToMany, targets, reverseName)
}

func newRelation(name string, kind RelationKind, targets []string, reverseName string) *Relation {
	if reverseName == "" {
		reverseName = name
	}
	return &Relation{name: name, kind: kind, targets: targets, reverseName: reverseName}
}

// Name returns the relation's local field name.
func (r *Relation) Name() string { return r.name }

// Kind returns the relation's multiplicity.
func (r *Relation) Kind() RelationKind { return r.kind }

// Ref names a relation partner, either as a live entity or by its
// lookup key (an id or an alias value). The zero Ref clears the relation.
type Ref struct {
	entity *Entity
	key    string
}

// To references a loaded entity directly.
func To(e *Entity) Ref {
	return Ref{entity: e}
}

// ByKey references a partner by id or alias value, resolved against the
// relation's target types when the edge is set.
func ByKey(key string) Ref {
	return Ref{key: key}
}

// isZero reports whether the ref names nothing, i.e. a clear request.
func (r Ref) isZero() bool {
	return r.entity == nil && r.key == ""
}
