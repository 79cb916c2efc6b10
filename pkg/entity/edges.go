package entity

// Every edge is bidirectional: each mutation below updates the in-memory
// sides of both entities and then re-persists both, so a crash between
// two top-level calls never leaves a half-applied edge.

// Related returns the single partner of a relation, nil when unset.
func (e *Entity) Related(name string) *Entity {
	edges := e.relations[name]
	if len(edges) == 0 {
		return nil
	}
	return edges[0]
}

// AllRelated returns every partner of a relation in insertion order.
func (e *Entity) AllRelated(name string) []*Entity {
	return append([]*Entity(nil), e.relations[name]...)
}

// RelatedOfType returns the partners whose type matches typeName, bare
// or qualified.
func (e *Entity) RelatedOfType(name, typeName string) []*Entity {
	var out []*Entity
	for _, p := range e.relations[name] {
		if p.typ.matchesName(typeName) {
			out = append(out, p)
		}
	}
	return out
}

// SetRelated assigns the single partner of a one-to-one or many-to-one
// relation. The zero Ref clears it. Collection relations reject single
// assignment; use SetRelatedAll.
func (e *Entity) SetRelated(name string, ref Ref) error {
	rel, ok := e.typ.relationByName(name)
	if !ok {
		return validationf("type %q has no relation %q", e.typ.Qualified(), name)
	}
	if rel.kind == OneToMany {
		return validationf("relation %q is %s and requires a list", name, rel.kind)
	}
	if ref.isZero() {
		return e.setRelation(rel, nil)
	}
	return e.setRelation(rel, []Ref{ref})
}

// SetRelatedAll replaces the partner set of a collection relation.
// Single-valued relations reject lists.
func (e *Entity) SetRelatedAll(name string, refs []Ref) error {
	rel, ok := e.typ.relationByName(name)
	if !ok {
		return validationf("type %q has no relation %q", e.typ.Qualified(), name)
	}
	if !rel.kind.Many() {
		return validationf("relation %q is %s and takes a single reference", name, rel.kind)
	}
	return e.setRelation(rel, refs)
}

// AddRelated adds one partner to a collection relation, a no-op when
// the partner is already present.
func (e *Entity) AddRelated(name string, ref Ref) error {
	rel, ok := e.typ.relationByName(name)
	if !ok {
		return validationf("type %q has no relation %q", e.typ.Qualified(), name)
	}
	if !rel.kind.Many() {
		return validationf("relation %q is %s; use SetRelated", name, rel.kind)
	}
	refs := make([]Ref, 0, len(e.relations[name])+1)
	for _, p := range e.relations[name] {
		refs = append(refs, To(p))
	}
	refs = append(refs, ref)
	return e.setRelation(rel, refs)
}

// RemoveRelated removes one partner from a collection relation, a no-op
// when the partner is absent.
func (e *Entity) RemoveRelated(name string, ref Ref) error {
	rel, ok := e.typ.relationByName(name)
	if !ok {
		return validationf("type %q has no relation %q", e.typ.Qualified(), name)
	}
	if !rel.kind.Many() {
		return validationf("relation %q is %s; use SetRelated with a zero Ref", name, rel.kind)
	}
	victim, err := e.resolveRef(rel, ref)
	if err != nil {
		return err
	}
	var refs []Ref
	for _, p := range e.relations[name] {
		if p != victim {
			refs = append(refs, To(p))
		}
	}
	return e.setRelation(rel, refs)
}

// setRelation replaces a relation's partner set. All references resolve
// and validate before anything mutates, so a bad element leaves every
// entity untouched. Then the set difference against the current edges is
// applied: removals first, additions after, each re-persisting both
// sides.
func (e *Entity) setRelation(rel *Relation, refs []Ref) error {
	partners := make([]*Entity, 0, len(refs))
	seen := make(map[*Entity]bool, len(refs))
	for _, ref := range refs {
		p, err := e.resolveRef(rel, ref)
		if err != nil {
			return err
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		partners = append(partners, p)
	}
	for _, p := range partners {
		if err := e.validatePartner(rel, p); err != nil {
			return err
		}
	}

	existing := e.relations[rel.name]
	inExisting := make(map[*Entity]bool, len(existing))
	for _, p := range existing {
		inExisting[p] = true
	}

	var toRemove, toAdd []*Entity
	for _, p := range existing {
		if !seen[p] {
			toRemove = append(toRemove, p)
		}
	}
	for _, p := range partners {
		if !inExisting[p] {
			toAdd = append(toAdd, p)
		}
	}

	// A member joining a one-to-many collection leaves its prior owner
	// first: membership is exclusive. A one-to-one partner likewise
	// detaches from its prior partner on both ends.
	if rel.kind == OneToMany || rel.kind == OneToOne {
		for _, p := range toAdd {
			if prior := p.Related(rel.reverseName); prior != nil && prior != e {
				if err := removeEdge(prior, rel.name, p, rel.reverseName); err != nil {
					return err
				}
			}
		}
	}

	for _, p := range toRemove {
		if err := removeEdge(e, rel.name, p, rel.reverseName); err != nil {
			return err
		}
	}
	for _, p := range toAdd {
		if err := addEdge(e, rel.name, p, rel.reverseName); err != nil {
			return err
		}
	}
	return nil
}

// resolveRef turns a Ref into a live entity, trying the relation's
// target types by id and then by alias. An unresolvable key is a
// not-found error.
func (e *Entity) resolveRef(rel *Relation, ref Ref) (*Entity, error) {
	if ref.entity != nil {
		return ref.entity, nil
	}
	if ref.key == "" {
		return nil, validationf("relation %q got an empty reference", rel.name)
	}
	p, err := rel.resolveAt(e.typ.schema, ref.key, DefaultLoadDepth)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFoundf("relation %q: no %v entity found for %q", rel.name, rel.targets, ref.key)
	}
	return p, nil
}

// validatePartner checks a resolved partner against the relation's
// declared target types and verifies the partner type declares a
// matching reverse descriptor.
func (e *Entity) validatePartner(rel *Relation, p *Entity) error {
	okType := false
	for _, name := range rel.targets {
		for cur := p.typ; cur != nil; cur = cur.parent {
			if cur.matchesName(name) {
				okType = true
				break
			}
		}
		if okType {
			break
		}
	}
	if !okType {
		return validationf("relation %q does not accept type %q", rel.name, p.typ.Qualified())
	}

	prel, ok := p.typ.relationByName(rel.reverseName)
	if !ok {
		return validationf("type %q declares no reverse relation %q for %q",
			p.typ.Qualified(), rel.reverseName, rel.name)
	}
	if prel.kind != rel.kind.reverse() {
		return validationf("reverse relation %q on %q is %s, want %s",
			rel.reverseName, p.typ.Qualified(), prel.kind, rel.kind.reverse())
	}
	return nil
}

// resolveAt resolves a loose key against the relation's target types:
// direct load first, alias second, in declaration order. Returns
// (nil, nil) when nothing matches.
func (r *Relation) resolveAt(s *Schema, key string, level int) (*Entity, error) {
	if level < 1 {
		level = 1
	}
	for _, targetName := range r.targets {
		tt, ok := s.TypeByName(targetName)
		if !ok {
			continue
		}
		e, err := tt.LoadDepth(key, level)
		if err != nil {
			return nil, err
		}
		if e != nil {
			return e, nil
		}
		e, err = tt.loadByAliasDepth(key, level)
		if err != nil {
			return nil, err
		}
		if e != nil {
			return e, nil
		}
	}
	return nil, nil
}

func addEdge(a *Entity, aName string, b *Entity, bName string) error {
	a.attach(aName, b)
	b.attach(bName, a)
	if err := a.save(); err != nil {
		return err
	}
	return b.save()
}

func removeEdge(a *Entity, aName string, b *Entity, bName string) error {
	a.detachPartner(aName, b)
	b.detachPartner(bName, a)
	if err := a.save(); err != nil {
		return err
	}
	return b.save()
}

// attach records a partner in memory, deduplicating by instance.
func (e *Entity) attach(name string, partner *Entity) {
	for _, cur := range e.relations[name] {
		if cur == partner {
			return
		}
	}
	e.relations[name] = append(e.relations[name], partner)
}

func (e *Entity) detachPartner(name string, partner *Entity) {
	edges := e.relations[name]
	for i, cur := range edges {
		if cur == partner {
			e.relations[name] = append(edges[:i:i], edges[i+1:]...)
			return
		}
	}
}
