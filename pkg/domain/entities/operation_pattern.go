package entities

import "sort"

// idSet is an insertion-ordered set of element ids
type idSet struct {
	order   []string
	members map[string]struct{}
}

func newIDSet() idSet {
	return idSet{members: make(map[string]struct{})}
}

func (s *idSet) add(id string) bool {
	if _, ok := s.members[id]; ok {
		return false
	}
	s.members[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

func (s *idSet) has(id string) bool {
	_, ok := s.members[id]
	return ok
}

func (s *idSet) list() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// OperationPattern is a named topology variant, described by the buses and
// branches that are out of service relative to the full reference topology.
type OperationPattern struct {
	name            string
	missingBuses    idSet
	missingBranches idSet
}

// NewOperationPattern creates a pattern with empty missing sets
func NewOperationPattern(name string) *OperationPattern {
	return &OperationPattern{
		name:            name,
		missingBuses:    newIDSet(),
		missingBranches: newIDSet(),
	}
}

// Name returns the pattern name
func (p *OperationPattern) Name() string {
	return p.name
}

// MissingBusIDs returns the missing bus ids in the order they were added
func (p *OperationPattern) MissingBusIDs() []string {
	return p.missingBuses.list()
}

// MissingBranchIDs returns the missing branch ids in the order they were added
func (p *OperationPattern) MissingBranchIDs() []string {
	return p.missingBranches.list()
}

// MarkMissing records an element as absent in this variant.
// It returns false if the element was already missing.
func (p *OperationPattern) MarkMissing(kind ElementKind, id string) bool {
	return p.set(kind).add(id)
}

// MarkIntroduced is called when an id enters the reference universe after
// the pattern was defined. Such an element did not exist when the variant was
// recorded, so it is missing from it.
func (p *OperationPattern) MarkIntroduced(kind ElementKind, id string) {
	p.set(kind).add(id)
}

// IsMissing reports whether the element is in the pattern's missing set
func (p *OperationPattern) IsMissing(kind ElementKind, id string) bool {
	return p.set(kind).has(id)
}

// Matches reports whether the live topology is this variant: every element
// present in the topology is inactive exactly when it is in the missing set.
func (p *OperationPattern) Matches(t Topology) bool {
	for _, kind := range []ElementKind{BusElement, BranchElement} {
		set := p.set(kind)
		for _, id := range t.ElementIDs(kind) {
			_, active := t.ElementStatus(kind, id)
			if active == set.has(id) {
				return false
			}
		}
	}
	return true
}

// Equal compares name and missing sets, ignoring id order
func (p *OperationPattern) Equal(o *OperationPattern) bool {
	if p.name != o.name {
		return false
	}
	return sameMembers(p.MissingBusIDs(), o.MissingBusIDs()) &&
		sameMembers(p.MissingBranchIDs(), o.MissingBranchIDs())
}

// Clone returns an independent copy of the pattern
func (p *OperationPattern) Clone() *OperationPattern {
	c := NewOperationPattern(p.name)
	for _, id := range p.missingBuses.order {
		c.missingBuses.add(id)
	}
	for _, id := range p.missingBranches.order {
		c.missingBranches.add(id)
	}
	return c
}

func (p *OperationPattern) set(kind ElementKind) *idSet {
	if kind == BranchElement {
		return &p.missingBranches
	}
	return &p.missingBuses
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
