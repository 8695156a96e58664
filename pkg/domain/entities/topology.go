package entities

// ElementKind distinguishes the two element families of a network case
type ElementKind int

const (
	BusElement ElementKind = iota
	BranchElement
)

// String method for ElementKind enum
func (k ElementKind) String() string {
	switch k {
	case BusElement:
		return "bus"
	case BranchElement:
		return "branch"
	default:
		return "Unknown"
	}
}

// Topology is the view of a live network the case configuration needs:
// which buses and branches exist and whether each one is in service.
type Topology interface {
	// ElementIDs returns the ids of all elements of the kind, active or not
	ElementIDs(kind ElementKind) []string
	// ElementStatus reports whether the element exists and whether it is active
	ElementStatus(kind ElementKind, id string) (present bool, active bool)
}

// ActiveElementIDs returns the ids of the in-service elements of a kind
func ActiveElementIDs(t Topology, kind ElementKind) []string {
	var ids []string
	for _, id := range t.ElementIDs(kind) {
		if _, active := t.ElementStatus(kind, id); active {
			ids = append(ids, id)
		}
	}
	return ids
}
