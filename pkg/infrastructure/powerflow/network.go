package powerflow

import (
	"errors"
	"fmt"

	"github.com/gridml/netcase/pkg/domain/entities"
)

var (
	// ErrUnknownBus is returned when a bus id is not part of the network
	ErrUnknownBus = errors.New("powerflow: unknown bus")

	// ErrUnknownBranch is returned when a branch id is not part of the network
	ErrUnknownBranch = errors.New("powerflow: unknown branch")
)

// BusType is the load flow classification of a bus
type BusType int

const (
	PQBus BusType = iota
	PVBus
	SwingBus
)

// String method for BusType enum
func (t BusType) String() string {
	switch t {
	case PQBus:
		return "pq"
	case PVBus:
		return "pv"
	case SwingBus:
		return "swing"
	default:
		return "Unknown"
	}
}

// Bus is a network node. Powers are in per unit on the network base,
// angles in radians.
type Bus struct {
	ID     string
	Number int
	Name   string
	Type   BusType
	Active bool

	LoadP, LoadQ   float64
	GenP, GenQ     float64
	VSpec          float64
	VMag, VAng     float64
	ShuntG, ShuntB float64
}

// IsSwing reports whether the bus is the angle reference
func (b *Bus) IsSwing() bool { return b.Type == SwingBus }

// IsGenPV reports whether the bus is voltage controlled
func (b *Bus) IsGenPV() bool { return b.Type == PVBus }

// IsGen reports whether the bus carries generation
func (b *Bus) IsGen() bool {
	return b.Type != PQBus || b.GenP != 0 || b.GenQ != 0
}

// Branch is a line or transformer in pi-model form
type Branch struct {
	ID      string
	From    string
	To      string
	Circuit int
	R, X, B float64
	// Ratio is the off-nominal tap on the from side; 0 means 1
	Ratio  float64
	Active bool
}

// BranchID builds the canonical branch id, e.g. Bus1->Bus2(1)
func BranchID(from, to string, circuit int) string {
	return fmt.Sprintf("%s->%s(%d)", from, to, circuit)
}

// Network is an AC load flow network case
type Network struct {
	ID      string
	BaseMVA float64

	buses      []*Bus
	busByID    map[string]*Bus
	branches   []*Branch
	branchByID map[string]*Branch
}

// NewNetwork creates an empty network
func NewNetwork(id string, baseMVA float64) *Network {
	return &Network{
		ID:         id,
		BaseMVA:    baseMVA,
		busByID:    make(map[string]*Bus),
		branchByID: make(map[string]*Branch),
	}
}

// Verify interface compliance
var _ entities.Topology = (*Network)(nil)

// AddBus adds a bus; ids must be unique
func (n *Network) AddBus(bus *Bus) error {
	if bus.ID == "" {
		return fmt.Errorf("bus %d has no id", bus.Number)
	}
	if _, exists := n.busByID[bus.ID]; exists {
		return fmt.Errorf("duplicate bus %s", bus.ID)
	}
	n.buses = append(n.buses, bus)
	n.busByID[bus.ID] = bus
	return nil
}

// AddBranch adds a branch between two existing buses, assigning its id
func (n *Network) AddBranch(branch *Branch) error {
	if _, ok := n.busByID[branch.From]; !ok {
		return fmt.Errorf("%w: %s (branch from)", ErrUnknownBus, branch.From)
	}
	if _, ok := n.busByID[branch.To]; !ok {
		return fmt.Errorf("%w: %s (branch to)", ErrUnknownBus, branch.To)
	}
	if branch.Circuit == 0 {
		branch.Circuit = 1
	}
	branch.ID = BranchID(branch.From, branch.To, branch.Circuit)
	if _, exists := n.branchByID[branch.ID]; exists {
		return fmt.Errorf("duplicate branch %s", branch.ID)
	}
	n.branches = append(n.branches, branch)
	n.branchByID[branch.ID] = branch
	return nil
}

// Bus returns a bus by id
func (n *Network) Bus(id string) (*Bus, bool) {
	b, ok := n.busByID[id]
	return b, ok
}

// Branch returns a branch by id
func (n *Network) Branch(id string) (*Branch, bool) {
	b, ok := n.branchByID[id]
	return b, ok
}

// Buses returns all buses in insertion order
func (n *Network) Buses() []*Bus {
	return n.buses
}

// Branches returns all branches in insertion order
func (n *Network) Branches() []*Branch {
	return n.branches
}

// NumActiveBuses counts the in-service buses
func (n *Network) NumActiveBuses() int {
	count := 0
	for _, b := range n.buses {
		if b.Active {
			count++
		}
	}
	return count
}

// NumActiveBranches counts the in-service branches
func (n *Network) NumActiveBranches() int {
	count := 0
	for _, br := range n.branches {
		if br.Active {
			count++
		}
	}
	return count
}

// SetBusLoad sets the scheduled load of a bus
func (n *Network) SetBusLoad(id string, p, q float64) error {
	b, ok := n.busByID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBus, id)
	}
	b.LoadP, b.LoadQ = p, q
	return nil
}

// SetBusActive switches a bus in or out of service
func (n *Network) SetBusActive(id string, active bool) error {
	b, ok := n.busByID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBus, id)
	}
	b.Active = active
	return nil
}

// SetBranchActive switches a branch in or out of service
func (n *Network) SetBranchActive(id string, active bool) error {
	br, ok := n.branchByID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBranch, id)
	}
	br.Active = active
	return nil
}

// TotalLoad sums the load of the active buses
func (n *Network) TotalLoad() complex128 {
	var total complex128
	for _, b := range n.buses {
		if b.Active {
			total += complex(b.LoadP, b.LoadQ)
		}
	}
	return total
}

// Clone returns a deep copy of the network
func (n *Network) Clone() *Network {
	c := NewNetwork(n.ID, n.BaseMVA)
	for _, b := range n.buses {
		cb := *b
		c.buses = append(c.buses, &cb)
		c.busByID[cb.ID] = &cb
	}
	for _, br := range n.branches {
		cbr := *br
		c.branches = append(c.branches, &cbr)
		c.branchByID[cbr.ID] = &cbr
	}
	return c
}

// ElementIDs implements entities.Topology
func (n *Network) ElementIDs(kind entities.ElementKind) []string {
	if kind == entities.BranchElement {
		ids := make([]string, len(n.branches))
		for i, br := range n.branches {
			ids[i] = br.ID
		}
		return ids
	}
	ids := make([]string, len(n.buses))
	for i, b := range n.buses {
		ids[i] = b.ID
	}
	return ids
}

// ElementStatus implements entities.Topology
func (n *Network) ElementStatus(kind entities.ElementKind, id string) (bool, bool) {
	if kind == entities.BranchElement {
		br, ok := n.branchByID[id]
		if !ok {
			return false, false
		}
		return true, br.Active
	}
	b, ok := n.busByID[id]
	if !ok {
		return false, false
	}
	return true, b.Active
}
