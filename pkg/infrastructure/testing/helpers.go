package testing

import (
	"strings"

	"github.com/gridml/netcase/pkg/domain/entities"
	"github.com/gridml/netcase/pkg/infrastructure/powerflow"
)

// FourBusYAML is a small meshed case: one swing, one PV, two load buses
const FourBusYAML = `id: fourbus
baseMVA: 100
buses:
  - id: Bus1
    type: swing
    vSpec: 1.0
  - id: Bus2
    type: pv
    vSpec: 1.02
    genP: 0.4
    loadP: 0.1
    loadQ: 0.05
  - id: Bus3
    loadP: 0.5
    loadQ: 0.2
  - id: Bus4
    loadP: 0.3
    loadQ: 0.1
branches:
  - {from: Bus1, to: Bus2, r: 0.02, x: 0.06, b: 0.03}
  - {from: Bus1, to: Bus3, r: 0.08, x: 0.24, b: 0.025}
  - {from: Bus2, to: Bus3, r: 0.06, x: 0.18, b: 0.02}
  - {from: Bus3, to: Bus4, r: 0.01, x: 0.03, b: 0.01}
  - {from: Bus2, to: Bus4, r: 0.06, x: 0.18, b: 0.02}
`

// BuildFourBusNetwork returns a fresh copy of the FourBusYAML case
func BuildFourBusNetwork() *powerflow.Network {
	net, err := powerflow.ReadNetwork(strings.NewReader(FourBusYAML))
	if err != nil {
		panic(err)
	}
	return net
}

// FourBusBusIDs lists the bus ids of the four bus case in file order
func FourBusBusIDs() []string {
	return []string{"Bus1", "Bus2", "Bus3", "Bus4"}
}

// FourBusBranchIDs lists the branch ids of the four bus case in file order
func FourBusBranchIDs() []string {
	return []string{
		"Bus1->Bus2(1)",
		"Bus1->Bus3(1)",
		"Bus2->Bus3(1)",
		"Bus3->Bus4(1)",
		"Bus2->Bus4(1)",
	}
}

// BuildTwoBusNetwork returns a swing bus feeding one load over one line
func BuildTwoBusNetwork(loadP, loadQ float64) *powerflow.Network {
	net := powerflow.NewNetwork("twobus", 100)
	must(net.AddBus(&powerflow.Bus{ID: "Bus1", Number: 1, Type: powerflow.SwingBus, Active: true, VSpec: 1.0, VMag: 1.0}))
	must(net.AddBus(&powerflow.Bus{ID: "Bus2", Number: 2, Type: powerflow.PQBus, Active: true, LoadP: loadP, LoadQ: loadQ, VSpec: 1.0, VMag: 1.0}))
	must(net.AddBranch(&powerflow.Branch{From: "Bus1", To: "Bus2", R: 0.01, X: 0.1, Active: true}))
	return net
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Topology is a hand-built entities.Topology for registry tests
type Topology struct {
	ids    map[entities.ElementKind][]string
	status map[entities.ElementKind]map[string]bool
}

// NewTopology creates an empty topology
func NewTopology() *Topology {
	return &Topology{
		ids: make(map[entities.ElementKind][]string),
		status: map[entities.ElementKind]map[string]bool{
			entities.BusElement:    {},
			entities.BranchElement: {},
		},
	}
}

// WithBus adds a bus
func (t *Topology) WithBus(id string, active bool) *Topology {
	return t.with(entities.BusElement, id, active)
}

// WithBranch adds a branch
func (t *Topology) WithBranch(id string, active bool) *Topology {
	return t.with(entities.BranchElement, id, active)
}

func (t *Topology) with(kind entities.ElementKind, id string, active bool) *Topology {
	if _, exists := t.status[kind][id]; !exists {
		t.ids[kind] = append(t.ids[kind], id)
	}
	t.status[kind][id] = active
	return t
}

// ElementIDs implements entities.Topology
func (t *Topology) ElementIDs(kind entities.ElementKind) []string {
	return t.ids[kind]
}

// ElementStatus implements entities.Topology
func (t *Topology) ElementStatus(kind entities.ElementKind, id string) (bool, bool) {
	active, ok := t.status[kind][id]
	return ok, active
}
