package powerflow

import (
	"errors"
	"math/cmplx"
)

// ErrNoSwingBus is returned when no active swing bus exists
var ErrNoSwingBus = errors.New("powerflow: no active swing bus")

// island is the set of buses energized from the swing bus, with the
// admittance matrix over them. Row i corresponds to buses[i].
type island struct {
	buses []*Bus
	pos   map[string]int
	y     [][]complex128
}

// branchAdmittances returns the pi-model terms of a branch
func branchAdmittances(br *Branch) (yff, yft, ytf, ytt complex128) {
	y := 1 / complex(br.R, br.X)
	charging := complex(0, br.B/2)
	tap := br.Ratio
	if tap == 0 {
		tap = 1
	}
	yff = (y + charging) / complex(tap*tap, 0)
	yft = -y / complex(tap, 0)
	ytf = -y / complex(tap, 0)
	ytt = y + charging
	return
}

// buildIsland collects the active buses reachable from the swing bus over
// active branches and assembles their admittance matrix.
func buildIsland(net *Network) (*island, error) {
	var swing *Bus
	for _, b := range net.Buses() {
		if b.Active && b.IsSwing() {
			swing = b
			break
		}
	}
	if swing == nil {
		return nil, ErrNoSwingBus
	}

	adjacent := make(map[string][]string)
	for _, br := range net.Branches() {
		if !usable(net, br) {
			continue
		}
		adjacent[br.From] = append(adjacent[br.From], br.To)
		adjacent[br.To] = append(adjacent[br.To], br.From)
	}

	reached := map[string]bool{swing.ID: true}
	queue := []string{swing.ID}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, next := range adjacent[curr] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}

	isl := &island{pos: make(map[string]int)}
	for _, b := range net.Buses() {
		if reached[b.ID] {
			isl.pos[b.ID] = len(isl.buses)
			isl.buses = append(isl.buses, b)
		}
	}

	n := len(isl.buses)
	isl.y = make([][]complex128, n)
	for i := range isl.y {
		isl.y[i] = make([]complex128, n)
		b := isl.buses[i]
		isl.y[i][i] += complex(b.ShuntG, b.ShuntB)
	}
	for _, br := range net.Branches() {
		if !usable(net, br) {
			continue
		}
		f, okF := isl.pos[br.From]
		t, okT := isl.pos[br.To]
		if !okF || !okT {
			continue
		}
		yff, yft, ytf, ytt := branchAdmittances(br)
		isl.y[f][f] += yff
		isl.y[f][t] += yft
		isl.y[t][f] += ytf
		isl.y[t][t] += ytt
	}
	return isl, nil
}

func usable(net *Network, br *Branch) bool {
	if !br.Active {
		return false
	}
	from, _ := net.Bus(br.From)
	to, _ := net.Bus(br.To)
	return from != nil && to != nil && from.Active && to.Active
}

// voltage returns the complex voltage of a bus
func voltage(b *Bus) complex128 {
	return cmplx.Rect(b.VMag, b.VAng)
}

// injections computes the complex power injected at each island bus
func (isl *island) injections() []complex128 {
	n := len(isl.buses)
	v := make([]complex128, n)
	for i, b := range isl.buses {
		v[i] = voltage(b)
	}
	s := make([]complex128, n)
	for i := 0; i < n; i++ {
		var current complex128
		for k := 0; k < n; k++ {
			if isl.y[i][k] != 0 {
				current += isl.y[i][k] * v[k]
			}
		}
		s[i] = v[i] * cmplx.Conj(current)
	}
	return s
}

// BranchFlow returns the complex power entering a branch at its from end,
// in per unit. Out of service branches carry no flow.
func BranchFlow(net *Network, br *Branch) complex128 {
	if !usable(net, br) {
		return 0
	}
	from, _ := net.Bus(br.From)
	to, _ := net.Bus(br.To)
	yff, yft, _, _ := branchAdmittances(br)
	vf, vt := voltage(from), voltage(to)
	current := yff*vf + yft*vt
	return vf * cmplx.Conj(current)
}

// Energized reports whether every active bus is reachable from the swing
// bus over in-service branches
func Energized(net *Network) bool {
	isl, err := buildIsland(net)
	if err != nil {
		return false
	}
	return len(isl.buses) == net.NumActiveBuses()
}
