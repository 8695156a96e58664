package powerflow

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNotConverged is returned when the mismatch is still above tolerance
// after the iteration limit
var ErrNotConverged = errors.New("powerflow: load flow did not converge")

// Result reports the outcome of a load flow run
type Result struct {
	Converged   bool
	Iterations  int
	MaxMismatch float64
}

// SolverConfig holds the Newton-Raphson stopping criteria
type SolverConfig struct {
	// Tolerance is the max power mismatch in per unit
	Tolerance     float64
	MaxIterations int
}

// DefaultSolverConfig returns the usual 1e-4 pu / 20 iteration settings
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{Tolerance: 1e-4, MaxIterations: 20}
}

// Solver runs an AC load flow on a network in place
type Solver interface {
	Solve(ctx context.Context, net *Network) (Result, error)
}

// NewtonSolver is a polar-form Newton-Raphson load flow
type NewtonSolver struct {
	config SolverConfig
}

// NewNewtonSolver creates a solver; zero fields fall back to the defaults
func NewNewtonSolver(config SolverConfig) *NewtonSolver {
	def := DefaultSolverConfig()
	if config.Tolerance <= 0 {
		config.Tolerance = def.Tolerance
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = def.MaxIterations
	}
	return &NewtonSolver{config: config}
}

// Verify interface compliance
var _ Solver = (*NewtonSolver)(nil)

// Solve runs the load flow and writes bus voltages and swing/PV generation
// back into the network. Active buses not energized from the swing bus get
// zero voltage.
func (s *NewtonSolver) Solve(ctx context.Context, net *Network) (Result, error) {
	isl, err := buildIsland(net)
	if err != nil {
		return Result{}, err
	}
	for _, b := range net.Buses() {
		if _, ok := isl.pos[b.ID]; !ok && b.Active {
			b.VMag, b.VAng = 0, 0
		}
	}

	var pvpq, pq []int
	for i, b := range isl.buses {
		switch b.Type {
		case SwingBus, PVBus:
			b.VMag = b.VSpec
		default:
			if b.VMag <= 0 {
				b.VMag = 1
			}
		}
		if !b.IsSwing() {
			pvpq = append(pvpq, i)
			if b.Type == PQBus {
				pq = append(pq, i)
			}
		}
	}

	result := Result{}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		inj := isl.injections()
		mismatch := isl.mismatchVector(inj, pvpq, pq)
		result.MaxMismatch = maxAbs(mismatch)
		if result.MaxMismatch < s.config.Tolerance {
			result.Converged = true
			break
		}
		if result.Iterations >= s.config.MaxIterations || math.IsNaN(result.MaxMismatch) {
			break
		}

		jac := isl.jacobian(inj, pvpq, pq)
		var dx mat.VecDense
		if err := dx.SolveVec(jac, mat.NewVecDense(len(mismatch), mismatch)); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return result, fmt.Errorf("jacobian solve at iteration %d: %w", result.Iterations+1, err)
			}
		}

		for j, i := range pvpq {
			isl.buses[i].VAng += dx.AtVec(j)
		}
		for j, i := range pq {
			isl.buses[i].VMag += dx.AtVec(len(pvpq) + j)
		}
		result.Iterations++
	}

	isl.updateGeneration(isl.injections())

	if !result.Converged {
		return result, fmt.Errorf("%w after %d iterations (mismatch %.3g pu)",
			ErrNotConverged, result.Iterations, result.MaxMismatch)
	}
	return result, nil
}

// Mismatch returns the largest power mismatch in per unit at the current
// network voltages
func Mismatch(net *Network) (float64, error) {
	isl, err := buildIsland(net)
	if err != nil {
		return 0, err
	}
	var pvpq, pq []int
	for i, b := range isl.buses {
		if !b.IsSwing() {
			pvpq = append(pvpq, i)
			if b.Type == PQBus {
				pq = append(pq, i)
			}
		}
	}
	return maxAbs(isl.mismatchVector(isl.injections(), pvpq, pq)), nil
}

// mismatchVector stacks the P mismatch of pvpq buses and Q mismatch of pq buses
func (isl *island) mismatchVector(inj []complex128, pvpq, pq []int) []float64 {
	out := make([]float64, 0, len(pvpq)+len(pq))
	for _, i := range pvpq {
		b := isl.buses[i]
		out = append(out, (b.GenP-b.LoadP)-real(inj[i]))
	}
	for _, i := range pq {
		b := isl.buses[i]
		out = append(out, (b.GenQ-b.LoadQ)-imag(inj[i]))
	}
	return out
}

// jacobian assembles the polar Newton-Raphson Jacobian
//
//	| dP/dθ  dP/dV |
//	| dQ/dθ  dQ/dV |
func (isl *island) jacobian(inj []complex128, pvpq, pq []int) *mat.Dense {
	np := len(pvpq)
	dim := np + len(pq)
	jac := mat.NewDense(dim, dim, nil)

	vm := make([]float64, len(isl.buses))
	va := make([]float64, len(isl.buses))
	for i, b := range isl.buses {
		vm[i], va[i] = b.VMag, b.VAng
	}

	for r, i := range pvpq {
		for c, k := range pvpq {
			jac.Set(r, c, dPdTheta(isl, inj, vm, va, i, k))
		}
		for c, k := range pq {
			jac.Set(r, np+c, dPdV(isl, inj, vm, va, i, k))
		}
	}
	for r, i := range pq {
		for c, k := range pvpq {
			jac.Set(np+r, c, dQdTheta(isl, inj, vm, va, i, k))
		}
		for c, k := range pq {
			jac.Set(np+r, np+c, dQdV(isl, inj, vm, va, i, k))
		}
	}
	return jac
}

func dPdTheta(isl *island, inj []complex128, vm, va []float64, i, k int) float64 {
	g, b := real(isl.y[i][k]), imag(isl.y[i][k])
	if i == k {
		return -imag(inj[i]) - b*vm[i]*vm[i]
	}
	t := va[i] - va[k]
	return vm[i] * vm[k] * (g*math.Sin(t) - b*math.Cos(t))
}

func dPdV(isl *island, inj []complex128, vm, va []float64, i, k int) float64 {
	g, b := real(isl.y[i][k]), imag(isl.y[i][k])
	if i == k {
		return real(inj[i])/vm[i] + g*vm[i]
	}
	t := va[i] - va[k]
	return vm[i] * (g*math.Cos(t) + b*math.Sin(t))
}

func dQdTheta(isl *island, inj []complex128, vm, va []float64, i, k int) float64 {
	g, b := real(isl.y[i][k]), imag(isl.y[i][k])
	if i == k {
		return real(inj[i]) - g*vm[i]*vm[i]
	}
	t := va[i] - va[k]
	return -vm[i] * vm[k] * (g*math.Cos(t) + b*math.Sin(t))
}

func dQdV(isl *island, inj []complex128, vm, va []float64, i, k int) float64 {
	g, b := real(isl.y[i][k]), imag(isl.y[i][k])
	if i == k {
		return imag(inj[i])/vm[i] - b*vm[i]
	}
	t := va[i] - va[k]
	return vm[i] * (g*math.Sin(t) - b*math.Cos(t))
}

// updateGeneration sets swing P/Q and PV Q from the solved injections
func (isl *island) updateGeneration(inj []complex128) {
	for i, b := range isl.buses {
		switch b.Type {
		case SwingBus:
			b.GenP = real(inj[i]) + b.LoadP
			b.GenQ = imag(inj[i]) + b.LoadQ
		case PVBus:
			b.GenQ = imag(inj[i]) + b.LoadQ
		}
	}
}

func maxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if math.IsNaN(x) {
			return x
		}
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
