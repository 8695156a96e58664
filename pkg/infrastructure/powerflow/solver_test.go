package powerflow_test

import (
	"context"
	"errors"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridml/netcase/pkg/infrastructure/powerflow"
	testhelpers "github.com/gridml/netcase/pkg/infrastructure/testing"
)

func TestNewtonSolver_TwoBus(t *testing.T) {
	net := testhelpers.BuildTwoBusNetwork(0.5, 0.2)
	solver := powerflow.NewNewtonSolver(powerflow.SolverConfig{Tolerance: 1e-8})

	result, err := solver.Solve(context.Background(), net)
	require.NoError(t, err)
	assert.True(t, result.Converged)
	assert.Greater(t, result.Iterations, 0)
	assert.Less(t, result.MaxMismatch, 1e-8)

	swing, _ := net.Bus("Bus1")
	load, _ := net.Bus("Bus2")
	assert.Equal(t, 1.0, swing.VMag)
	assert.Equal(t, 0.0, swing.VAng)
	assert.Less(t, load.VMag, 1.0)
	assert.Less(t, load.VAng, 0.0)

	// the line delivers exactly the load: S_load = V2 * conj((V1 - V2) / z)
	z := complex(0.01, 0.1)
	v1 := cmplx.Rect(swing.VMag, swing.VAng)
	v2 := cmplx.Rect(load.VMag, load.VAng)
	delivered := v2 * cmplx.Conj((v1-v2)/z)
	assert.InDelta(t, 0.5, real(delivered), 1e-6)
	assert.InDelta(t, 0.2, imag(delivered), 1e-6)

	// swing generation covers load plus losses
	assert.Greater(t, swing.GenP, 0.5)
}

func TestNewtonSolver_FourBus(t *testing.T) {
	net := testhelpers.BuildFourBusNetwork()
	solver := powerflow.NewNewtonSolver(powerflow.DefaultSolverConfig())

	result, err := solver.Solve(context.Background(), net)
	require.NoError(t, err)
	assert.True(t, result.Converged)

	mismatch, err := powerflow.Mismatch(net)
	require.NoError(t, err)
	assert.Less(t, mismatch, 1e-4)

	pv, _ := net.Bus("Bus2")
	assert.Equal(t, 1.02, pv.VMag)

	// power balance: generation = load + losses, losses small and positive
	var gen, load complex128
	for _, b := range net.Buses() {
		gen += complex(b.GenP, b.GenQ)
		load += complex(b.LoadP, b.LoadQ)
	}
	losses := real(gen - load)
	assert.Greater(t, losses, 0.0)
	assert.Less(t, losses, 0.1)

	// flows leaving the swing bus add up to its injection
	swing, _ := net.Bus("Bus1")
	var out complex128
	for _, br := range net.Branches() {
		if br.From == "Bus1" {
			out += powerflow.BranchFlow(net, br)
		}
	}
	assert.InDelta(t, swing.GenP-swing.LoadP, real(out), 1e-6)
	assert.InDelta(t, swing.GenQ-swing.LoadQ, imag(out), 1e-6)
}

func TestNewtonSolver_OutOfServiceBranch(t *testing.T) {
	net := testhelpers.BuildFourBusNetwork()
	require.NoError(t, net.SetBranchActive("Bus3->Bus4(1)", false))

	_, err := powerflow.NewNewtonSolver(powerflow.DefaultSolverConfig()).Solve(context.Background(), net)
	require.NoError(t, err)

	br, _ := net.Branch("Bus3->Bus4(1)")
	assert.Equal(t, complex128(0), powerflow.BranchFlow(net, br))
}

func TestNewtonSolver_DeenergizedBus(t *testing.T) {
	net := testhelpers.BuildTwoBusNetwork(0.2, 0.1)
	require.NoError(t, net.SetBranchActive("Bus1->Bus2(1)", false))

	result, err := powerflow.NewNewtonSolver(powerflow.DefaultSolverConfig()).Solve(context.Background(), net)
	require.NoError(t, err)
	assert.True(t, result.Converged)

	load, _ := net.Bus("Bus2")
	assert.Equal(t, 0.0, load.VMag)
}

func TestNewtonSolver_NoSwing(t *testing.T) {
	net := testhelpers.BuildTwoBusNetwork(0.2, 0.1)
	require.NoError(t, net.SetBusActive("Bus1", false))

	_, err := powerflow.NewNewtonSolver(powerflow.DefaultSolverConfig()).Solve(context.Background(), net)
	assert.ErrorIs(t, err, powerflow.ErrNoSwingBus)
}

func TestNewtonSolver_NotConverged(t *testing.T) {
	// far beyond the transfer limit of the line
	net := testhelpers.BuildTwoBusNetwork(20, 10)
	solver := powerflow.NewNewtonSolver(powerflow.SolverConfig{MaxIterations: 5})

	result, err := solver.Solve(context.Background(), net)
	require.Error(t, err)
	assert.True(t, errors.Is(err, powerflow.ErrNotConverged))
	assert.False(t, result.Converged)
	assert.LessOrEqual(t, result.Iterations, 5)
}

func TestNewtonSolver_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := powerflow.NewNewtonSolver(powerflow.DefaultSolverConfig()).
		Solve(ctx, testhelpers.BuildTwoBusNetwork(0.1, 0))
	assert.ErrorIs(t, err, context.Canceled)
}
