package traindata

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gridml/netcase/pkg/application/dto"
	"github.com/gridml/netcase/pkg/domain/entities"
	"github.com/gridml/netcase/pkg/infrastructure/powerflow"
)

var minFactor = decimal.NewFromFloat(0.5)

// LoadChangeBuilder creates training cases from one network by scaling the
// base case load of every PQ bus with a common factor
type LoadChangeBuilder struct {
	net    *powerflow.Network
	solver powerflow.Solver
	opts   options
	rand   *rand.Rand

	noBus    int
	noBranch int

	busSlot    map[string]int
	branchSlot map[string]int

	// baseLoads is read from the network on the first Prepare, before any
	// case scales it
	baseLoads map[string]complex128
	// baseCaseData holds base load P in [0, noBus) and Q in [noBus, 2*noBus)
	baseCaseData []float64
	prepared     bool
	cases        int
}

// Verify interface compliance
var _ CaseBuilder = (*LoadChangeBuilder)(nil)

// NewLoadChangeBuilder creates a builder for the network. Prepare must be
// called before any case is created.
func NewLoadChangeBuilder(net *powerflow.Network, solver powerflow.Solver, opts ...Option) *LoadChangeBuilder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &LoadChangeBuilder{
		net:    net,
		solver: solver,
		opts:   o,
		rand:   newRand(o.seed),
	}
}

// Prepare lays out the NN-model arrays and caches the base case loads.
// The loads are taken from the network the first time only, so preparing
// again after cases were created keeps the original base case.
// With a registry the bus and branch slots are the mapped indexes and every
// active element must be mapped; without one the active elements are
// numbered in network order.
func (b *LoadChangeBuilder) Prepare() error {
	busSlot, noBus, err := b.slots(entities.BusElement)
	if err != nil {
		return err
	}
	branchSlot, noBranch, err := b.slots(entities.BranchElement)
	if err != nil {
		return err
	}

	if b.baseLoads == nil {
		b.baseLoads = make(map[string]complex128)
		for _, bus := range b.net.Buses() {
			if bus.Active && !bus.IsSwing() && !bus.IsGenPV() {
				b.baseLoads[bus.ID] = complex(bus.LoadP, bus.LoadQ)
			}
		}
	}

	base := make([]float64, 2*noBus)
	for id, load := range b.baseLoads {
		i := busSlot[id]
		base[i] = real(load)
		base[noBus+i] = imag(load)
	}

	b.busSlot, b.noBus = busSlot, noBus
	b.branchSlot, b.noBranch = branchSlot, noBranch
	b.baseCaseData = base
	b.prepared = true
	return nil
}

func (b *LoadChangeBuilder) slots(kind entities.ElementKind) (map[string]int, int, error) {
	ids := entities.ActiveElementIDs(b.net, kind)
	slot := make(map[string]int, len(ids))
	reg := b.opts.registry
	if reg == nil {
		for i, id := range ids {
			slot[id] = i
		}
		return slot, len(ids), nil
	}

	mapping, lookup := reg.BusMapping(), reg.BusIndex
	if kind == entities.BranchElement {
		mapping, lookup = reg.BranchMapping(), reg.BranchIndex
	}
	if err := mapping.Validate(); err != nil {
		return nil, 0, fmt.Errorf("%s mapping: %w", kind, err)
	}
	for _, id := range ids {
		i, err := lookup(id)
		if err != nil {
			return nil, 0, fmt.Errorf("network %s %s %q: %w", b.net.ID, kind, id, err)
		}
		slot[id] = i
	}
	return slot, mapping.Size(), nil
}

// retag changes the pattern recorded in later samples
func (b *LoadChangeBuilder) retag(pattern string, logger *zap.Logger) {
	b.opts.pattern = pattern
	b.opts.logger = logger
}

// NumBuses returns the bus dimension of the case arrays
func (b *LoadChangeBuilder) NumBuses() int {
	return b.noBus
}

// NumBranches returns the branch dimension of the case arrays
func (b *LoadChangeBuilder) NumBranches() int {
	return b.noBranch
}

// Network returns the network the builder scales
func (b *LoadChangeBuilder) Network() *powerflow.Network {
	return b.net
}

// BaseCaseData returns a copy of the cached base loads, P values first
func (b *LoadChangeBuilder) BaseCaseData() []float64 {
	return append([]float64(nil), b.baseCaseData...)
}

// CreateTrainCase creates the nth of nTotal training cases. The load factor
// runs linearly from 0.5 at nth = 0 to 1.5 at nth = nTotal.
func (b *LoadChangeBuilder) CreateTrainCase(ctx context.Context, nth, nTotal int) (dto.TrainingSample, error) {
	factor, err := TrainFactor(nth, nTotal)
	if err != nil {
		return dto.TrainingSample{}, err
	}
	return b.createCase(ctx, factor)
}

// CreateTestCase creates a test case with a random factor in [0.5, 1.5)
func (b *LoadChangeBuilder) CreateTestCase(ctx context.Context) (dto.TrainingSample, error) {
	factor := minFactor.Add(decimal.NewFromFloat(b.rand.Float64()))
	return b.createCase(ctx, factor)
}

// CreateTestCaseWithFactor creates a test case with the given load factor
func (b *LoadChangeBuilder) CreateTestCaseWithFactor(ctx context.Context, factor float64) (dto.TrainingSample, error) {
	return b.createCase(ctx, decimal.NewFromFloat(factor))
}

// TrainFactor returns the load factor 0.5 + nth/nTotal
func TrainFactor(nth, nTotal int) (decimal.Decimal, error) {
	if nTotal <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrInvalidCaseCount, nTotal)
	}
	return minFactor.Add(decimal.NewFromInt(int64(nth)).Div(decimal.NewFromInt(int64(nTotal)))), nil
}

func (b *LoadChangeBuilder) createCase(ctx context.Context, factor decimal.Decimal) (dto.TrainingSample, error) {
	if !b.prepared {
		return dto.TrainingSample{}, ErrNotPrepared
	}

	for _, bus := range b.net.Buses() {
		if !bus.Active || bus.IsSwing() || bus.IsGenPV() {
			continue
		}
		i := b.busSlot[bus.ID]
		p := decimal.NewFromFloat(b.baseCaseData[i]).Mul(factor).InexactFloat64()
		q := decimal.NewFromFloat(b.baseCaseData[b.noBus+i]).Mul(factor).InexactFloat64()
		if err := b.net.SetBusLoad(bus.ID, p, q); err != nil {
			return dto.TrainingSample{}, err
		}
	}

	f := factor.InexactFloat64()
	total := b.net.TotalLoad()
	b.opts.logger.Info("case created",
		zap.String("network", b.net.ID),
		zap.String("total_load", fmt.Sprintf("%.4f%+.4fj", real(total), imag(total))),
		zap.String("factor", factor.String()))

	result, err := b.solver.Solve(ctx, b.net)
	if err != nil && !errors.Is(err, powerflow.ErrNotConverged) {
		return dto.TrainingSample{}, fmt.Errorf("load flow for %s: %w", b.net.ID, err)
	}
	if err != nil {
		b.opts.logger.Warn("load flow not converged",
			zap.String("network", b.net.ID),
			zap.Int("iterations", result.Iterations),
			zap.Float64("mismatch", result.MaxMismatch))
	}

	sample := b.record()
	sample.Case = b.cases
	sample.Factor = f
	sample.Converged = result.Converged
	sample.Iterations = result.Iterations
	sample.Mismatch = result.MaxMismatch
	b.cases++
	return sample, nil
}

// record copies the current network state into NN-model arrays
func (b *LoadChangeBuilder) record() dto.TrainingSample {
	s := dto.TrainingSample{
		Pattern:    b.opts.pattern,
		Network:    b.net.ID,
		Input:      make([]float64, 2*b.noBus),
		Output:     make([]float64, 2*b.noBus),
		BranchFlow: make([]float64, b.noBranch),
	}
	for _, bus := range b.net.Buses() {
		i, ok := b.busSlot[bus.ID]
		if !ok {
			continue
		}
		s.Input[i] = bus.LoadP
		s.Input[b.noBus+i] = bus.LoadQ
		s.Output[i] = bus.VMag
		s.Output[b.noBus+i] = bus.VAng
	}
	for _, br := range b.net.Branches() {
		if i, ok := b.branchSlot[br.ID]; ok {
			s.BranchFlow[i] = real(powerflow.BranchFlow(b.net, br))
		}
	}
	return s
}
