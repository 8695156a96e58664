package traindata

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gridml/netcase/pkg/application/dto"
	"github.com/gridml/netcase/pkg/application/services"
	"github.com/gridml/netcase/pkg/domain/entities"
	"github.com/gridml/netcase/pkg/infrastructure/powerflow"
)

// ErrNoMatchingPattern is returned when a loaded network's topology is not
// described by any operation pattern of the configuration
var ErrNoMatchingPattern = errors.New("traindata: no operation pattern matches network")

// NetworkCase holds one network case of a multi-network run
type NetworkCase struct {
	Filename string
	// PatternIndex is the case's operation pattern sequence number in the
	// configuration, -1 until the networks are loaded
	PatternIndex int
	Network      *powerflow.Network

	builder *LoadChangeBuilder
}

// NewNetworkCase creates an uninitialised case for a network file
func NewNetworkCase(filename string) *NetworkCase {
	return &NetworkCase{Filename: filename, PatternIndex: -1}
}

// MultiNetBuilder creates training cases across a family of networks that
// share one bus and branch index mapping. Each case is a load change of
// one of the networks, tagged with the network's operation pattern.
type MultiNetBuilder struct {
	cases  []*NetworkCase
	cfg    *services.CaseConfiguration
	solver powerflow.Solver
	opts   options
	rand   *rand.Rand

	current *NetworkCase
	loaded  bool
	caseNum int
}

// Verify interface compliance
var _ CaseBuilder = (*MultiNetBuilder)(nil)

// NewMultiNetBuilder creates a builder over the network files. The
// configuration supplies the index mappings and operation patterns.
func NewMultiNetBuilder(filenames []string, cfg *services.CaseConfiguration, solver powerflow.Solver, opts ...Option) *MultiNetBuilder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	cases := make([]*NetworkCase, len(filenames))
	for i, name := range filenames {
		cases[i] = NewNetworkCase(name)
	}
	return &MultiNetBuilder{
		cases:  cases,
		cfg:    cfg,
		solver: solver,
		opts:   o,
		rand:   newRand(o.seed),
	}
}

// LoadNetworks reads all network files concurrently, then resolves each
// case's operation pattern and prepares its load change builder
func (m *MultiNetBuilder) LoadNetworks(ctx context.Context) error {
	if len(m.cases) == 0 {
		return ErrNoNetworks
	}
	if m.cfg == nil {
		return errors.New("traindata: multi-network builder requires a case configuration")
	}

	nets := make([]*powerflow.Network, len(m.cases))
	g, gctx := errgroup.WithContext(ctx)
	for i, nc := range m.cases {
		i, nc := i, nc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			net, err := powerflow.LoadNetworkFile(nc.Filename)
			if err != nil {
				return err
			}
			nets[i] = net
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, nc := range m.cases {
		nc.Network, nc.builder = nets[i], nil
		if err := m.initCase(i, nc); err != nil {
			return err
		}
	}
	m.loaded = true
	return nil
}

func (m *MultiNetBuilder) initCase(i int, nc *NetworkCase) error {
	p, ok := m.cfg.FindOptPattern(nc.Network)
	if !ok {
		nc.PatternIndex = -1
		return fmt.Errorf("%w: %s (%s)", ErrNoMatchingPattern, nc.Network.ID, nc.Filename)
	}
	nc.PatternIndex = m.cfg.OptPatternIndex(p.Name())
	logger := m.opts.logger.With(zap.String("pattern", p.Name()))

	// a loaded network carries the loads of the last case, so an existing
	// builder keeps its base case and only takes the new pattern
	if nc.builder != nil {
		nc.builder.retag(p.Name(), logger)
		return nil
	}
	nc.builder = NewLoadChangeBuilder(nc.Network, m.solver,
		WithRegistry(m.cfg),
		WithLogger(logger),
		WithSeed(m.opts.seed+int64(i)+1),
		WithPattern(p.Name()))
	if err := nc.builder.Prepare(); err != nil {
		return fmt.Errorf("prepare %s: %w", nc.Filename, err)
	}

	m.opts.logger.Debug("network case loaded",
		zap.String("file", nc.Filename),
		zap.String("network", nc.Network.ID),
		zap.Int("pattern_index", nc.PatternIndex))
	return nil
}

// Cases returns the network cases in file order
func (m *MultiNetBuilder) Cases() []*NetworkCase {
	return m.cases
}

// NumNetOptPatterns returns the number of operation patterns available
func (m *MultiNetBuilder) NumNetOptPatterns() int {
	return m.cfg.NumOptPatterns()
}

// CurrentNetCase returns the case used for the latest sample, nil before
// the first one
func (m *MultiNetBuilder) CurrentNetCase() *NetworkCase {
	return m.current
}

// CreateNetOptPatternList loads the operation patterns from a file. Loaded
// networks are matched against the new patterns.
func (m *MultiNetBuilder) CreateNetOptPatternList(path string) error {
	if err := m.cfg.LoadOptPatterns(path); err != nil {
		return err
	}
	if !m.loaded {
		return nil
	}
	for i, nc := range m.cases {
		if err := m.initCase(i, nc); err != nil {
			m.loaded = false
			return err
		}
	}
	return nil
}

// NetOptPattern returns the operation pattern with sequence number n
func (m *MultiNetBuilder) NetOptPattern(n int) (*entities.OperationPattern, error) {
	patterns := m.cfg.OptPatterns()
	if n < 0 || n >= len(patterns) {
		return nil, fmt.Errorf("pattern index %d out of range [0, %d): %w", n, len(patterns), entities.ErrNotFound)
	}
	return patterns[n], nil
}

// NumBuses returns the bus dimension of the shared mapping
func (m *MultiNetBuilder) NumBuses() int {
	return m.cfg.NumBuses()
}

// NumBranches returns the branch dimension of the shared mapping
func (m *MultiNetBuilder) NumBranches() int {
	return m.cfg.NumBranches()
}

// CreateTrainCase cycles through the network cases; case nth uses network
// nth mod len(cases) at factor 0.5 + nth/nTotal
func (m *MultiNetBuilder) CreateTrainCase(ctx context.Context, nth, nTotal int) (dto.TrainingSample, error) {
	if !m.loaded {
		return dto.TrainingSample{}, ErrNotPrepared
	}
	m.current = m.cases[nth%len(m.cases)]
	return m.number(m.current.builder.CreateTrainCase(ctx, nth, nTotal))
}

// CreateTestCase picks a random network case and load factor
func (m *MultiNetBuilder) CreateTestCase(ctx context.Context) (dto.TrainingSample, error) {
	if !m.loaded {
		return dto.TrainingSample{}, ErrNotPrepared
	}
	m.current = m.cases[m.rand.Intn(len(m.cases))]
	return m.number(m.current.builder.CreateTestCase(ctx))
}

// CreateTestCaseWithFactor picks a random network case at the given factor
func (m *MultiNetBuilder) CreateTestCaseWithFactor(ctx context.Context, factor float64) (dto.TrainingSample, error) {
	if !m.loaded {
		return dto.TrainingSample{}, ErrNotPrepared
	}
	m.current = m.cases[m.rand.Intn(len(m.cases))]
	return m.number(m.current.builder.CreateTestCaseWithFactor(ctx, factor))
}

// number replaces the per-network case counter with the run-wide one
func (m *MultiNetBuilder) number(s dto.TrainingSample, err error) (dto.TrainingSample, error) {
	if err != nil {
		return s, err
	}
	s.Case = m.caseNum
	m.caseNum++
	return s, nil
}
