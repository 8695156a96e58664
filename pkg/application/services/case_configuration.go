package services

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/gridml/netcase/pkg/domain/entities"
	"github.com/gridml/netcase/pkg/domain/repositories"
	"github.com/gridml/netcase/pkg/infrastructure/repositories/textfile"
)

// CaseConfiguration holds the network case configuration of a family of
// related topologies:
//
//  1. the network operation pattern set
//  2. the bus id to NN-model bus array index mapping
//  3. the branch id to NN-model branch array index mapping
//
// A CaseConfiguration is not safe for concurrent use; one training data
// generation run owns it at a time.
type CaseConfiguration struct {
	buses    *entities.IndexMapping
	branches *entities.IndexMapping

	patterns     map[string]*entities.OperationPattern
	patternOrder []string

	store  repositories.ConfigurationStore
	logger *zap.Logger
}

// Option configures a CaseConfiguration
type Option func(*CaseConfiguration)

// WithLogger sets the operator diagnostic logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *CaseConfiguration) {
		c.logger = logger
	}
}

// WithStore replaces the default text file store
func WithStore(store repositories.ConfigurationStore) Option {
	return func(c *CaseConfiguration) {
		c.store = store
	}
}

// NewCaseConfiguration creates an empty configuration
func NewCaseConfiguration(opts ...Option) *CaseConfiguration {
	c := &CaseConfiguration{
		buses:    entities.NewIndexMapping(0),
		branches: entities.NewIndexMapping(0),
		patterns: make(map[string]*entities.OperationPattern),
		store:    textfile.NewStore(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NumBuses returns the number of buses in the NN-model
func (c *CaseConfiguration) NumBuses() int {
	return c.buses.Size()
}

// NumBranches returns the number of branches in the NN-model
func (c *CaseConfiguration) NumBranches() int {
	return c.branches.Size()
}

// NumOptPatterns returns the number of network operation patterns
func (c *CaseConfiguration) NumOptPatterns() int {
	return len(c.patterns)
}

// OptPattern returns a pattern by name
func (c *CaseConfiguration) OptPattern(name string) (*entities.OperationPattern, bool) {
	p, ok := c.patterns[name]
	return p, ok
}

// OptPatterns returns the patterns in creation/file order
func (c *CaseConfiguration) OptPatterns() []*entities.OperationPattern {
	out := make([]*entities.OperationPattern, len(c.patternOrder))
	for i, name := range c.patternOrder {
		out[i] = c.patterns[name]
	}
	return out
}

// OptPatternIndex returns the sequence number of a pattern, or -1
func (c *CaseConfiguration) OptPatternIndex(name string) int {
	for i, n := range c.patternOrder {
		if n == name {
			return i
		}
	}
	return -1
}

// CreateOptPattern creates an empty pattern, replacing any pattern of the
// same name. A replaced pattern keeps its sequence number. Names saved to a
// pattern file must pass textfile.ValidatePatternName; SaveOptPatterns
// fails on the first one that does not.
func (c *CaseConfiguration) CreateOptPattern(name string) *entities.OperationPattern {
	p := entities.NewOperationPattern(name)
	if _, exists := c.patterns[name]; !exists {
		c.patternOrder = append(c.patternOrder, name)
	}
	c.patterns[name] = p
	return p
}

// CreateOptPatternFor creates the pattern describing the network's own
// topology: every out-of-service element of the network, mapped or not, and
// every mapped element the network lacks is marked missing. FindOptPattern
// matches the network against the result.
func (c *CaseConfiguration) CreateOptPatternFor(name string, net entities.Topology) *entities.OperationPattern {
	p := c.CreateOptPattern(name)
	for _, kind := range []entities.ElementKind{entities.BusElement, entities.BranchElement} {
		for _, id := range net.ElementIDs(kind) {
			if _, active := net.ElementStatus(kind, id); !active {
				p.MarkMissing(kind, id)
			}
		}
		for _, id := range c.missingInNetwork(net, kind) {
			p.MarkMissing(kind, id)
		}
	}
	return p
}

// BusIndex returns the NN-model index of a bus
func (c *CaseConfiguration) BusIndex(busID string) (int, error) {
	return c.buses.IndexOf(busID)
}

// BranchIndex returns the NN-model index of a branch
func (c *CaseConfiguration) BranchIndex(branchID string) (int, error) {
	return c.branches.IndexOf(branchID)
}

// AddBusToMapping registers the bus and marks it missing in every existing
// pattern, since none of them knew the bus when they were defined
func (c *CaseConfiguration) AddBusToMapping(busID string) (int, error) {
	return c.addToMapping(entities.BusElement, busID)
}

// AddBranchToMapping registers the branch and marks it missing in every
// existing pattern
func (c *CaseConfiguration) AddBranchToMapping(branchID string) (int, error) {
	return c.addToMapping(entities.BranchElement, branchID)
}

func (c *CaseConfiguration) addToMapping(kind entities.ElementKind, id string) (int, error) {
	i, err := c.mapping(kind).Register(id)
	if err != nil {
		return i, fmt.Errorf("failed to add %s to mapping: %w", kind, err)
	}
	for _, name := range c.patternOrder {
		c.patterns[name].MarkIntroduced(kind, id)
	}
	return i, nil
}

// BusMapping returns a copy of the bus mapping
func (c *CaseConfiguration) BusMapping() *entities.IndexMapping {
	return c.buses.Clone()
}

// BranchMapping returns a copy of the branch mapping
func (c *CaseConfiguration) BranchMapping() *entities.IndexMapping {
	return c.branches.Clone()
}

// LoadBusMapping replaces the bus mapping with the content of a mapping
// file. Patterns are not touched. On error the current mapping is kept.
func (c *CaseConfiguration) LoadBusMapping(path string) error {
	m, err := c.store.LoadIndexMapping(path)
	if err != nil {
		return c.reportIO("load bus mapping", path, err)
	}
	c.buses = m
	c.logger.Info("bus mapping loaded", zap.String("path", path), zap.Int("buses", m.Size()))
	return nil
}

// LoadBranchMapping replaces the branch mapping with the content of a
// mapping file. On error the current mapping is kept.
func (c *CaseConfiguration) LoadBranchMapping(path string) error {
	m, err := c.store.LoadIndexMapping(path)
	if err != nil {
		return c.reportIO("load branch mapping", path, err)
	}
	c.branches = m
	c.logger.Info("branch mapping loaded", zap.String("path", path), zap.Int("branches", m.Size()))
	return nil
}

// LoadOptPatterns replaces the pattern set with the content of a pattern
// file. On error the current set is kept.
func (c *CaseConfiguration) LoadOptPatterns(path string) error {
	list, err := c.store.LoadPatternSet(path)
	if err != nil {
		return c.reportIO("load operation patterns", path, err)
	}
	patterns := make(map[string]*entities.OperationPattern, len(list))
	order := make([]string, 0, len(list))
	for _, p := range list {
		if _, dup := patterns[p.Name()]; !dup {
			order = append(order, p.Name())
		}
		patterns[p.Name()] = p
	}
	c.patterns, c.patternOrder = patterns, order
	c.logger.Info("operation patterns loaded", zap.String("path", path), zap.Int("patterns", len(order)))
	return nil
}

// SaveOptPatterns writes the pattern set
func (c *CaseConfiguration) SaveOptPatterns(path string) error {
	if err := c.store.SavePatternSet(path, c.OptPatterns()); err != nil {
		return c.reportIO("save operation patterns", path, err)
	}
	c.logger.Info("text file generated", zap.String("path", path))
	return nil
}

// SaveBusMapping writes the bus mapping
func (c *CaseConfiguration) SaveBusMapping(path string) error {
	if err := c.store.SaveIndexMapping(path, c.buses); err != nil {
		return c.reportIO("save bus mapping", path, err)
	}
	c.logger.Info("text file generated", zap.String("path", path))
	return nil
}

// SaveBranchMapping writes the branch mapping
func (c *CaseConfiguration) SaveBranchMapping(path string) error {
	if err := c.store.SaveIndexMapping(path, c.branches); err != nil {
		return c.reportIO("save branch mapping", path, err)
	}
	c.logger.Info("text file generated", zap.String("path", path))
	return nil
}

// reportIO logs a load/save failure on the operator channel and returns it
// wrapped; the caller decides whether to continue
func (c *CaseConfiguration) reportIO(op, path string, err error) error {
	c.logger.Error(op+" failed", zap.String("path", path), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

// FindBusIDsMissingInMapping returns the active buses of the network that
// have no NN-model index
func (c *CaseConfiguration) FindBusIDsMissingInMapping(net entities.Topology) []string {
	return c.missingInMapping(net, entities.BusElement)
}

// FindBranchIDsMissingInMapping returns the active branches of the network
// that have no NN-model index
func (c *CaseConfiguration) FindBranchIDsMissingInMapping(net entities.Topology) []string {
	return c.missingInMapping(net, entities.BranchElement)
}

// FindBusIDsMissingInNetwork returns the mapped buses that are absent or
// out of service in the network
func (c *CaseConfiguration) FindBusIDsMissingInNetwork(net entities.Topology) []string {
	return c.missingInNetwork(net, entities.BusElement)
}

// FindBranchIDsMissingInNetwork returns the mapped branches that are absent
// or out of service in the network
func (c *CaseConfiguration) FindBranchIDsMissingInNetwork(net entities.Topology) []string {
	return c.missingInNetwork(net, entities.BranchElement)
}

func (c *CaseConfiguration) missingInMapping(net entities.Topology, kind entities.ElementKind) []string {
	mapping := c.mapping(kind)
	list := []string{}
	for _, id := range entities.ActiveElementIDs(net, kind) {
		if !mapping.Contains(id) {
			list = append(list, id)
		}
	}
	sort.Strings(list)
	return list
}

func (c *CaseConfiguration) missingInNetwork(net entities.Topology, kind entities.ElementKind) []string {
	list := []string{}
	for _, id := range c.mapping(kind).IDs() {
		if _, active := net.ElementStatus(kind, id); !active {
			list = append(list, id)
		}
	}
	sort.Strings(list)
	return list
}

// HasOptPattern reports whether the network's operation pattern is already
// part of this configuration
func (c *CaseConfiguration) HasOptPattern(net entities.Topology) bool {
	_, ok := c.FindOptPattern(net)
	return ok
}

// FindOptPattern returns the first pattern, in sequence order, describing
// the network. Besides the pattern's own element check, every mapped id
// absent from the network has to be in the pattern's missing set.
func (c *CaseConfiguration) FindOptPattern(net entities.Topology) (*entities.OperationPattern, bool) {
	for _, name := range c.patternOrder {
		p := c.patterns[name]
		if p.Matches(net) && c.coversAbsent(p, net) {
			return p, true
		}
	}
	return nil, false
}

func (c *CaseConfiguration) coversAbsent(p *entities.OperationPattern, net entities.Topology) bool {
	for _, kind := range []entities.ElementKind{entities.BusElement, entities.BranchElement} {
		for _, id := range c.mapping(kind).IDs() {
			if present, _ := net.ElementStatus(kind, id); !present && !p.IsMissing(kind, id) {
				return false
			}
		}
	}
	return true
}

// SyncFromNetwork registers every active element of the network that is
// not mapped yet, buses first, in network order. It returns the number of
// buses and branches added.
func (c *CaseConfiguration) SyncFromNetwork(net entities.Topology) (int, int, error) {
	var added [2]int
	for n, kind := range []entities.ElementKind{entities.BusElement, entities.BranchElement} {
		for _, id := range entities.ActiveElementIDs(net, kind) {
			if c.mapping(kind).Contains(id) {
				continue
			}
			if _, err := c.addToMapping(kind, id); err != nil {
				return added[0], added[1], err
			}
			added[n]++
		}
	}
	if added[0] > 0 || added[1] > 0 {
		c.logger.Debug("mapping synced from network",
			zap.Int("buses_added", added[0]), zap.Int("branches_added", added[1]))
	}
	return added[0], added[1], nil
}

// DriftReport bundles the four mapping/network consistency queries
type DriftReport struct {
	BusesMissingInMapping    []string
	BranchesMissingInMapping []string
	BusesMissingInNetwork    []string
	BranchesMissingInNetwork []string
}

// HasDrift reports whether the mapping and the network disagree
func (r DriftReport) HasDrift() bool {
	return len(r.BusesMissingInMapping) > 0 || len(r.BranchesMissingInMapping) > 0 ||
		len(r.BusesMissingInNetwork) > 0 || len(r.BranchesMissingInNetwork) > 0
}

// CheckDrift runs all four consistency queries against the network
func (c *CaseConfiguration) CheckDrift(net entities.Topology) DriftReport {
	return DriftReport{
		BusesMissingInMapping:    c.FindBusIDsMissingInMapping(net),
		BranchesMissingInMapping: c.FindBranchIDsMissingInMapping(net),
		BusesMissingInNetwork:    c.FindBusIDsMissingInNetwork(net),
		BranchesMissingInNetwork: c.FindBranchIDsMissingInNetwork(net),
	}
}

func (c *CaseConfiguration) mapping(kind entities.ElementKind) *entities.IndexMapping {
	if kind == entities.BranchElement {
		return c.branches
	}
	return c.buses
}
