package traindata

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/gridml/netcase/pkg/application/dto"
	"github.com/gridml/netcase/pkg/application/services"
)

var (
	// ErrNotPrepared is returned when a case is requested before the
	// builder has cached its base case
	ErrNotPrepared = errors.New("traindata: builder not prepared")
	// ErrInvalidCaseCount is returned for a non-positive total case count
	ErrInvalidCaseCount = errors.New("traindata: total case count must be positive")
	// ErrNoNetworks is returned by the multi-network builder without files
	ErrNoNetworks = errors.New("traindata: no network files")
)

// CaseBuilder produces solved training and test cases in NN-model order
type CaseBuilder interface {
	// CreateTrainCase creates the nth of nTotal training cases
	CreateTrainCase(ctx context.Context, nth, nTotal int) (dto.TrainingSample, error)
	// CreateTestCase creates a test case with a random load factor
	CreateTestCase(ctx context.Context) (dto.TrainingSample, error)
	// CreateTestCaseWithFactor creates a test case with the given load factor
	CreateTestCaseWithFactor(ctx context.Context, factor float64) (dto.TrainingSample, error)
	// NumBuses is the bus dimension of the NN-model arrays
	NumBuses() int
	// NumBranches is the branch dimension of the NN-model arrays
	NumBranches() int
}

// Option configures a builder
type Option func(*options)

type options struct {
	registry *services.CaseConfiguration
	logger   *zap.Logger
	seed     int64
	pattern  string
}

func defaultOptions() options {
	return options{
		logger: zap.NewNop(),
		seed:   time.Now().UnixNano(),
	}
}

// WithRegistry lays the case arrays out by the registry's index mappings
// instead of active element order
func WithRegistry(cfg *services.CaseConfiguration) Option {
	return func(o *options) {
		o.registry = cfg
	}
}

// WithLogger sets the logger used for per case diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSeed fixes the random source used for test case factors
func WithSeed(seed int64) Option {
	return func(o *options) {
		if seed != 0 {
			o.seed = seed
		}
	}
}

// WithPattern tags every produced sample with a pattern name
func WithPattern(name string) Option {
	return func(o *options) {
		o.pattern = name
	}
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
