package traindata

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/gridml/netcase/pkg/application/dto"
)

// SampleSet is a list of samples with fixed NN-model dimensions
type SampleSet struct {
	RunID       uuid.UUID
	BusCount    int
	BranchCount int
	Samples     []dto.TrainingSample
}

// NewSampleSet creates a sample set and checks every sample against the
// dimensions
func NewSampleSet(runID uuid.UUID, busCount, branchCount int, samples []dto.TrainingSample) (*SampleSet, error) {
	for _, s := range samples {
		if len(s.Input) != 2*busCount || len(s.Output) != 2*busCount || len(s.BranchFlow) != branchCount {
			return nil, fmt.Errorf("sample %d has dimensions in=%d out=%d flow=%d, want %d/%d/%d",
				s.Case, len(s.Input), len(s.Output), len(s.BranchFlow), 2*busCount, 2*busCount, branchCount)
		}
	}
	return &SampleSet{
		RunID:       runID,
		BusCount:    busCount,
		BranchCount: branchCount,
		Samples:     samples,
	}, nil
}

// Len returns the number of samples
func (s *SampleSet) Len() int {
	return len(s.Samples)
}

// Features returns the load P/Q inputs, one row per sample, or nil for an
// empty set
func (s *SampleSet) Features() *mat.Dense {
	return s.matrix(2*s.BusCount, func(t dto.TrainingSample) []float64 { return t.Input })
}

// Targets returns the voltage magnitude/angle outputs, one row per sample,
// or nil for an empty set
func (s *SampleSet) Targets() *mat.Dense {
	return s.matrix(2*s.BusCount, func(t dto.TrainingSample) []float64 { return t.Output })
}

// BranchFlows returns the branch active power flows, one row per sample,
// or nil for an empty set
func (s *SampleSet) BranchFlows() *mat.Dense {
	return s.matrix(s.BranchCount, func(t dto.TrainingSample) []float64 { return t.BranchFlow })
}

func (s *SampleSet) matrix(cols int, row func(dto.TrainingSample) []float64) *mat.Dense {
	if len(s.Samples) == 0 || cols == 0 {
		return nil
	}
	m := mat.NewDense(len(s.Samples), cols, nil)
	for i, sample := range s.Samples {
		m.SetRow(i, row(sample))
	}
	return m
}

// Generate runs nTrain training and nTest test cases through the builder
func Generate(ctx context.Context, b CaseBuilder, nTrain, nTest int, logger *zap.Logger) (*dto.TrainingResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	result := &dto.TrainingResult{
		RunID:       uuid.New(),
		CreatedAt:   time.Now(),
		BusCount:    b.NumBuses(),
		BranchCount: b.NumBranches(),
	}
	logger = logger.With(zap.String("run_id", result.RunID.String()))

	for i := 0; i < nTrain; i++ {
		sample, err := b.CreateTrainCase(ctx, i, nTrain)
		if err != nil {
			return result, fmt.Errorf("train case %d: %w", i, err)
		}
		result.Train = append(result.Train, sample)
	}
	for i := 0; i < nTest; i++ {
		sample, err := b.CreateTestCase(ctx)
		if err != nil {
			return result, fmt.Errorf("test case %d: %w", i, err)
		}
		result.Test = append(result.Test, sample)
	}

	logger.Info("training data generated",
		zap.Int("train", len(result.Train)),
		zap.Int("test", len(result.Test)),
		zap.Int("buses", result.BusCount),
		zap.Int("branches", result.BranchCount))
	return result, nil
}

// Summarize counts the outcome of a generation run
func Summarize(result *dto.TrainingResult, elapsed time.Duration) dto.RunSummary {
	summary := dto.RunSummary{
		RunID:      result.RunID,
		TrainCases: len(result.Train),
		TestCases:  len(result.Test),
		Patterns:   make(map[string]int),
		Elapsed:    elapsed,
	}
	for _, set := range [][]dto.TrainingSample{result.Train, result.Test} {
		for _, s := range set {
			if !s.Converged {
				summary.NotConverged++
			}
			summary.Patterns[s.Pattern]++
		}
	}
	return summary
}
