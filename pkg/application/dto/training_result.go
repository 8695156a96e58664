package dto

import (
	"time"

	"github.com/google/uuid"
)

// TrainingSample is one solved case laid out in NN-model array order
type TrainingSample struct {
	// Case is the sequence number within the run
	Case    int
	Factor  float64
	Pattern string
	Network string

	// Input holds the bus load P values followed by the bus load Q values
	Input []float64
	// Output holds the bus voltage magnitudes followed by the bus angles
	Output []float64
	// BranchFlow holds the from-end active power of each branch
	BranchFlow []float64

	Converged  bool
	Iterations int
	Mismatch   float64
}

// TrainingResult is the complete output of a generation run
type TrainingResult struct {
	RunID       uuid.UUID
	CreatedAt   time.Time
	BusCount    int
	BranchCount int
	Train       []TrainingSample
	Test        []TrainingSample
}

// RunSummary counts the outcome of a generation run
type RunSummary struct {
	RunID        uuid.UUID
	TrainCases   int
	TestCases    int
	NotConverged int
	Patterns     map[string]int
	Elapsed      time.Duration
}
