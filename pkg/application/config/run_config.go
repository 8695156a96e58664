package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RunConfig describes one training data generation run
type RunConfig struct {
	// Networks lists the network case files. One file runs the single
	// network load change builder, several run the multi-network builder.
	Networks []string `yaml:"networks"`

	BusMapping    string `yaml:"busMapping,omitempty"`
	BranchMapping string `yaml:"branchMapping,omitempty"`
	Patterns      string `yaml:"patterns,omitempty"`

	TrainCases int   `yaml:"trainCases"`
	TestCases  int   `yaml:"testCases"`
	Seed       int64 `yaml:"seed,omitempty"`

	Solver SolverConfig `yaml:"solver"`
	Output OutputConfig `yaml:"output"`
}

// SolverConfig holds load flow settings
type SolverConfig struct {
	Tolerance     float64 `yaml:"tolerance"`
	MaxIterations int     `yaml:"maxIterations"`
}

// OutputConfig holds export settings
type OutputConfig struct {
	Dir    string `yaml:"dir,omitempty"`
	Format string `yaml:"format"`
}

// Default returns the settings used when the config file omits them
func Default() RunConfig {
	return RunConfig{
		TrainCases: 100,
		TestCases:  10,
		Solver: SolverConfig{
			Tolerance:     1e-4,
			MaxIterations: 20,
		},
		Output: OutputConfig{Format: "text"},
	}
}

// Load reads a YAML run config on top of the defaults. Relative file paths
// are resolved against the config file's directory.
func Load(path string) (RunConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read run config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse run config %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i, n := range cfg.Networks {
		cfg.Networks[i] = resolve(base, n)
	}
	cfg.BusMapping = resolve(base, cfg.BusMapping)
	cfg.BranchMapping = resolve(base, cfg.BranchMapping)
	cfg.Patterns = resolve(base, cfg.Patterns)
	cfg.Output.Dir = resolve(base, cfg.Output.Dir)
	return cfg, nil
}

// Validate checks the run config for consistency
func (c RunConfig) Validate() error {
	var errs []error
	if len(c.Networks) == 0 {
		errs = append(errs, errors.New("at least one network file is required"))
	}
	if (c.BusMapping == "") != (c.BranchMapping == "") {
		errs = append(errs, errors.New("busMapping and branchMapping must be given together"))
	}
	if len(c.Networks) > 1 && c.BusMapping == "" {
		errs = append(errs, errors.New("multiple networks require bus and branch mapping files"))
	}
	if c.TrainCases < 0 || c.TestCases < 0 {
		errs = append(errs, errors.New("case counts must not be negative"))
	}
	if c.TrainCases == 0 && c.TestCases == 0 {
		errs = append(errs, errors.New("nothing to generate: trainCases and testCases are both 0"))
	}
	if c.Solver.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("solver tolerance must be positive, got %g", c.Solver.Tolerance))
	}
	if c.Solver.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("solver maxIterations must be positive, got %d", c.Solver.MaxIterations))
	}
	switch c.Output.Format {
	case "text", "json", "csv":
	default:
		errs = append(errs, fmt.Errorf("unsupported output format: %s", c.Output.Format))
	}
	if c.Output.Format != "text" && c.Output.Dir == "" {
		errs = append(errs, fmt.Errorf("output dir is required for %s output", c.Output.Format))
	}
	return errors.Join(errs...)
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
