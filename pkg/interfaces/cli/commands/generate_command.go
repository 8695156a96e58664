package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/gridml/netcase/pkg/application/config"
	"github.com/gridml/netcase/pkg/application/services"
	"github.com/gridml/netcase/pkg/application/services/traindata"
	"github.com/gridml/netcase/pkg/infrastructure/powerflow"
	"github.com/gridml/netcase/pkg/interfaces/cli/output"
)

// GenerateConfig holds configuration for training data generation. Empty
// overrides keep the run config values.
type GenerateConfig struct {
	ConfigFile string
	TrainCases int    // override, -1 keeps the run config
	TestCases  int    // override, -1 keeps the run config
	OutputDir  string // override
	Format     string // override
	Seed       int64  // override
	Help       bool
	Verbose    bool

	Out    io.Writer
	Logger *zap.Logger
}

// GenerateCommand produces a training data set from a run config
type GenerateCommand struct {
	config GenerateConfig
}

// NewGenerateCommand creates a new generate command
func NewGenerateCommand(config GenerateConfig) *GenerateCommand {
	if config.Out == nil {
		config.Out = os.Stdout
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &GenerateCommand{config: config}
}

// Execute runs the generate command
func (cmd *GenerateCommand) Execute(ctx context.Context) error {
	if cmd.config.Help {
		cmd.printHelp()
		return nil
	}
	if cmd.config.ConfigFile == "" {
		return fmt.Errorf("validation error: -config is required")
	}

	run, err := config.Load(cmd.config.ConfigFile)
	if err != nil {
		return err
	}
	cmd.applyOverrides(&run)
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run config: %w", err)
	}

	if cmd.config.Verbose {
		fmt.Fprintf(cmd.config.Out, "🔧 Generating %d train and %d test cases from %d network(s)\n",
			run.TrainCases, run.TestCases, len(run.Networks))
		if run.Output.Dir != "" {
			fmt.Fprintf(cmd.config.Out, "📁 Output directory: %s\n", run.Output.Dir)
		}
	}

	builder, err := cmd.newBuilder(ctx, run)
	if err != nil {
		return err
	}

	startTime := time.Now()
	result, err := traindata.Generate(ctx, builder, run.TrainCases, run.TestCases, cmd.config.Logger)
	if err != nil {
		return fmt.Errorf("failed to generate training data: %w", err)
	}
	elapsed := time.Since(startTime)

	if cmd.config.Verbose {
		fmt.Fprintf(cmd.config.Out, "✅ Generation completed in %v\n\n", elapsed)
	}

	return output.Generate(result, output.Config{
		Format:    run.Output.Format,
		OutputDir: run.Output.Dir,
		Verbose:   cmd.config.Verbose,
		Elapsed:   elapsed,
		Writer:    cmd.config.Out,
	})
}

func (cmd *GenerateCommand) applyOverrides(run *config.RunConfig) {
	if cmd.config.TrainCases >= 0 {
		run.TrainCases = cmd.config.TrainCases
	}
	if cmd.config.TestCases >= 0 {
		run.TestCases = cmd.config.TestCases
	}
	if cmd.config.OutputDir != "" {
		run.Output.Dir = cmd.config.OutputDir
	}
	if cmd.config.Format != "" {
		run.Output.Format = cmd.config.Format
	}
	if cmd.config.Seed != 0 {
		run.Seed = cmd.config.Seed
	}
}

// newBuilder selects the load change builder for a single network and the
// multi-network builder otherwise
func (cmd *GenerateCommand) newBuilder(ctx context.Context, run config.RunConfig) (traindata.CaseBuilder, error) {
	solver := powerflow.NewNewtonSolver(powerflow.SolverConfig{
		Tolerance:     run.Solver.Tolerance,
		MaxIterations: run.Solver.MaxIterations,
	})
	opts := []traindata.Option{
		traindata.WithLogger(cmd.config.Logger),
		traindata.WithSeed(run.Seed),
	}

	var cfg *services.CaseConfiguration
	if run.BusMapping != "" {
		cfg = services.NewCaseConfiguration(services.WithLogger(cmd.config.Logger))
		if err := cfg.LoadBusMapping(run.BusMapping); err != nil {
			return nil, err
		}
		if err := cfg.LoadBranchMapping(run.BranchMapping); err != nil {
			return nil, err
		}
		opts = append(opts, traindata.WithRegistry(cfg))
	}

	if len(run.Networks) > 1 {
		b := traindata.NewMultiNetBuilder(run.Networks, cfg, solver, opts...)
		if run.Patterns != "" {
			if err := b.CreateNetOptPatternList(run.Patterns); err != nil {
				return nil, err
			}
		}
		if err := b.LoadNetworks(ctx); err != nil {
			return nil, err
		}
		if cmd.config.Verbose {
			fmt.Fprintf(cmd.config.Out, "📂 Loaded %d networks over %d operation patterns\n",
				len(b.Cases()), b.NumNetOptPatterns())
		}
		return b, nil
	}

	net, err := powerflow.LoadNetworkFile(run.Networks[0])
	if err != nil {
		return nil, err
	}
	if cfg != nil && run.Patterns != "" {
		if err := cfg.LoadOptPatterns(run.Patterns); err != nil {
			return nil, err
		}
		if p, ok := cfg.FindOptPattern(net); ok {
			opts = append(opts, traindata.WithPattern(p.Name()))
		}
	}

	b := traindata.NewLoadChangeBuilder(net, solver, opts...)
	if err := b.Prepare(); err != nil {
		return nil, err
	}
	if cmd.config.Verbose {
		fmt.Fprintf(cmd.config.Out, "📂 Loaded network %s: %d buses, %d branches in the case arrays\n",
			net.ID, b.NumBuses(), b.NumBranches())
	}
	return b, nil
}

func (cmd *GenerateCommand) printHelp() {
	fmt.Fprint(cmd.config.Out, `netcase generate - produce NN-model training data by load flow

Usage:
  netcase generate -config run.yaml [options]

Options:
  -train N       number of training cases (overrides the run config)
  -test N        number of test cases (overrides the run config)
  -output DIR    output directory (overrides the run config)
  -format F      output format: text, json, csv (overrides the run config)
  -seed N        random seed for test case factors
  -verbose       enable verbose output

Run config example:
  networks: [ieee14.yaml]
  busMapping: bus.txt
  branchMapping: branch.txt
  patterns: patterns.txt
  trainCases: 100
  testCases: 10
  solver: {tolerance: 0.0001, maxIterations: 20}
  output: {dir: out, format: csv}
`)
}
