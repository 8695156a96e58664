package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/gridml/netcase/pkg/interfaces/cli/commands"
)

const usage = `netcase - network case configuration and NN-model training data

Usage:
  netcase <command> [options]

Commands:
  mapping    bootstrap bus/branch index mapping files from a base network
  check      compare a network with its mapping and pattern files
  generate   produce training data by load flow

Run "netcase <command> -help" for the options of a command.
`

type executor interface {
	Execute(ctx context.Context) error
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd, logger, err := parse(os.Args[1], os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cmd == nil {
		fmt.Fprint(os.Stdout, usage)
		return
	}
	defer logger.Sync() //nolint:errcheck

	if err := cmd.Execute(ctx); err != nil {
		if errors.Is(err, commands.ErrDrift) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parse(name string, args []string) (executor, *zap.Logger, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Enable verbose output")
	help := fs.Bool("help", false, "Show help message")

	switch name {
	case "mapping":
		var (
			network      = fs.String("network", "", "Path to the base network file")
			busMapping   = fs.String("bus-mapping", "", "Bus mapping file to write")
			branchMap    = fs.String("branch-mapping", "", "Branch mapping file to write")
			patterns     = fs.String("patterns", "", "Operation pattern file to write (optional)")
			basePattern  = fs.String("base-pattern", "Base", "Name of the base operation pattern")
			outages      = fs.String("outages", "", "Directory for single branch outage networks (optional)")
			outagePrefix = fs.String("outage-prefix", "Pattern", "Outage pattern name prefix")
		)
		fs.Parse(args) //nolint:errcheck
		logger := newLogger(*verbose)
		return commands.NewMappingCommand(commands.MappingConfig{
			NetworkFile:       *network,
			BusMappingFile:    *busMapping,
			BranchMappingFile: *branchMap,
			PatternsFile:      *patterns,
			BasePattern:       *basePattern,
			OutageDir:         *outages,
			OutagePrefix:      *outagePrefix,
			Verbose:           *verbose,
			Help:              *help,
			Logger:            logger,
		}), logger, nil

	case "check":
		var (
			network    = fs.String("network", "", "Path to the network file")
			busMapping = fs.String("bus-mapping", "", "Bus mapping file")
			branchMap  = fs.String("branch-mapping", "", "Branch mapping file")
			patterns   = fs.String("patterns", "", "Operation pattern file (optional)")
		)
		fs.Parse(args) //nolint:errcheck
		logger := newLogger(*verbose)
		return commands.NewCheckCommand(commands.CheckConfig{
			NetworkFile:       *network,
			BusMappingFile:    *busMapping,
			BranchMappingFile: *branchMap,
			PatternsFile:      *patterns,
			Help:              *help,
			Logger:            logger,
		}), logger, nil

	case "generate":
		var (
			configFile = fs.String("config", "", "Path to the YAML run config")
			train      = fs.Int("train", -1, "Number of training cases (overrides the run config)")
			test       = fs.Int("test", -1, "Number of test cases (overrides the run config)")
			outputDir  = fs.String("output", "", "Output directory (overrides the run config)")
			format     = fs.String("format", "", "Output format: text, json, csv (overrides the run config)")
			seed       = fs.Int64("seed", 0, "Random seed for test case factors")
		)
		fs.Parse(args) //nolint:errcheck
		logger := newLogger(*verbose)
		return commands.NewGenerateCommand(commands.GenerateConfig{
			ConfigFile: *configFile,
			TrainCases: *train,
			TestCases:  *test,
			OutputDir:  *outputDir,
			Format:     *format,
			Seed:       *seed,
			Help:       *help,
			Verbose:    *verbose,
			Logger:     logger,
		}), logger, nil

	case "help", "-help", "--help", "-h":
		return nil, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown command %q", name)
}

// newLogger returns a development logger in verbose mode and a production
// logger at warn level otherwise
func newLogger(verbose bool) *zap.Logger {
	if verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
