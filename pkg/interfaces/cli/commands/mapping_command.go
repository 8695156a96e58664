package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/gridml/netcase/pkg/application/services"
	"github.com/gridml/netcase/pkg/application/services/traindata"
	"github.com/gridml/netcase/pkg/infrastructure/powerflow"
)

// MappingConfig holds configuration for the mapping command
type MappingConfig struct {
	NetworkFile       string
	BusMappingFile    string
	BranchMappingFile string
	PatternsFile      string // optional
	BasePattern       string // name of the pattern describing the base network
	OutageDir         string // optional, enumerate single branch outages into this directory
	OutagePrefix      string
	Verbose           bool
	Help              bool

	Out    io.Writer
	Logger *zap.Logger
}

// MappingCommand bootstraps the index mapping files from a base network
type MappingCommand struct {
	config MappingConfig
}

// NewMappingCommand creates a new mapping command
func NewMappingCommand(config MappingConfig) *MappingCommand {
	if config.Out == nil {
		config.Out = os.Stdout
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.BasePattern == "" {
		config.BasePattern = "Base"
	}
	if config.OutagePrefix == "" {
		config.OutagePrefix = "Pattern"
	}
	return &MappingCommand{config: config}
}

// Execute runs the mapping command
func (c *MappingCommand) Execute(ctx context.Context) error {
	if c.config.Help {
		c.showHelp()
		return nil
	}
	if err := c.validateInputs(); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	net, err := powerflow.LoadNetworkFile(c.config.NetworkFile)
	if err != nil {
		return err
	}
	if c.config.Verbose {
		fmt.Fprintf(c.config.Out, "📂 Loaded network %s: %d active buses, %d active branches\n",
			net.ID, net.NumActiveBuses(), net.NumActiveBranches())
	}

	cfg := services.NewCaseConfiguration(services.WithLogger(c.config.Logger))
	buses, branches, err := cfg.SyncFromNetwork(net)
	if err != nil {
		return fmt.Errorf("failed to build mapping: %w", err)
	}

	if err := cfg.SaveBusMapping(c.config.BusMappingFile); err != nil {
		return err
	}
	if err := cfg.SaveBranchMapping(c.config.BranchMappingFile); err != nil {
		return err
	}
	fmt.Fprintf(c.config.Out, "Bus mapping: %d buses -> %s\n", buses, c.config.BusMappingFile)
	fmt.Fprintf(c.config.Out, "Branch mapping: %d branches -> %s\n", branches, c.config.BranchMappingFile)

	if c.config.PatternsFile == "" {
		return nil
	}

	cfg.CreateOptPatternFor(c.config.BasePattern, net)
	if c.config.OutageDir != "" {
		if err := c.writeOutages(ctx, net, cfg); err != nil {
			return err
		}
	}
	if err := cfg.SaveOptPatterns(c.config.PatternsFile); err != nil {
		return err
	}
	fmt.Fprintf(c.config.Out, "Patterns: %d -> %s\n", cfg.NumOptPatterns(), c.config.PatternsFile)
	return nil
}

func (c *MappingCommand) writeOutages(ctx context.Context, net *powerflow.Network, cfg *services.CaseConfiguration) error {
	outages, err := traindata.EnumerateBranchOutages(net, cfg, c.config.OutagePrefix)
	if err != nil {
		return fmt.Errorf("failed to enumerate outages: %w", err)
	}
	if err := os.MkdirAll(c.config.OutageDir, 0755); err != nil {
		return fmt.Errorf("failed to create outage directory: %w", err)
	}

	for _, o := range outages {
		if err := ctx.Err(); err != nil {
			return err
		}
		filename := filepath.Join(c.config.OutageDir, o.Network.ID+".yaml")
		if err := writeNetworkFile(filename, o.Network); err != nil {
			return err
		}
		if c.config.Verbose {
			fmt.Fprintf(c.config.Out, "  %s: %s out -> %s\n", o.Pattern.Name(), o.BranchID, filename)
		}
	}
	fmt.Fprintf(c.config.Out, "Outages: %d networks -> %s\n", len(outages), c.config.OutageDir)
	return nil
}

func writeNetworkFile(filename string, net *powerflow.Network) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create network file: %w", err)
	}
	defer file.Close()
	if err := powerflow.WriteNetwork(file, net); err != nil {
		return err
	}
	return file.Close()
}

func (c *MappingCommand) validateInputs() error {
	if c.config.NetworkFile == "" {
		return fmt.Errorf("-network is required")
	}
	if c.config.BusMappingFile == "" || c.config.BranchMappingFile == "" {
		return fmt.Errorf("-bus-mapping and -branch-mapping are required")
	}
	if c.config.OutageDir != "" && c.config.PatternsFile == "" {
		return fmt.Errorf("-outages requires -patterns")
	}
	return nil
}

func (c *MappingCommand) showHelp() {
	fmt.Fprint(c.config.Out, `netcase mapping - bootstrap index mapping files from a base network

Usage:
  netcase mapping -network case.yaml -bus-mapping bus.txt -branch-mapping branch.txt [options]

Options:
  -patterns FILE     also write an operation pattern file with the base pattern
  -base-pattern NAME name of the base pattern (default "Base")
  -outages DIR       add one pattern per single branch outage and write the outage networks to DIR
  -outage-prefix S   outage pattern name prefix (default "Pattern")
  -verbose           enable verbose output
`)
}
