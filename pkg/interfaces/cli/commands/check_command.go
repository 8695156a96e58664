package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/gridml/netcase/pkg/application/services"
	"github.com/gridml/netcase/pkg/infrastructure/powerflow"
)

// ErrDrift is returned by the check command when the network and the
// mapping files disagree
var ErrDrift = errors.New("network and mapping have drifted")

// CheckConfig holds configuration for the check command
type CheckConfig struct {
	NetworkFile       string
	BusMappingFile    string
	BranchMappingFile string
	PatternsFile      string // optional
	Help              bool

	Out    io.Writer
	Logger *zap.Logger
}

// CheckCommand compares a network with the mapping and pattern files
type CheckCommand struct {
	config CheckConfig
}

// NewCheckCommand creates a new check command
func NewCheckCommand(config CheckConfig) *CheckCommand {
	if config.Out == nil {
		config.Out = os.Stdout
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &CheckCommand{config: config}
}

// Execute runs the check command. It returns ErrDrift when elements are
// unmapped or mapped elements are out of service.
func (c *CheckCommand) Execute(ctx context.Context) error {
	if c.config.Help {
		c.showHelp()
		return nil
	}
	if c.config.NetworkFile == "" || c.config.BusMappingFile == "" || c.config.BranchMappingFile == "" {
		return fmt.Errorf("validation error: -network, -bus-mapping and -branch-mapping are required")
	}

	net, err := powerflow.LoadNetworkFile(c.config.NetworkFile)
	if err != nil {
		return err
	}
	cfg := services.NewCaseConfiguration(services.WithLogger(c.config.Logger))
	if err := cfg.LoadBusMapping(c.config.BusMappingFile); err != nil {
		return err
	}
	if err := cfg.LoadBranchMapping(c.config.BranchMappingFile); err != nil {
		return err
	}

	out := c.config.Out
	report := cfg.CheckDrift(net)
	fmt.Fprintf(out, "Network %s against %d mapped buses, %d mapped branches\n", net.ID, cfg.NumBuses(), cfg.NumBranches())
	printIDs(out, "Buses missing in mapping", report.BusesMissingInMapping)
	printIDs(out, "Branches missing in mapping", report.BranchesMissingInMapping)
	printIDs(out, "Buses missing in network", report.BusesMissingInNetwork)
	printIDs(out, "Branches missing in network", report.BranchesMissingInNetwork)

	if c.config.PatternsFile != "" {
		if err := cfg.LoadOptPatterns(c.config.PatternsFile); err != nil {
			return err
		}
		if p, ok := cfg.FindOptPattern(net); ok {
			fmt.Fprintf(out, "Operation pattern: %s (#%d of %d)\n", p.Name(), cfg.OptPatternIndex(p.Name()), cfg.NumOptPatterns())
		} else {
			fmt.Fprintf(out, "Operation pattern: none of %d patterns matches\n", cfg.NumOptPatterns())
		}
	}

	if report.HasDrift() {
		c.config.Logger.Warn("mapping drift detected",
			zap.String("network", net.ID),
			zap.Int("unmapped_buses", len(report.BusesMissingInMapping)),
			zap.Int("unmapped_branches", len(report.BranchesMissingInMapping)))
		return ErrDrift
	}
	fmt.Fprintln(out, "No drift")
	return nil
}

func printIDs(out io.Writer, label string, ids []string) {
	if len(ids) == 0 {
		fmt.Fprintf(out, "%s: none\n", label)
		return
	}
	fmt.Fprintf(out, "%s (%d): %s\n", label, len(ids), strings.Join(ids, " "))
}

func (c *CheckCommand) showHelp() {
	fmt.Fprint(c.config.Out, `netcase check - compare a network with its mapping files

Usage:
  netcase check -network case.yaml -bus-mapping bus.txt -branch-mapping branch.txt [-patterns patterns.txt]

Exits with status 2 when the network and the mapping have drifted.
`)
}
