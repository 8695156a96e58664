package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gridml/netcase/pkg/application/services"
	"github.com/gridml/netcase/pkg/application/services/traindata"
	"github.com/gridml/netcase/pkg/infrastructure/powerflow"
)

func main() {
	ctx := context.Background()

	// A three bus ring: one swing bus feeding two loads
	net := powerflow.NewNetwork("ring3", 100)
	must(net.AddBus(&powerflow.Bus{ID: "Gen", Type: powerflow.SwingBus, Active: true, VSpec: 1.0}))
	must(net.AddBus(&powerflow.Bus{ID: "LoadA", Active: true, LoadP: 0.6, LoadQ: 0.2, VSpec: 1.0}))
	must(net.AddBus(&powerflow.Bus{ID: "LoadB", Active: true, LoadP: 0.4, LoadQ: 0.1, VSpec: 1.0}))
	must(net.AddBranch(&powerflow.Branch{From: "Gen", To: "LoadA", R: 0.02, X: 0.08, Active: true}))
	must(net.AddBranch(&powerflow.Branch{From: "Gen", To: "LoadB", R: 0.02, X: 0.08, Active: true}))
	must(net.AddBranch(&powerflow.Branch{From: "LoadA", To: "LoadB", R: 0.03, X: 0.1, Active: true}))

	// Register every element and describe the base topology
	cfg := services.NewCaseConfiguration()
	if _, _, err := cfg.SyncFromNetwork(net); err != nil {
		log.Fatal(err)
	}
	cfg.CreateOptPattern("Base")

	outages, err := traindata.EnumerateBranchOutages(net, cfg, "Outage")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Mapped %d buses and %d branches, %d operation patterns\n",
		cfg.NumBuses(), cfg.NumBranches(), cfg.NumOptPatterns())

	solver := powerflow.NewNewtonSolver(powerflow.DefaultSolverConfig())
	for _, o := range outages {
		b := traindata.NewLoadChangeBuilder(o.Network, solver,
			traindata.WithRegistry(cfg),
			traindata.WithPattern(o.Pattern.Name()))
		if err := b.Prepare(); err != nil {
			log.Fatal(err)
		}

		sample, err := b.CreateTestCaseWithFactor(ctx, 1.2)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%-10s %-18s converged=%t  |V| = %.4f %.4f %.4f\n",
			sample.Pattern, o.BranchID+" out", sample.Converged,
			sample.Output[0], sample.Output[1], sample.Output[2])
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
