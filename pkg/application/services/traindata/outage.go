package traindata

import (
	"fmt"

	"github.com/gridml/netcase/pkg/application/services"
	"github.com/gridml/netcase/pkg/domain/entities"
	"github.com/gridml/netcase/pkg/infrastructure/powerflow"
)

// Outage is one single branch outage derived from a base network
type Outage struct {
	Pattern  *entities.OperationPattern
	BranchID string
	Network  *powerflow.Network
}

// EnumerateBranchOutages takes each active branch out of service in turn.
// Outages that leave an active bus without a path to the swing bus are
// skipped. For every remaining outage a pattern named <prefix>-<k>, k
// counting from 1, is created in cfg describing the derived network.
func EnumerateBranchOutages(net *powerflow.Network, cfg *services.CaseConfiguration, prefix string) ([]Outage, error) {
	var outages []Outage
	for _, br := range net.Branches() {
		if !br.Active {
			continue
		}

		derived := net.Clone()
		if err := derived.SetBranchActive(br.ID, false); err != nil {
			return outages, err
		}
		if !powerflow.Energized(derived) {
			continue
		}

		name := fmt.Sprintf("%s-%d", prefix, len(outages)+1)
		derived.ID = net.ID + "-" + name
		p := cfg.CreateOptPatternFor(name, derived)
		outages = append(outages, Outage{Pattern: p, BranchID: br.ID, Network: derived})
	}
	return outages, nil
}
