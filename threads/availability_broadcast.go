package threads

import (
	"time"

	"github.com/playergold/playergold-bootstrap-core/discovery"
	"github.com/playergold/playergold-bootstrap-core/orchestrator"
	"github.com/playergold/playergold-bootstrap-core/structures"
)

const AVAILABILITY_REBROADCAST_INTERVAL = 30 * time.Second

// AvailabilityBroadcastThread keeps a ready node visible to pioneers that came
// online after the initial announcement. Stops mattering once the network is
// formed, so active nodes skip the push.
func AvailabilityBroadcastThread(bootstrap *orchestrator.Orchestrator, engine *discovery.Engine) {

	ticker := time.NewTicker(AVAILABILITY_REBROADCAST_INTERVAL)

	defer ticker.Stop()

	for range ticker.C {

		rebroadcastAvailability(bootstrap, engine)

	}

}

func rebroadcastAvailability(bootstrap *orchestrator.Orchestrator, engine *discovery.Engine) {

	snapshot := bootstrap.GetStateSnapshot()

	if !snapshot.IsReady || snapshot.Mode == structures.BOOTSTRAP_MODE_NETWORK {
		return
	}

	engine.BroadcastAvailability(snapshot.WalletAddress)
}
