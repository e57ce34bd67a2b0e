package threads

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/playergold/playergold-bootstrap-core/discovery"
	"github.com/playergold/playergold-bootstrap-core/orchestrator"
	"github.com/playergold/playergold-bootstrap-core/structures"
	"github.com/playergold/playergold-bootstrap-core/utils"
)

const PEER_WATCHDOG_INTERVAL = 15 * time.Second

const PEER_WATCHDOG_PROBE_TIMEOUT = 5 * time.Second

// PeerWatchdogThread sweeps the formation peer set and reports dead peers to
// the orchestrator. Runs only while a formation is in flight; once the network
// is active the peer set is sealed into the network config and the watchdog
// has nothing left to guard.
func PeerWatchdogThread(bootstrap *orchestrator.Orchestrator, engine *discovery.Engine) {

	ticker := time.NewTicker(PEER_WATCHDOG_INTERVAL)

	defer ticker.Stop()

	for range ticker.C {

		sweepFormationPeers(bootstrap, engine)

	}

}

func sweepFormationPeers(bootstrap *orchestrator.Orchestrator, engine *discovery.Engine) {

	snapshot := bootstrap.GetStateSnapshot()

	if snapshot.Mode != structures.BOOTSTRAP_MODE_DISCOVERY && snapshot.Mode != structures.BOOTSTRAP_MODE_GENESIS {
		return
	}

	if len(snapshot.Peers) == 0 {
		return
	}

	aliveCount := 0

	droppedCount := 0

	for _, peer := range snapshot.Peers {

		probeCtx, cancel := context.WithTimeout(context.Background(), PEER_WATCHDOG_PROBE_TIMEOUT)

		alive := engine.ValidatePeerConnection(probeCtx, peer)

		cancel()

		if alive {
			aliveCount++
			continue
		}

		droppedCount++

		engine.ForgetPeer(peer.Id)

		bootstrap.OnPeerDisconnected(peer.Id)

	}

	summaryColor := utils.GREEN_COLOR

	if droppedCount > 0 {
		summaryColor = utils.YELLOW_COLOR
	}

	metrics := []string{
		utils.ColoredMetric("Checked", len(snapshot.Peers), utils.CYAN_COLOR, summaryColor),
		utils.ColoredMetric("Alive", aliveCount, utils.CYAN_COLOR, summaryColor),
		utils.ColoredMetric("Dropped", droppedCount, utils.CYAN_COLOR, summaryColor),
	}

	utils.LogWithTime(
		fmt.Sprintf("Peer watchdog: Sweep summary %s", strings.Join(metrics, " ")),
		summaryColor,
	)
}
