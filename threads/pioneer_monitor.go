package threads

import (
	"fmt"
	"strings"
	"time"

	"github.com/playergold/playergold-bootstrap-core/discovery"
	"github.com/playergold/playergold-bootstrap-core/orchestrator"
	"github.com/playergold/playergold-bootstrap-core/structures"
	"github.com/playergold/playergold-bootstrap-core/utils"
)

const PIONEER_MONITOR_INTERVAL = 20 * time.Second

// PioneerMonitorThread gives operators a heartbeat while the node idles in
// pioneer mode waiting for user input.
func PioneerMonitorThread(bootstrap *orchestrator.Orchestrator, engine *discovery.Engine) {

	ticker := time.NewTicker(PIONEER_MONITOR_INTERVAL)

	defer ticker.Stop()

	for range ticker.C {

		reportPioneerStatus(bootstrap, engine)

	}

}

func reportPioneerStatus(bootstrap *orchestrator.Orchestrator, engine *discovery.Engine) {

	snapshot := bootstrap.GetStateSnapshot()

	if snapshot.Mode != structures.BOOTSTRAP_MODE_PIONEER {
		return
	}

	missing := make([]string, 0, 2)

	if snapshot.WalletAddress == "" {
		missing = append(missing, "wallet address")
	}

	if snapshot.SelectedAsset == "" {
		missing = append(missing, "mining asset")
	}

	visiblePeers := len(engine.KnownPeers())

	if len(missing) > 0 {

		utils.LogWithTime(
			fmt.Sprintf("Pioneer monitor: waiting for %s (%d peers already visible)", strings.Join(missing, " and "), visiblePeers),
			utils.CYAN_COLOR,
		)

		return
	}

	utils.LogWithTime(
		fmt.Sprintf("Pioneer monitor: inputs complete, formation starting (%d peers visible)", visiblePeers),
		utils.CYAN_COLOR,
	)
}
