package threads

import (
	"fmt"
	"time"

	"github.com/playergold/playergold-bootstrap-core/directory"
	"github.com/playergold/playergold-bootstrap-core/orchestrator"
	"github.com/playergold/playergold-bootstrap-core/utils"
)

const DIRECTORY_KEEPALIVE_INTERVAL = 60 * time.Second

// DirectoryKeepaliveThread registers the node with the configured directory
// and renews the registration every minute so it stays in the network map.
// Directories prune silent nodes, so a failed renewal falls back to a fresh
// registration on the next tick.
func DirectoryKeepaliveThread(bootstrap *orchestrator.Orchestrator, client *directory.Client) {

	if client == nil || !client.HasEndpoints() {
		utils.LogWithTime("Directory keepalive: no endpoints configured, thread idle", utils.YELLOW_COLOR)
		return
	}

	registered := false

	if err := client.Register(); err != nil {
		utils.LogWithTime(fmt.Sprintf("Directory keepalive: initial registration failed: %v", err), utils.YELLOW_COLOR)
	} else {
		registered = true
	}

	ticker := time.NewTicker(DIRECTORY_KEEPALIVE_INTERVAL)

	defer ticker.Stop()

	for range ticker.C {

		registered = renewDirectoryPresence(bootstrap, client, registered)

	}

}

func renewDirectoryPresence(bootstrap *orchestrator.Orchestrator, client *directory.Client, registered bool) bool {

	if !registered {

		if err := client.Register(); err != nil {
			utils.LogWithTime(fmt.Sprintf("Directory keepalive: registration retry failed: %v", err), utils.YELLOW_COLOR)
			return false
		}

	}

	snapshot := bootstrap.GetStateSnapshot()

	blockchainHeight := 0

	if snapshot.GenesisBlock != nil {
		blockchainHeight = 1
	}

	if err := client.Keepalive(blockchainHeight, len(snapshot.Peers)); err != nil {

		utils.LogWithTime(fmt.Sprintf("Directory keepalive: renewal failed: %v", err), utils.YELLOW_COLOR)

		return false
	}

	return true
}
