package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/playergold/playergold-bootstrap-core/databases"
	"github.com/playergold/playergold-bootstrap-core/directory"
	"github.com/playergold/playergold-bootstrap-core/discovery"
	"github.com/playergold/playergold-bootstrap-core/genesis"
	"github.com/playergold/playergold-bootstrap-core/globals"
	"github.com/playergold/playergold-bootstrap-core/http_pack"
	"github.com/playergold/playergold-bootstrap-core/http_pack/routes"
	"github.com/playergold/playergold-bootstrap-core/netstate"
	"github.com/playergold/playergold-bootstrap-core/orchestrator"
	"github.com/playergold/playergold-bootstrap-core/structures"
	"github.com/playergold/playergold-bootstrap-core/threads"
	"github.com/playergold/playergold-bootstrap-core/utils"
	"github.com/playergold/playergold-bootstrap-core/websocket_pack"
)

func main() {

	go trapStopSignals()

	RunBootstrapNode()

}

func RunBootstrapNode() {

	if err := prepareBootstrapNode(); err != nil {

		utils.LogWithTime(fmt.Sprintf("Failed to prepare bootstrap node: %v", err), utils.RED_COLOR)

		utils.GracefulShutdown()

		return

	}

	//_________________________ BUILD THE BOOTSTRAP PIPELINE _________________________

	publisher := orchestrator.NewEventPublisher()

	engine := discovery.NewEngine(&globals.CONFIGURATION)

	var directoryClient *directory.Client

	// The interface stays nil unless endpoints exist. Assigning a nil *Client
	// would make the orchestrator see a non-nil discoverer.
	var directoryDiscoverer orchestrator.DirectoryDiscoverer

	if len(globals.CONFIGURATION.DirectoryEndpoints) > 0 {

		directoryClient = directory.NewClient(&globals.CONFIGURATION, engine)

		directoryDiscoverer = directoryClient

	}

	coordinator := genesis.NewCoordinator(&globals.CONFIGURATION, engine, func(phase string) {

		publisher.Publish(structures.BootstrapEvent{
			Kind:         structures.EVENT_GENESIS_PHASE_CHANGED,
			GenesisPhase: phase,
		})

	})

	bootstrap := orchestrator.NewOrchestrator(&globals.CONFIGURATION, engine, directoryDiscoverer, coordinator, publisher)

	netManager := netstate.NewManager(&globals.CONFIGURATION, bootstrap)

	restored, err := bootstrap.LoadPersistedState()

	if err != nil {
		utils.LogWithTime(fmt.Sprintf("Failed to restore bootstrap state: %v", err), utils.RED_COLOR)
	}

	if !restored {
		bootstrap.InitializePioneerMode()
	}

	utils.PrintBanner()

	eventsCh, _ := publisher.Subscribe()

	go netManager.ConsumeEvents(eventsCh)

	bootstrap.ResumeAfterRestart()

	//_________________________ RUN SEVERAL LOGICAL THREADS _________________________

	//✅ 1.Thread to re-broadcast availability while forming
	go threads.AvailabilityBroadcastThread(bootstrap, engine)

	//✅ 2.Thread to keep the directory registration alive
	go threads.DirectoryKeepaliveThread(bootstrap, directoryClient)

	//✅ 3.Thread to watch formation peers for disconnections
	go threads.PeerWatchdogThread(bootstrap, engine)

	//✅ 4.Thread to report pioneer-phase status
	go threads.PioneerMonitorThread(bootstrap, engine)

	//___________________ RUN SERVERS - WEBSOCKET AND HTTP __________________

	wsServer := websocket_pack.NewServer(&globals.CONFIGURATION, engine)

	go wsServer.CreateWebsocketServer()

	apiHandlers := &routes.Handlers{
		Config:       &globals.CONFIGURATION,
		Orchestrator: bootstrap,
		NetState:     netManager,
		Directory:    directoryClient,
	}

	http_pack.CreateHTTPServer(apiHandlers)

}

func prepareBootstrapNode() error {

	if info, err := os.Stat(globals.CHAINDATA_PATH); err != nil {

		if os.IsNotExist(err) {

			if err := os.MkdirAll(globals.CHAINDATA_PATH, 0755); err != nil {

				return fmt.Errorf("create chaindata directory: %w", err)

			}

		} else {

			return fmt.Errorf("check chaindata directory: %w", err)

		}

	} else if !info.IsDir() {

		return fmt.Errorf("chaindata path %s exists and is not a directory", globals.CHAINDATA_PATH)

	}

	if err := globals.LoadConfiguration(); err != nil {
		return err
	}

	databases.STATE = utils.OpenDb("STATE")
	databases.NETWORK_DATA = utils.OpenDb("NETWORK_DATA")
	databases.ATTEMPTS = utils.OpenDb("ATTEMPTS")

	return nil
}

func trapStopSignals() {

	stopSignals := make(chan os.Signal, 1)

	signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)

	<-stopSignals

	utils.GracefulShutdown()

}
