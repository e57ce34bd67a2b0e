package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playergold/playergold-bootstrap-core/cryptography"
	"github.com/playergold/playergold-bootstrap-core/globals"
	"github.com/playergold/playergold-bootstrap-core/structures"
	"github.com/playergold/playergold-bootstrap-core/utils"
)

// Upper bound for one full discovery pass, directory or scan.
const DISCOVERY_TIMEOUT = 30 * time.Second

// Upper bound for one genesis coordination run including internal retries.
const GENESIS_TIMEOUT = 90 * time.Second

const MAX_RETRY_DELAY = 30 * time.Second

const RETRY_JITTER = 0.1

// Feature gates while the network is still forming. Everything else stays
// available in every mode.
var RESTRICTED_FEATURES = []string{"send_transaction", "mining_operations", "consensus_participation", "block_validation"}

// PeerDiscoverer is the scan-based discovery surface the orchestrator drives.
type PeerDiscoverer interface {
	DetectNetworkMode() string

	ScanForPeers(ctx context.Context, mode string) []structures.PeerInfo

	BroadcastAvailability(walletAddress string)

	ValidatePeerConnection(ctx context.Context, peer structures.PeerInfo) bool
}

// DirectoryDiscoverer is the optional directory-assisted fast path.
type DirectoryDiscoverer interface {
	HasEndpoints() bool

	DiscoverPeers(ctx context.Context) ([]structures.PeerInfo, error)
}

// GenesisCoordinator runs network formation against a peer set.
type GenesisCoordinator interface {
	CoordinateGenesis(ctx context.Context, peers []structures.PeerInfo, localWalletAddress string) (*structures.GenesisResult, error)

	PersistNetworkConfiguration(networkConfig *structures.NetworkConfig, block *structures.GenesisBlock) error
}

// Orchestrator owns the bootstrap state machine PIONEER -> DISCOVERY ->
// GENESIS -> NETWORK. Every state mutation goes through one guarded update
// path that re-derives readiness, bumps the update timestamp, persists
// write-through and publishes lifecycle events.
type Orchestrator struct {
	config *structures.NodeLevelConfig

	discoverer PeerDiscoverer

	directory DirectoryDiscoverer

	coordinator GenesisCoordinator

	publisher *EventPublisher

	mu sync.Mutex

	state structures.BootstrapState

	// generation fences async completions: anything that started under an
	// older generation is discarded when it lands.
	generation uint64

	discoveryInFlight bool

	broadcastDone bool

	retryAttempt int

	backoff *utils.Backoff

	retryTimer *time.Timer

	persistState func(state *structures.BootstrapState) error
}

func NewOrchestrator(config *structures.NodeLevelConfig, discoverer PeerDiscoverer, directoryClient DirectoryDiscoverer, coordinator GenesisCoordinator, publisher *EventPublisher) *Orchestrator {

	return &Orchestrator{
		config:       config,
		discoverer:   discoverer,
		directory:    directoryClient,
		coordinator:  coordinator,
		publisher:    publisher,
		state:        structures.NewBootstrapState(),
		backoff:      utils.NewBackoff(time.Duration(config.RetryBaseDelayMs)*time.Millisecond, MAX_RETRY_DELAY, RETRY_JITTER),
		persistState: utils.StoreBootstrapState,
	}
}

// applyUpdate is the single mutation path. The mutate callback runs under the
// lock; afterwards readiness is re-derived, the snapshot persisted and a
// mode-changed event published when the mode actually moved.
func (orchestrator *Orchestrator) applyUpdate(mutate func(state *structures.BootstrapState)) structures.BootstrapState {

	orchestrator.mu.Lock()

	previousMode := orchestrator.state.Mode

	mutate(&orchestrator.state)

	orchestrator.state.IsReady = orchestrator.state.WalletAddress != "" && orchestrator.state.SelectedAsset != ""

	orchestrator.state.UpdatedAt = utils.GetUTCTimestampInMilliSeconds()

	snapshot := orchestrator.state.CopyBootstrapState()

	orchestrator.mu.Unlock()

	if err := orchestrator.persistState(&snapshot); err != nil {
		utils.LogWithTime(fmt.Sprintf("Bootstrap: failed to persist state: %v", err), utils.RED_COLOR)
	}

	if snapshot.Mode != previousMode {

		orchestrator.publisher.Publish(structures.BootstrapEvent{
			Kind:         structures.EVENT_MODE_CHANGED,
			Mode:         snapshot.Mode,
			PreviousMode: previousMode,
		})

		utils.LogWithTime(fmt.Sprintf("Bootstrap: mode %s => %s", previousMode, snapshot.Mode), utils.CYAN_COLOR)

	}

	return snapshot
}

func (orchestrator *Orchestrator) currentGeneration() uint64 {

	orchestrator.mu.Lock()

	defer orchestrator.mu.Unlock()

	return orchestrator.generation
}

func (orchestrator *Orchestrator) generationIsCurrent(generation uint64) bool {

	orchestrator.mu.Lock()

	defer orchestrator.mu.Unlock()

	return orchestrator.generation == generation
}

// InitializePioneerMode moves the machine to its starting state. User-supplied
// data (wallet, asset, extensions) survives, formation results do not.
func (orchestrator *Orchestrator) InitializePioneerMode() structures.BootstrapState {

	return orchestrator.applyUpdate(func(state *structures.BootstrapState) {

		state.Mode = structures.BOOTSTRAP_MODE_PIONEER

		state.Peers = []structures.PeerInfo{}

		state.GenesisBlock = nil

		state.NetworkConfig = nil

		state.LastError = nil

		state.DiscoveryStrategy = ""

	})
}

// OnWalletAddressCreated records the freshly created wallet address and, when
// this was the last missing input, kicks off discovery.
func (orchestrator *Orchestrator) OnWalletAddressCreated(address string) error {

	if !cryptography.ValidateWalletAddress(address) {

		err := structures.NewBootstrapError(structures.ERR_INVALID_INPUT, fmt.Sprintf("wallet address %q does not match the expected format", address))

		utils.LogWithTime(fmt.Sprintf("Bootstrap: rejected wallet address: %v", err), utils.YELLOW_COLOR)

		return err
	}

	orchestrator.applyUpdate(func(state *structures.BootstrapState) {
		state.WalletAddress = address
	})

	utils.LogWithTime(fmt.Sprintf("Bootstrap: wallet address registered (%s)", address), utils.GREEN_COLOR)

	orchestrator.maybeStartBootstrap()

	return nil
}

// OnMiningReadiness records the certified asset the node will mine with.
func (orchestrator *Orchestrator) OnMiningReadiness(assetRef string, metadata map[string]string) error {

	if !globals.IsCertifiedAsset(assetRef) {

		err := structures.NewBootstrapError(structures.ERR_INVALID_INPUT, fmt.Sprintf("asset %q is not in the certified catalog", assetRef))

		utils.LogWithTime(fmt.Sprintf("Bootstrap: rejected mining readiness: %v", err), utils.YELLOW_COLOR)

		return err
	}

	orchestrator.applyUpdate(func(state *structures.BootstrapState) {

		state.SelectedAsset = assetRef

		state.AssetMetadata = make(map[string]string, len(metadata))

		for key, value := range metadata {
			state.AssetMetadata[key] = value
		}

	})

	utils.LogWithTime(fmt.Sprintf("Bootstrap: mining readiness confirmed with asset %s", assetRef), utils.GREEN_COLOR)

	orchestrator.maybeStartBootstrap()

	return nil
}

// maybeStartBootstrap fires once both asynchronous inputs are present:
// broadcast availability exactly once, then enter discovery.
func (orchestrator *Orchestrator) maybeStartBootstrap() {

	orchestrator.mu.Lock()

	ready := orchestrator.state.IsReady && orchestrator.state.Mode == structures.BOOTSTRAP_MODE_PIONEER

	shouldBroadcast := ready && !orchestrator.broadcastDone

	if shouldBroadcast {
		orchestrator.broadcastDone = true
	}

	walletAddress := orchestrator.state.WalletAddress

	orchestrator.mu.Unlock()

	if !ready {
		return
	}

	if shouldBroadcast {
		go orchestrator.discoverer.BroadcastAvailability(walletAddress)
	}

	go func() {

		if err := orchestrator.StartPeerDiscovery(context.Background()); err != nil {
			utils.LogWithTime(fmt.Sprintf("Bootstrap: automatic discovery failed to start: %v", err), utils.YELLOW_COLOR)
		}

	}()

}

// StartPeerDiscovery runs one full discovery pass: directory first when
// configured, subnet scan otherwise, then evaluates quorum.
func (orchestrator *Orchestrator) StartPeerDiscovery(ctx context.Context) error {

	orchestrator.mu.Lock()

	if orchestrator.state.WalletAddress == "" || orchestrator.state.SelectedAsset == "" {

		orchestrator.mu.Unlock()

		err := structures.NewBootstrapError(structures.ERR_PRECONDITION, "peer discovery requires a wallet address and a selected asset")

		utils.LogWithTime(fmt.Sprintf("Bootstrap: discovery precondition failed: %v", err), utils.YELLOW_COLOR)

		return err
	}

	if orchestrator.state.Mode == structures.BOOTSTRAP_MODE_NETWORK {
		orchestrator.mu.Unlock()
		return nil
	}

	if orchestrator.discoveryInFlight {
		orchestrator.mu.Unlock()
		return nil
	}

	orchestrator.discoveryInFlight = true

	generation := orchestrator.generation

	orchestrator.mu.Unlock()

	defer func() {

		orchestrator.mu.Lock()

		orchestrator.discoveryInFlight = false

		orchestrator.mu.Unlock()

	}()

	orchestrator.applyUpdate(func(state *structures.BootstrapState) {

		if state.Mode == structures.BOOTSTRAP_MODE_PIONEER {
			state.Mode = structures.BOOTSTRAP_MODE_DISCOVERY
		}

	})

	discoveryCtx, cancel := context.WithTimeout(ctx, DISCOVERY_TIMEOUT)

	defer cancel()

	peers, strategy := orchestrator.discoverPeers(discoveryCtx)

	if !orchestrator.generationIsCurrent(generation) {
		return nil
	}

	if len(peers) > orchestrator.config.MaxPeers {
		peers = peers[:orchestrator.config.MaxPeers]
	}

	snapshot := orchestrator.applyUpdate(func(state *structures.BootstrapState) {

		state.Peers = peers

		state.DiscoveryStrategy = strategy

	})

	orchestrator.publisher.Publish(structures.BootstrapEvent{
		Kind:  structures.EVENT_PEERS_DISCOVERED,
		Mode:  snapshot.Mode,
		Peers: snapshot.Peers,
	})

	utils.LogWithTime(fmt.Sprintf("Bootstrap: discovery via %s found %d peers (quorum %d)", strategy, len(peers), orchestrator.config.MinQuorum), utils.CYAN_COLOR)

	if len(peers) < orchestrator.config.MinQuorum {

		err := structures.NewBootstrapError(structures.ERR_INSUFFICIENT_PEERS, fmt.Sprintf("discovery found %d peers, quorum is %d", len(peers), orchestrator.config.MinQuorum))

		orchestrator.escalateError(err, generation)

		return err
	}

	orchestrator.applyUpdate(func(state *structures.BootstrapState) {
		state.Mode = structures.BOOTSTRAP_MODE_GENESIS
	})

	go orchestrator.runGenesisPhase(generation)

	return nil
}

// discoverPeers prefers the directory fast path and falls back to scanning
// whenever the directory is missing, unreachable or under-delivers.
func (orchestrator *Orchestrator) discoverPeers(ctx context.Context) ([]structures.PeerInfo, string) {

	if orchestrator.directory != nil && orchestrator.directory.HasEndpoints() {

		peers, err := orchestrator.directory.DiscoverPeers(ctx)

		if err == nil && len(peers) >= orchestrator.config.MinQuorum {
			return peers, structures.DISCOVERY_STRATEGY_DIRECTORY
		}

		if err != nil {
			utils.LogWithTime(fmt.Sprintf("Bootstrap: directory discovery unavailable (%v), falling back to scan", err), utils.YELLOW_COLOR)
		} else {
			utils.LogWithTime(fmt.Sprintf("Bootstrap: directory delivered %d peers, below quorum, falling back to scan", len(peers)), utils.YELLOW_COLOR)
		}

	}

	mode := orchestrator.discoverer.DetectNetworkMode()

	return orchestrator.discoverer.ScanForPeers(ctx, mode), structures.DISCOVERY_STRATEGY_SCAN
}

// runGenesisPhase invokes the coordinator against the discovered peer set and
// applies the outcome, unless the world moved on underneath it.
func (orchestrator *Orchestrator) runGenesisPhase(generation uint64) {

	orchestrator.mu.Lock()

	if orchestrator.generation != generation || orchestrator.state.Mode != structures.BOOTSTRAP_MODE_GENESIS {
		orchestrator.mu.Unlock()
		return
	}

	peers := make([]structures.PeerInfo, 0, len(orchestrator.state.Peers))

	for _, peer := range orchestrator.state.Peers {
		peers = append(peers, peer.CopyPeerInfo())
	}

	walletAddress := orchestrator.state.WalletAddress

	orchestrator.mu.Unlock()

	genesisCtx, cancel := context.WithTimeout(context.Background(), GENESIS_TIMEOUT)

	defer cancel()

	result, err := orchestrator.coordinator.CoordinateGenesis(genesisCtx, peers, walletAddress)

	if !orchestrator.generationIsCurrent(generation) {
		return
	}

	if err != nil {
		orchestrator.escalateError(err, generation)
		return
	}

	if err := orchestrator.OnGenesisCreated(result); err != nil {
		orchestrator.escalateError(err, generation)
	}

}

// OnGenesisCreated persists the formation result and activates the network:
// terminal NETWORK mode, feature restrictions lifted, collaborators notified.
func (orchestrator *Orchestrator) OnGenesisCreated(result *structures.GenesisResult) error {

	if result == nil || result.Block == nil || result.NetworkConfig == nil {
		return structures.NewBootstrapError(structures.ERR_GENESIS_FAILURE, "genesis coordination returned an incomplete result")
	}

	if err := orchestrator.coordinator.PersistNetworkConfiguration(result.NetworkConfig, result.Block); err != nil {
		return structures.WrapBootstrapError(structures.ERR_GENESIS_FAILURE, "failed to persist network configuration", err)
	}

	snapshot := orchestrator.applyUpdate(func(state *structures.BootstrapState) {

		blockCopy := result.Block.CopyGenesisBlock()

		configCopy := result.NetworkConfig.CopyNetworkConfig()

		state.GenesisBlock = &blockCopy

		state.NetworkConfig = &configCopy

		state.LastError = nil

		state.Mode = structures.BOOTSTRAP_MODE_NETWORK

	})

	orchestrator.mu.Lock()

	orchestrator.retryAttempt = 0

	orchestrator.backoff.Reset()

	orchestrator.mu.Unlock()

	orchestrator.publisher.Publish(structures.BootstrapEvent{
		Kind:          structures.EVENT_GENESIS_CREATED,
		Mode:          snapshot.Mode,
		GenesisBlock:  snapshot.GenesisBlock,
		NetworkConfig: snapshot.NetworkConfig,
	})

	orchestrator.publisher.Publish(structures.BootstrapEvent{
		Kind:          structures.EVENT_NETWORK_ACTIVATED,
		Mode:          snapshot.Mode,
		NetworkConfig: snapshot.NetworkConfig,
	})

	utils.LogWithTime(fmt.Sprintf("Bootstrap: network activated (%s), all features unlocked", snapshot.NetworkConfig.NetworkId), utils.GREEN_COLOR)

	return nil
}

// OnPeerDisconnected removes a dead peer from the formation set. A single
// disconnection is absorbed as long as quorum holds; quorum loss escalates a
// retryable PeerDisconnection so the backoff loop re-discovers.
func (orchestrator *Orchestrator) OnPeerDisconnected(peerId string) {

	orchestrator.mu.Lock()

	mode := orchestrator.state.Mode

	generation := orchestrator.generation

	known := false

	for _, peer := range orchestrator.state.Peers {

		if peer.Id == peerId {
			known = true
			break
		}

	}

	orchestrator.mu.Unlock()

	if !known || (mode != structures.BOOTSTRAP_MODE_DISCOVERY && mode != structures.BOOTSTRAP_MODE_GENESIS) {
		return
	}

	snapshot := orchestrator.applyUpdate(func(state *structures.BootstrapState) {

		remaining := make([]structures.PeerInfo, 0, len(state.Peers))

		for _, peer := range state.Peers {

			if peer.Id != peerId {
				remaining = append(remaining, peer)
			}

		}

		state.Peers = remaining

	})

	utils.LogWithTime(fmt.Sprintf("Bootstrap: peer %s disconnected, %d peers remain", peerId, len(snapshot.Peers)), utils.YELLOW_COLOR)

	if len(snapshot.Peers) < orchestrator.config.MinQuorum {

		disconnectErr := structures.NewBootstrapError(structures.ERR_PEER_DISCONNECTION, fmt.Sprintf("peer %s disconnected, quorum lost", peerId))

		orchestrator.escalateError(disconnectErr, generation)

	}

}

// escalateError records the failure with its two artifacts (operator log and
// user-facing message) and schedules a backoff retry when the kind allows it.
func (orchestrator *Orchestrator) escalateError(err error, generation uint64) {

	if !orchestrator.generationIsCurrent(generation) {
		return
	}

	kind := structures.KindOf(err)

	userMessage := structures.UserMessageOf(err)

	orchestrator.mu.Lock()

	retryAttempt := orchestrator.retryAttempt

	mode := orchestrator.state.Mode

	orchestrator.mu.Unlock()

	utils.LogWithTime(fmt.Sprintf("Bootstrap: %s in mode %s (retry %d/%d): %v", kind, mode, retryAttempt, orchestrator.config.MaxRetryAttempts, err), utils.RED_COLOR)

	retryable := structures.IsRetryable(err)

	exhausted := retryable && retryAttempt >= orchestrator.config.MaxRetryAttempts

	if exhausted {
		userMessage = structures.USER_MESSAGE_RETRIES_EXHAUSTED
	}

	lastError := &structures.LastErrorInfo{
		Kind:        string(kind),
		UserMessage: userMessage,
		Timestamp:   utils.GetUTCTimestampInMilliSeconds(),
	}

	snapshot := orchestrator.applyUpdate(func(state *structures.BootstrapState) {
		state.LastError = lastError
	})

	orchestrator.publisher.Publish(structures.BootstrapEvent{
		Kind:  structures.EVENT_ERROR,
		Mode:  snapshot.Mode,
		Error: lastError,
	})

	if !retryable || exhausted {

		if exhausted {
			utils.LogWithTime(fmt.Sprintf("Bootstrap: abandoned after %d retries", retryAttempt), utils.RED_COLOR)
		}

		return
	}

	orchestrator.scheduleRetry(generation)
}

// scheduleRetry arms a deferred timer with exponential backoff. Deferred, not
// recursive, so callers return immediately and the machine stays responsive.
func (orchestrator *Orchestrator) scheduleRetry(generation uint64) {

	orchestrator.mu.Lock()

	orchestrator.retryAttempt++

	delay := orchestrator.backoff.Next()

	attempt := orchestrator.retryAttempt

	if orchestrator.retryTimer != nil {
		orchestrator.retryTimer.Stop()
	}

	orchestrator.retryTimer = time.AfterFunc(delay, func() {
		orchestrator.retryBootstrap(generation)
	})

	orchestrator.mu.Unlock()

	utils.LogWithTime(fmt.Sprintf("Bootstrap: retry %d scheduled in %s", attempt, delay), utils.YELLOW_COLOR)
}

// retryBootstrap re-enters the pipeline at the right phase: genesis when a
// quorum of peers is still known, discovery otherwise.
func (orchestrator *Orchestrator) retryBootstrap(generation uint64) {

	orchestrator.mu.Lock()

	if orchestrator.generation != generation {
		orchestrator.mu.Unlock()
		return
	}

	mode := orchestrator.state.Mode

	peerCount := len(orchestrator.state.Peers)

	orchestrator.mu.Unlock()

	if mode == structures.BOOTSTRAP_MODE_GENESIS && peerCount >= orchestrator.config.MinQuorum {
		orchestrator.runGenesisPhase(generation)
		return
	}

	if err := orchestrator.StartPeerDiscovery(context.Background()); err != nil {
		utils.LogWithTime(fmt.Sprintf("Bootstrap: retry discovery failed: %v", err), utils.YELLOW_COLOR)
	}

}

// Reset is the explicit user escape hatch: abandon any in-flight phase and
// return to PIONEER. Wallet, asset and extension data survive; formation
// results, errors and the broadcast guard do not.
func (orchestrator *Orchestrator) Reset() structures.BootstrapState {

	orchestrator.mu.Lock()

	orchestrator.generation++

	if orchestrator.retryTimer != nil {
		orchestrator.retryTimer.Stop()
		orchestrator.retryTimer = nil
	}

	orchestrator.retryAttempt = 0

	orchestrator.backoff.Reset()

	orchestrator.broadcastDone = false

	orchestrator.mu.Unlock()

	utils.LogWithTime("Bootstrap: reset requested, returning to pioneer mode", utils.MAGENTA_COLOR)

	return orchestrator.InitializePioneerMode()
}

// GetStateSnapshot returns a deep copy safe for concurrent readers.
func (orchestrator *Orchestrator) GetStateSnapshot() structures.BootstrapState {

	orchestrator.mu.Lock()

	defer orchestrator.mu.Unlock()

	return orchestrator.state.CopyBootstrapState()
}

// SetExtension stores caller-supplied opaque data that must survive
// transitions and resets.
func (orchestrator *Orchestrator) SetExtension(key, value string) {

	orchestrator.applyUpdate(func(state *structures.BootstrapState) {

		if state.Extensions == nil {
			state.Extensions = make(map[string]string)
		}

		state.Extensions[key] = value

	})

}

// IsFeatureAvailable gates chain-level features until the network exists.
func (orchestrator *Orchestrator) IsFeatureAvailable(feature string) bool {

	orchestrator.mu.Lock()

	mode := orchestrator.state.Mode

	orchestrator.mu.Unlock()

	if mode == structures.BOOTSTRAP_MODE_NETWORK {
		return true
	}

	for _, restricted := range RESTRICTED_FEATURES {

		if restricted == feature {
			return false
		}

	}

	return true
}

// GetRestrictedFeatures lists the features currently unavailable.
func (orchestrator *Orchestrator) GetRestrictedFeatures() []string {

	orchestrator.mu.Lock()

	mode := orchestrator.state.Mode

	orchestrator.mu.Unlock()

	if mode == structures.BOOTSTRAP_MODE_NETWORK {
		return []string{}
	}

	restricted := make([]string, len(RESTRICTED_FEATURES))

	copy(restricted, RESTRICTED_FEATURES)

	return restricted
}

// LoadPersistedState adopts the state stored by a previous run. Returns true
// when something was restored.
func (orchestrator *Orchestrator) LoadPersistedState() (bool, error) {

	persisted, err := utils.LoadBootstrapState()

	if err != nil {
		return false, err
	}

	if persisted == nil {
		return false, nil
	}

	orchestrator.mu.Lock()

	orchestrator.state = persisted.CopyBootstrapState()

	orchestrator.broadcastDone = orchestrator.state.IsReady

	orchestrator.mu.Unlock()

	utils.LogWithTime(fmt.Sprintf("Bootstrap: restored persisted state (mode %s, %d peers)", persisted.Mode, len(persisted.Peers)), utils.CYAN_COLOR)

	return true, nil
}

// ResumeAfterRestart continues from the last completed phase boundary: a
// formed network stays formed, a mid-flight bootstrap re-enters discovery.
func (orchestrator *Orchestrator) ResumeAfterRestart() {

	snapshot := orchestrator.GetStateSnapshot()

	// The in-memory advert does not survive restarts. Re-announce so
	// symmetric scanners keep finding this node.
	if snapshot.IsReady && snapshot.WalletAddress != "" {
		go orchestrator.discoverer.BroadcastAvailability(snapshot.WalletAddress)
	}

	switch snapshot.Mode {

	case structures.BOOTSTRAP_MODE_NETWORK:

		utils.LogWithTime("Bootstrap: resumed an already formed network, skipping bootstrap", utils.GREEN_COLOR)

	case structures.BOOTSTRAP_MODE_DISCOVERY, structures.BOOTSTRAP_MODE_GENESIS:

		if snapshot.IsReady {

			go func() {

				if err := orchestrator.StartPeerDiscovery(context.Background()); err != nil {
					utils.LogWithTime(fmt.Sprintf("Bootstrap: resume discovery failed: %v", err), utils.YELLOW_COLOR)
				}

			}()

		}

	default:

		// Pioneer: wait for the wallet and asset inputs as usual.

	}

}
