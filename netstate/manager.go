package netstate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/playergold/playergold-bootstrap-core/genesis"
	"github.com/playergold/playergold-bootstrap-core/structures"
	"github.com/playergold/playergold-bootstrap-core/utils"
)

// Derived network states. These are never stored, always computed from the
// current bootstrap snapshot plus genesis knowledge.
const (
	STATE_DISCONNECTED        = "disconnected"
	STATE_CONNECTING          = "connecting"
	STATE_BOOTSTRAP_PIONEER   = "bootstrap_pioneer"
	STATE_BOOTSTRAP_DISCOVERY = "bootstrap_discovery"
	STATE_BOOTSTRAP_GENESIS   = "bootstrap_genesis"
	STATE_ACTIVE              = "active"
)

// Operations whose availability depends on the derived state.
const (
	OP_WALLET_CREATION  = "wallet_creation"
	OP_PEER_DISCOVERY   = "peer_discovery"
	OP_NETWORK_STATUS   = "network_status"
	OP_GENESIS_CREATION = "genesis_creation"
	OP_SEND_TRANSACTION = "send_transaction"
	OP_BALANCE_QUERY    = "balance_query"
	OP_MINING           = "mining"
	OP_FAUCET           = "faucet"
)

const REMOTE_GENESIS_QUERY_TIMEOUT = 3 * time.Second

var bootstrapStates = []string{STATE_BOOTSTRAP_PIONEER, STATE_BOOTSTRAP_DISCOVERY, STATE_BOOTSTRAP_GENESIS}

var chainStates = []string{STATE_ACTIVE}

var allStates = []string{STATE_DISCONNECTED, STATE_CONNECTING, STATE_BOOTSTRAP_PIONEER, STATE_BOOTSTRAP_DISCOVERY, STATE_BOOTSTRAP_GENESIS, STATE_ACTIVE}

var allowedStatesPerOperation = map[string][]string{
	OP_WALLET_CREATION:  allStates,
	OP_PEER_DISCOVERY:   allStates,
	OP_NETWORK_STATUS:   allStates,
	OP_GENESIS_CREATION: bootstrapStates,
	OP_SEND_TRANSACTION: chainStates,
	OP_BALANCE_QUERY:    chainStates,
	OP_MINING:           chainStates,
	OP_FAUCET:           chainStates,
}

// SnapshotProvider is the read-only view the manager needs from the
// orchestrator.
type SnapshotProvider interface {
	GetStateSnapshot() structures.BootstrapState
}

// FormationRequirement is the structured answer for a gated operation. Gated
// calls never fabricate domain data, they return this instead.
type FormationRequirement struct {
	Operation    string `json:"operation"`
	CurrentState string `json:"currentState"`
	Allowed      bool   `json:"allowed"`
	UserMessage  string `json:"userMessage,omitempty"`
}

// Manager derives the coarse network state used to gate chain-level
// operations before the network exists.
type Manager struct {
	config *structures.NodeLevelConfig

	snapshots SnapshotProvider

	cacheMutex sync.Mutex

	cachedGenesisVerdict *bool
}

func NewManager(config *structures.NodeLevelConfig, snapshots SnapshotProvider) *Manager {
	return &Manager{config: config, snapshots: snapshots}
}

// DeriveNetworkState computes the current state from the bootstrap snapshot.
func (manager *Manager) DeriveNetworkState(ctx context.Context) string {

	snapshot := manager.snapshots.GetStateSnapshot()

	if snapshot.Mode == structures.BOOTSTRAP_MODE_NETWORK {
		return STATE_ACTIVE
	}

	if manager.VerifyGenesisExists(ctx, &snapshot) {
		return STATE_CONNECTING
	}

	if snapshot.WalletAddress == "" && snapshot.Mode == structures.BOOTSTRAP_MODE_PIONEER && !snapshot.IsReady {
		return STATE_DISCONNECTED
	}

	switch snapshot.Mode {

	case structures.BOOTSTRAP_MODE_DISCOVERY:
		return STATE_BOOTSTRAP_DISCOVERY

	case structures.BOOTSTRAP_MODE_GENESIS:
		return STATE_BOOTSTRAP_GENESIS

	default:
		return STATE_BOOTSTRAP_PIONEER

	}

}

// VerifyGenesisExists answers whether a genesis block is known to exist for
// this network. Checks run cheapest first: the local database, then the
// in-memory snapshot, then a majority poll of known peers. The verdict is
// cached until the next mode change.
func (manager *Manager) VerifyGenesisExists(ctx context.Context, snapshot *structures.BootstrapState) bool {

	manager.cacheMutex.Lock()

	if manager.cachedGenesisVerdict != nil {

		verdict := *manager.cachedGenesisVerdict

		manager.cacheMutex.Unlock()

		return verdict
	}

	manager.cacheMutex.Unlock()

	verdict := manager.verifyGenesisUncached(ctx, snapshot)

	manager.cacheMutex.Lock()

	manager.cachedGenesisVerdict = &verdict

	manager.cacheMutex.Unlock()

	return verdict
}

func (manager *Manager) verifyGenesisUncached(ctx context.Context, snapshot *structures.BootstrapState) bool {

	if genesis.HasPersistedGenesis() {
		return true
	}

	if snapshot.GenesisBlock != nil {
		return true
	}

	return manager.queryPeersForGenesis(ctx, snapshot.Peers)
}

// queryPeersForGenesis polls known peers over the genesis_query route and
// accepts the answer when a majority reports an existing genesis.
func (manager *Manager) queryPeersForGenesis(ctx context.Context, peers []structures.PeerInfo) bool {

	if len(peers) == 0 {
		return false
	}

	message, err := json.Marshal(structures.WsGenesisQueryRequest{Route: structures.WS_ROUTE_GENESIS_QUERY})

	if err != nil {
		return false
	}

	targets := make(map[string]structures.PeerInfo, len(peers))

	for _, peer := range peers {
		targets[peer.Id] = peer
	}

	wsConnMap := utils.GetPeerConnections(peers)

	defer utils.ReleasePeerConnections(wsConnMap)

	majority := utils.GetAckMajority(len(targets))

	queryCtx, cancel := context.WithTimeout(ctx, REMOTE_GENESIS_QUERY_TIMEOUT)

	defer cancel()

	waiter := utils.NewQuorumWaiter(len(targets))

	responses, _ := waiter.SendAndWait(queryCtx, message, targets, wsConnMap, majority)

	positive := 0

	for _, raw := range responses {

		var reply structures.WsGenesisQueryResponse

		if json.Unmarshal(raw, &reply) == nil && reply.HasGenesis {
			positive++
		}

	}

	return positive >= majority
}

// IsOperationAllowed reports whether the operation may run in the current
// derived state.
func (manager *Manager) IsOperationAllowed(ctx context.Context, operation string) bool {

	allowedStates, known := allowedStatesPerOperation[operation]

	if !known {
		return false
	}

	currentState := manager.DeriveNetworkState(ctx)

	for _, state := range allowedStates {

		if state == currentState {
			return true
		}

	}

	return false
}

// CheckOperation wraps IsOperationAllowed into the structured gate response.
func (manager *Manager) CheckOperation(ctx context.Context, operation string) FormationRequirement {

	currentState := manager.DeriveNetworkState(ctx)

	requirement := FormationRequirement{
		Operation:    operation,
		CurrentState: currentState,
		Allowed:      manager.IsOperationAllowed(ctx, operation),
	}

	if !requirement.Allowed {
		requirement.UserMessage = structures.USER_MESSAGE_NETWORK_FORMATION_REQUIRED
	}

	return requirement
}

// AllowedOperations lists every known operation permitted in the current state.
func (manager *Manager) AllowedOperations(ctx context.Context) []string {

	allowed := make([]string, 0, len(allowedStatesPerOperation))

	for operation := range allowedStatesPerOperation {

		if manager.IsOperationAllowed(ctx, operation) {
			allowed = append(allowed, operation)
		}

	}

	sort.Strings(allowed)

	return allowed
}

// ClearCache drops the cached genesis verdict. Called on every mode change,
// since transitions are exactly the moments the answer can flip.
func (manager *Manager) ClearCache() {

	manager.cacheMutex.Lock()

	manager.cachedGenesisVerdict = nil

	manager.cacheMutex.Unlock()
}

// ConsumeEvents watches the orchestrator event stream and invalidates the
// cache on each mode change. Blocks until the channel closes.
func (manager *Manager) ConsumeEvents(eventsCh <-chan structures.BootstrapEvent) {

	for event := range eventsCh {

		if event.Kind == structures.EVENT_MODE_CHANGED {

			manager.ClearCache()

			utils.LogWithTime(fmt.Sprintf("Network state: cache cleared after mode change %s => %s", event.PreviousMode, event.Mode), utils.CYAN_COLOR)

		}

	}

}
