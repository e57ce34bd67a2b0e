package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/playergold/playergold-bootstrap-core/block_pack"
	"github.com/playergold/playergold-bootstrap-core/structures"
)

const (
	testWallet = "PG11000000000000000000000000000000000000"
	testAsset  = "gemma-3-4b"
)

type fakeDiscoverer struct {
	mu sync.Mutex

	peers []structures.PeerInfo

	broadcasts int

	scans int

	peersAlive bool
}

func (fake *fakeDiscoverer) DetectNetworkMode() string {
	return structures.NETWORK_MODE_TESTNET
}

func (fake *fakeDiscoverer) ScanForPeers(ctx context.Context, mode string) []structures.PeerInfo {

	fake.mu.Lock()

	defer fake.mu.Unlock()

	fake.scans++

	peers := make([]structures.PeerInfo, len(fake.peers))

	copy(peers, fake.peers)

	return peers
}

func (fake *fakeDiscoverer) BroadcastAvailability(walletAddress string) {

	fake.mu.Lock()

	fake.broadcasts++

	fake.mu.Unlock()

}

func (fake *fakeDiscoverer) ValidatePeerConnection(ctx context.Context, peer structures.PeerInfo) bool {

	fake.mu.Lock()

	defer fake.mu.Unlock()

	return fake.peersAlive
}

func (fake *fakeDiscoverer) broadcastCount() int {

	fake.mu.Lock()

	defer fake.mu.Unlock()

	return fake.broadcasts
}

func (fake *fakeDiscoverer) scanCount() int {

	fake.mu.Lock()

	defer fake.mu.Unlock()

	return fake.scans
}

type fakeDirectory struct {
	mu sync.Mutex

	endpoints bool

	peers []structures.PeerInfo

	err error

	calls int
}

func (fake *fakeDirectory) HasEndpoints() bool {
	return fake.endpoints
}

func (fake *fakeDirectory) DiscoverPeers(ctx context.Context) ([]structures.PeerInfo, error) {

	fake.mu.Lock()

	defer fake.mu.Unlock()

	fake.calls++

	return fake.peers, fake.err
}

type fakeCoordinator struct {
	mu sync.Mutex

	calls int

	err error

	persistErr error

	persisted int
}

func (fake *fakeCoordinator) CoordinateGenesis(ctx context.Context, peers []structures.PeerInfo, localWalletAddress string) (*structures.GenesisResult, error) {

	fake.mu.Lock()

	fake.calls++

	err := fake.err

	fake.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return buildGenesisResult(peers, localWalletAddress), nil
}

func (fake *fakeCoordinator) PersistNetworkConfiguration(networkConfig *structures.NetworkConfig, block *structures.GenesisBlock) error {

	fake.mu.Lock()

	defer fake.mu.Unlock()

	fake.persisted++

	return fake.persistErr
}

func (fake *fakeCoordinator) callCount() int {

	fake.mu.Lock()

	defer fake.mu.Unlock()

	return fake.calls
}

// buildGenesisResult mirrors what a successful coordination hands back, built
// from the real deterministic block constructor.
func buildGenesisResult(peers []structures.PeerInfo, localWalletAddress string) *structures.GenesisResult {

	participants := []string{localWalletAddress}

	rewards := map[string]uint64{localWalletAddress: 1000}

	for _, peer := range peers {
		participants = append(participants, peer.WalletAddress)
		rewards[peer.WalletAddress] = 1000
	}

	params := structures.GenesisParams{
		Timestamp:    1700000000000,
		Difficulty:   1,
		Participants: participants,
		Rewards:      rewards,
		NetworkId:    "pg-testnet-fixed",
		ConsensusRules: structures.ConsensusRules{
			Algorithm:        "proof-of-ai-work",
			BlockTimeSeconds: 10,
			MinValidators:    3,
			MaxValidators:    100,
		},
	}

	block := block_pack.NewGenesisBlock(params)

	return &structures.GenesisResult{
		Block: &block,
		NetworkConfig: &structures.NetworkConfig{
			NetworkId:      params.NetworkId,
			GenesisHash:    block.Hash,
			Peers:          peers,
			ConsensusRules: params.ConsensusRules,
			CreatedAt:      params.Timestamp,
		},
		Participants: participants,
	}
}

func testConfig() *structures.NodeLevelConfig {
	return &structures.NodeLevelConfig{
		PublicKey:        "self-node",
		NetworkMode:      structures.NETWORK_MODE_TESTNET,
		MinQuorum:        2,
		MaxPeers:         10,
		MaxRetryAttempts: 2,
		RetryBaseDelayMs: 10,
	}
}

func readyPeers(count int) []structures.PeerInfo {

	wallets := []string{
		"PGaa000000000000000000000000000000000000",
		"PGbb000000000000000000000000000000000000",
		"PGcc000000000000000000000000000000000000",
		"PGdd000000000000000000000000000000000000",
	}

	peers := make([]structures.PeerInfo, 0, count)

	for i := 0; i < count; i++ {
		peers = append(peers, structures.PeerInfo{
			Id:            "node-" + wallets[i][2:4],
			Address:       "192.168.1.10",
			Port:          8333 + i,
			WalletAddress: wallets[i],
			NetworkMode:   structures.NETWORK_MODE_TESTNET,
			IsReady:       true,
		})
	}

	return peers
}

func newTestOrchestrator(config *structures.NodeLevelConfig, discoverer PeerDiscoverer, directoryClient DirectoryDiscoverer, coordinator GenesisCoordinator) (*Orchestrator, *EventPublisher) {

	publisher := NewEventPublisher()

	bootstrap := NewOrchestrator(config, discoverer, directoryClient, coordinator, publisher)

	bootstrap.persistState = func(state *structures.BootstrapState) error { return nil }

	bootstrap.InitializePioneerMode()

	return bootstrap, publisher
}

// makeReady installs both user inputs without triggering the automatic
// discovery kickoff, so tests drive the pipeline explicitly.
func makeReady(bootstrap *Orchestrator) {

	bootstrap.applyUpdate(func(state *structures.BootstrapState) {
		state.WalletAddress = testWallet
		state.SelectedAsset = testAsset
	})

}

func TestOnWalletAddressCreated(t *testing.T) {

	require := require.New(t)

	bootstrap, _ := newTestOrchestrator(testConfig(), &fakeDiscoverer{}, nil, &fakeCoordinator{})

	for _, invalid := range []string{"", "PG", "XX11000000000000000000000000000000000000", testWallet + "f", "PGzz000000000000000000000000000000000000"} {

		err := bootstrap.OnWalletAddressCreated(invalid)

		require.Error(err, invalid)

		require.Equal(structures.ERR_INVALID_INPUT, structures.KindOf(err))

	}

	require.Empty(bootstrap.GetStateSnapshot().WalletAddress)

	require.NoError(bootstrap.OnWalletAddressCreated(testWallet))

	snapshot := bootstrap.GetStateSnapshot()

	require.Equal(testWallet, snapshot.WalletAddress)

	require.False(snapshot.IsReady)

	require.Equal(structures.BOOTSTRAP_MODE_PIONEER, snapshot.Mode)

}

func TestOnMiningReadiness(t *testing.T) {

	require := require.New(t)

	bootstrap, _ := newTestOrchestrator(testConfig(), &fakeDiscoverer{}, nil, &fakeCoordinator{})

	err := bootstrap.OnMiningReadiness("uncertified-model", nil)

	require.Error(err)

	require.Equal(structures.ERR_INVALID_INPUT, structures.KindOf(err))

	metadata := map[string]string{"quantization": "q4"}

	require.NoError(bootstrap.OnMiningReadiness(testAsset, metadata))

	metadata["quantization"] = "mutated-after-the-fact"

	snapshot := bootstrap.GetStateSnapshot()

	require.Equal(testAsset, snapshot.SelectedAsset)

	require.Equal("q4", snapshot.AssetMetadata["quantization"])

}

// The full happy path: wallet + asset arrive, discovery finds quorum, genesis
// coordination succeeds, the machine lands in NETWORK with everything unlocked.
func TestBootstrapEndToEnd(t *testing.T) {

	require := require.New(t)

	discoverer := &fakeDiscoverer{peers: readyPeers(2), peersAlive: true}

	coordinator := &fakeCoordinator{}

	bootstrap, publisher := newTestOrchestrator(testConfig(), discoverer, nil, coordinator)

	eventsCh, unsubscribe := publisher.Subscribe()

	defer unsubscribe()

	require.NoError(bootstrap.OnWalletAddressCreated(testWallet))

	require.NoError(bootstrap.OnMiningReadiness(testAsset, map[string]string{"quantization": "q4"}))

	require.Eventually(func() bool {
		return bootstrap.GetStateSnapshot().Mode == structures.BOOTSTRAP_MODE_NETWORK
	}, 5*time.Second, 10*time.Millisecond)

	snapshot := bootstrap.GetStateSnapshot()

	require.True(snapshot.IsReady)

	require.Len(snapshot.Peers, 2)

	require.NotNil(snapshot.GenesisBlock)

	require.Zero(snapshot.GenesisBlock.Index)

	require.Equal(strings.Repeat("0", 64), snapshot.GenesisBlock.PrevHash)

	require.NotNil(snapshot.NetworkConfig)

	require.Equal(snapshot.GenesisBlock.Hash, snapshot.NetworkConfig.GenesisHash)

	require.Nil(snapshot.LastError)

	require.Eventually(func() bool {
		return discoverer.broadcastCount() == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(1, coordinator.callCount())

	// A later readiness signal must not re-broadcast.
	require.NoError(bootstrap.OnMiningReadiness(testAsset, nil))

	require.Equal(1, discoverer.broadcastCount())

	kinds := collectEventKindsUntil(t, eventsCh, structures.EVENT_NETWORK_ACTIVATED)

	require.Equal([]string{
		structures.EVENT_MODE_CHANGED,
		structures.EVENT_PEERS_DISCOVERED,
		structures.EVENT_MODE_CHANGED,
		structures.EVENT_MODE_CHANGED,
		structures.EVENT_GENESIS_CREATED,
		structures.EVENT_NETWORK_ACTIVATED,
	}, kinds)

}

// collectEventKindsUntil receives until the wanted kind shows up, so
// assertions never race the publishing goroutine.
func collectEventKindsUntil(t *testing.T, eventsCh <-chan structures.BootstrapEvent, wanted string) []string {

	t.Helper()

	deadline := time.After(5 * time.Second)

	var kinds []string

	for {

		select {

		case event := <-eventsCh:

			kinds = append(kinds, event.Kind)

			if event.Kind == wanted {
				return kinds
			}

		case <-deadline:

			t.Fatalf("event %s never arrived, got %v", wanted, kinds)

			return kinds

		}

	}

}

func TestStartPeerDiscoveryPrecondition(t *testing.T) {

	require := require.New(t)

	bootstrap, _ := newTestOrchestrator(testConfig(), &fakeDiscoverer{}, nil, &fakeCoordinator{})

	err := bootstrap.StartPeerDiscovery(context.Background())

	require.Error(err)

	require.Equal(structures.ERR_PRECONDITION, structures.KindOf(err))

	require.Equal(structures.BOOTSTRAP_MODE_PIONEER, bootstrap.GetStateSnapshot().Mode)

}

func TestDiscoveryPrefersDirectory(t *testing.T) {

	require := require.New(t)

	discoverer := &fakeDiscoverer{}

	directoryClient := &fakeDirectory{endpoints: true, peers: readyPeers(2)}

	bootstrap, _ := newTestOrchestrator(testConfig(), discoverer, directoryClient, &fakeCoordinator{})

	makeReady(bootstrap)

	require.NoError(bootstrap.StartPeerDiscovery(context.Background()))

	snapshot := bootstrap.GetStateSnapshot()

	require.Equal(structures.DISCOVERY_STRATEGY_DIRECTORY, snapshot.DiscoveryStrategy)

	require.Zero(discoverer.scanCount())

}

func TestDiscoveryFallsBackToScan(t *testing.T) {

	require := require.New(t)

	discoverer := &fakeDiscoverer{peers: readyPeers(2)}

	directoryClient := &fakeDirectory{endpoints: true, err: errors.New("directory unreachable")}

	bootstrap, _ := newTestOrchestrator(testConfig(), discoverer, directoryClient, &fakeCoordinator{})

	makeReady(bootstrap)

	require.NoError(bootstrap.StartPeerDiscovery(context.Background()))

	snapshot := bootstrap.GetStateSnapshot()

	require.Equal(structures.DISCOVERY_STRATEGY_SCAN, snapshot.DiscoveryStrategy)

	require.Equal(1, discoverer.scanCount())

}

func TestDiscoveryCapsAtMaxPeers(t *testing.T) {

	require := require.New(t)

	config := testConfig()

	config.MaxPeers = 3

	discoverer := &fakeDiscoverer{peers: readyPeers(4)}

	bootstrap, _ := newTestOrchestrator(config, discoverer, nil, &fakeCoordinator{})

	makeReady(bootstrap)

	require.NoError(bootstrap.StartPeerDiscovery(context.Background()))

	require.Len(bootstrap.GetStateSnapshot().Peers, 3)

}

// Insufficient peers is retryable: the error carries a calm user message and a
// backoff timer re-runs discovery.
func TestDiscoveryBelowQuorumRetries(t *testing.T) {

	require := require.New(t)

	discoverer := &fakeDiscoverer{peers: readyPeers(1)}

	bootstrap, _ := newTestOrchestrator(testConfig(), discoverer, nil, &fakeCoordinator{})

	makeReady(bootstrap)

	err := bootstrap.StartPeerDiscovery(context.Background())

	require.Error(err)

	require.Equal(structures.ERR_INSUFFICIENT_PEERS, structures.KindOf(err))

	snapshot := bootstrap.GetStateSnapshot()

	require.Equal(structures.BOOTSTRAP_MODE_DISCOVERY, snapshot.Mode)

	require.NotNil(snapshot.LastError)

	require.Equal(string(structures.ERR_INSUFFICIENT_PEERS), snapshot.LastError.Kind)

	require.NotContains(snapshot.LastError.UserMessage, "quorum")

	require.Eventually(func() bool {
		return discoverer.scanCount() >= 2
	}, 5*time.Second, 10*time.Millisecond)

}

func TestRetriesExhaustAfterMaxAttempts(t *testing.T) {

	require := require.New(t)

	config := testConfig()

	config.MaxRetryAttempts = 1

	discoverer := &fakeDiscoverer{peers: readyPeers(1)}

	bootstrap, _ := newTestOrchestrator(config, discoverer, nil, &fakeCoordinator{})

	makeReady(bootstrap)

	require.Error(bootstrap.StartPeerDiscovery(context.Background()))

	require.Eventually(func() bool {

		lastError := bootstrap.GetStateSnapshot().LastError

		return lastError != nil && lastError.UserMessage == structures.USER_MESSAGE_RETRIES_EXHAUSTED

	}, 5*time.Second, 10*time.Millisecond)

	exhaustedScans := discoverer.scanCount()

	require.Never(func() bool {
		return discoverer.scanCount() > exhaustedScans
	}, 300*time.Millisecond, 25*time.Millisecond)

}

// A structural genesis defect must not loop: no retry, mode stays put, the
// failure is surfaced.
func TestGenesisFailureIsNotRetried(t *testing.T) {

	require := require.New(t)

	discoverer := &fakeDiscoverer{peers: readyPeers(2)}

	coordinator := &fakeCoordinator{err: structures.NewBootstrapError(structures.ERR_GENESIS_FAILURE, "negotiation produced an invalid parameter set")}

	bootstrap, _ := newTestOrchestrator(testConfig(), discoverer, nil, coordinator)

	makeReady(bootstrap)

	require.NoError(bootstrap.StartPeerDiscovery(context.Background()))

	require.Eventually(func() bool {

		lastError := bootstrap.GetStateSnapshot().LastError

		return lastError != nil && lastError.Kind == string(structures.ERR_GENESIS_FAILURE)

	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(structures.BOOTSTRAP_MODE_GENESIS, bootstrap.GetStateSnapshot().Mode)

	require.Never(func() bool {
		return coordinator.callCount() > 1
	}, 300*time.Millisecond, 25*time.Millisecond)

}

func TestOnGenesisCreatedRejectsIncompleteResults(t *testing.T) {

	require := require.New(t)

	bootstrap, _ := newTestOrchestrator(testConfig(), &fakeDiscoverer{}, nil, &fakeCoordinator{})

	for _, result := range []*structures.GenesisResult{
		nil,
		{},
		{Block: &structures.GenesisBlock{}},
		{NetworkConfig: &structures.NetworkConfig{}},
	} {

		err := bootstrap.OnGenesisCreated(result)

		require.Error(err)

		require.Equal(structures.ERR_GENESIS_FAILURE, structures.KindOf(err))

	}

	require.NotEqual(structures.BOOTSTRAP_MODE_NETWORK, bootstrap.GetStateSnapshot().Mode)

}

func TestOnGenesisCreatedPersistFailure(t *testing.T) {

	require := require.New(t)

	coordinator := &fakeCoordinator{persistErr: errors.New("disk full")}

	bootstrap, _ := newTestOrchestrator(testConfig(), &fakeDiscoverer{}, nil, coordinator)

	err := bootstrap.OnGenesisCreated(buildGenesisResult(readyPeers(2), testWallet))

	require.Error(err)

	require.NotEqual(structures.BOOTSTRAP_MODE_NETWORK, bootstrap.GetStateSnapshot().Mode)

}

func TestFeatureGates(t *testing.T) {

	require := require.New(t)

	bootstrap, _ := newTestOrchestrator(testConfig(), &fakeDiscoverer{}, nil, &fakeCoordinator{})

	// Every pre-network mode keeps the full restriction set in place.
	formationModes := []string{structures.BOOTSTRAP_MODE_PIONEER, structures.BOOTSTRAP_MODE_DISCOVERY, structures.BOOTSTRAP_MODE_GENESIS}

	for _, mode := range formationModes {

		bootstrap.applyUpdate(func(state *structures.BootstrapState) {
			state.Mode = mode
		})

		require.ElementsMatch(RESTRICTED_FEATURES, bootstrap.GetRestrictedFeatures(), mode)

		for _, feature := range RESTRICTED_FEATURES {
			require.False(bootstrap.IsFeatureAvailable(feature), "%s in %s", feature, mode)
		}

		require.True(bootstrap.IsFeatureAvailable("wallet_creation"), mode)

	}

	require.NoError(bootstrap.OnGenesisCreated(buildGenesisResult(readyPeers(2), testWallet)))

	require.Empty(bootstrap.GetRestrictedFeatures())

	for _, feature := range RESTRICTED_FEATURES {
		require.True(bootstrap.IsFeatureAvailable(feature), feature)
	}

}

// Reset preserves what the user supplied and clears what formation produced,
// and a following readiness signal may broadcast again.
func TestResetPreservesUserData(t *testing.T) {

	require := require.New(t)

	discoverer := &fakeDiscoverer{peers: readyPeers(2), peersAlive: true}

	bootstrap, _ := newTestOrchestrator(testConfig(), discoverer, nil, &fakeCoordinator{})

	require.NoError(bootstrap.OnWalletAddressCreated(testWallet))

	require.NoError(bootstrap.OnMiningReadiness(testAsset, map[string]string{"quantization": "q4"}))

	bootstrap.SetExtension("theme", "dark")

	require.Eventually(func() bool {
		return bootstrap.GetStateSnapshot().Mode == structures.BOOTSTRAP_MODE_NETWORK
	}, 5*time.Second, 10*time.Millisecond)

	snapshot := bootstrap.Reset()

	require.Equal(structures.BOOTSTRAP_MODE_PIONEER, snapshot.Mode)

	require.Equal(testWallet, snapshot.WalletAddress)

	require.Equal(testAsset, snapshot.SelectedAsset)

	require.Equal("q4", snapshot.AssetMetadata["quantization"])

	require.Equal("dark", snapshot.Extensions["theme"])

	require.Empty(snapshot.Peers)

	require.Nil(snapshot.GenesisBlock)

	require.Nil(snapshot.NetworkConfig)

	require.Nil(snapshot.LastError)

	require.Empty(snapshot.DiscoveryStrategy)

	broadcastsBeforeRestart := discoverer.broadcastCount()

	require.NoError(bootstrap.OnMiningReadiness(testAsset, nil))

	require.Eventually(func() bool {
		return discoverer.broadcastCount() == broadcastsBeforeRestart+1
	}, 5*time.Second, 10*time.Millisecond)

}

func TestGetStateSnapshotIsolation(t *testing.T) {

	require := require.New(t)

	bootstrap, _ := newTestOrchestrator(testConfig(), &fakeDiscoverer{}, nil, &fakeCoordinator{})

	bootstrap.SetExtension("theme", "dark")

	snapshot := bootstrap.GetStateSnapshot()

	snapshot.Extensions["theme"] = "light"

	snapshot.Peers = append(snapshot.Peers, readyPeers(1)...)

	fresh := bootstrap.GetStateSnapshot()

	require.Equal("dark", fresh.Extensions["theme"])

	require.Empty(fresh.Peers)

}

func TestOnPeerDisconnectedAboveQuorum(t *testing.T) {

	require := require.New(t)

	bootstrap, _ := newTestOrchestrator(testConfig(), &fakeDiscoverer{}, nil, &fakeCoordinator{})

	makeReady(bootstrap)

	peers := readyPeers(3)

	bootstrap.applyUpdate(func(state *structures.BootstrapState) {
		state.Mode = structures.BOOTSTRAP_MODE_GENESIS
		state.Peers = peers
	})

	bootstrap.OnPeerDisconnected(peers[0].Id)

	snapshot := bootstrap.GetStateSnapshot()

	require.Len(snapshot.Peers, 2)

	require.Nil(snapshot.LastError)

	// Unknown ids are ignored.
	bootstrap.OnPeerDisconnected("never-seen")

	require.Len(bootstrap.GetStateSnapshot().Peers, 2)

}

func TestOnPeerDisconnectedQuorumLoss(t *testing.T) {

	require := require.New(t)

	discoverer := &fakeDiscoverer{peers: readyPeers(2)}

	bootstrap, _ := newTestOrchestrator(testConfig(), discoverer, nil, &fakeCoordinator{})

	makeReady(bootstrap)

	peers := readyPeers(2)

	bootstrap.applyUpdate(func(state *structures.BootstrapState) {
		state.Mode = structures.BOOTSTRAP_MODE_GENESIS
		state.Peers = peers
	})

	bootstrap.OnPeerDisconnected(peers[0].Id)

	snapshot := bootstrap.GetStateSnapshot()

	require.NotNil(snapshot.LastError)

	require.Equal(string(structures.ERR_PEER_DISCONNECTION), snapshot.LastError.Kind)

	// Quorum is gone, so the scheduled retry re-enters discovery.
	require.Eventually(func() bool {
		return discoverer.scanCount() >= 1
	}, 5*time.Second, 10*time.Millisecond)

}

func TestOnPeerDisconnectedIgnoredOutsideFormation(t *testing.T) {

	require := require.New(t)

	bootstrap, _ := newTestOrchestrator(testConfig(), &fakeDiscoverer{}, nil, &fakeCoordinator{})

	makeReady(bootstrap)

	peers := readyPeers(2)

	bootstrap.applyUpdate(func(state *structures.BootstrapState) {
		state.Mode = structures.BOOTSTRAP_MODE_NETWORK
		state.Peers = peers
	})

	bootstrap.OnPeerDisconnected(peers[0].Id)

	require.Len(bootstrap.GetStateSnapshot().Peers, 2)

}
