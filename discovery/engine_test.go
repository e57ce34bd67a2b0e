package discovery

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/playergold/playergold-bootstrap-core/structures"
)

func testnetEngine() *Engine {
	return NewEngine(&structures.NodeLevelConfig{
		PublicKey:     "self-node",
		NetworkMode:   structures.NETWORK_MODE_TESTNET,
		WebSocketPort: 9091,
		MaxPeers:      10,
	})
}

func mainnetEngine(seedNodes ...string) *Engine {
	return NewEngine(&structures.NodeLevelConfig{
		PublicKey:     "self-node",
		NetworkMode:   structures.NETWORK_MODE_MAINNET,
		WebSocketPort: 9091,
		MaxPeers:      10,
		SeedNodes:     seedNodes,
	})
}

func TestDetectNetworkMode(t *testing.T) {

	require := require.New(t)

	require.Equal(structures.NETWORK_MODE_TESTNET, testnetEngine().DetectNetworkMode())

	require.Equal(structures.NETWORK_MODE_MAINNET, mainnetEngine().DetectNetworkMode())

	// Anything that is not explicitly mainnet is treated as testnet.
	unset := NewEngine(&structures.NodeLevelConfig{})

	require.Equal(structures.NETWORK_MODE_TESTNET, unset.DetectNetworkMode())

	weird := NewEngine(&structures.NodeLevelConfig{NetworkMode: "devnet"})

	require.Equal(structures.NETWORK_MODE_TESTNET, weird.DetectNetworkMode())

}

func TestValidateIpAddress(t *testing.T) {

	tests := []struct {
		address string
		testnet bool
		mainnet bool
	}{
		{"127.0.0.1", true, false},
		{"10.1.2.3", true, false},
		{"172.16.5.5", true, false},
		{"192.168.1.10", true, false},
		{"8.8.8.8", true, true},
		{"1.1.1.1", true, true},
		{"169.254.1.1", false, false},
		{"224.0.0.1", false, false},
		{"0.0.0.0", false, false},
		{"not-an-ip", false, false},
		{"", false, false},
	}

	testnet := testnetEngine()

	mainnet := mainnetEngine()

	for _, tt := range tests {

		t.Run(tt.address, func(t *testing.T) {

			require := require.New(t)

			require.Equal(tt.testnet, testnet.ValidateIpAddress(tt.address), "testnet")

			require.Equal(tt.mainnet, mainnet.ValidateIpAddress(tt.address), "mainnet")

		})

	}

}

func TestGenerateScanTargetsTestnet(t *testing.T) {

	require := require.New(t)

	targets := testnetEngine().GenerateScanTargets()

	require.NotEmpty(targets)

	require.Equal("127.0.0.1", targets[0])

	require.LessOrEqual(len(targets), SCAN_TARGETS_LIMIT)

	seen := make(map[string]struct{})

	for _, target := range targets {

		_, duplicate := seen[target]

		require.False(duplicate, target)

		seen[target] = struct{}{}

		ip := net.ParseIP(target)

		require.NotNil(ip, target)

		require.True(ip.IsLoopback() || ip.IsPrivate(), target)

	}

	// Loopback plus the common private subnets are always present, modulo
	// overlap with this host's own subnets.
	require.GreaterOrEqual(len(targets), 33)

}

func TestGenerateScanTargetsMainnetUsesSeeds(t *testing.T) {

	require := require.New(t)

	engine := mainnetEngine("8.8.8.8", "10.0.0.5", "not-an-ip", "9.9.9.9")

	require.Equal([]string{"8.8.8.8", "9.9.9.9"}, engine.GenerateScanTargets())

	require.Empty(mainnetEngine().GenerateScanTargets())

}

func validAdvert() structures.PeerInfo {
	return structures.PeerInfo{
		Id:            "node-b",
		Address:       "192.168.1.20",
		Port:          8333,
		WalletAddress: "PGaa000000000000000000000000000000000000",
		NetworkMode:   structures.NETWORK_MODE_TESTNET,
		IsReady:       true,
		Capabilities:  []string{structures.CAPABILITY_DISCOVERY},
	}
}

func TestAdmitRemoteAdvert(t *testing.T) {

	req := require.New(t)

	engine := testnetEngine()

	admitted, err := engine.AdmitRemoteAdvert(validAdvert())

	req.NoError(err)

	req.Equal("node-b", admitted.Id)

	req.Len(engine.KnownPeers(), 1)

	tests := []struct {
		name   string
		mutate func(advert *structures.PeerInfo)
	}{
		{"own advert", func(advert *structures.PeerInfo) { advert.Id = "self-node" }},
		{"mode mismatch", func(advert *structures.PeerInfo) { advert.NetworkMode = structures.NETWORK_MODE_MAINNET }},
		{"not ready", func(advert *structures.PeerInfo) { advert.IsReady = false }},
		{"unroutable address", func(advert *structures.PeerInfo) { advert.Address = "0.0.0.0" }},
		{"missing wallet", func(advert *structures.PeerInfo) { advert.WalletAddress = "" }},
		{"missing id", func(advert *structures.PeerInfo) { advert.Id = "" }},
	}

	for _, tt := range tests {

		t.Run(tt.name, func(t *testing.T) {

			require := require.New(t)

			advert := validAdvert()

			tt.mutate(&advert)

			_, err := engine.AdmitRemoteAdvert(advert)

			require.Error(err, tt.name)

			require.Equal(structures.ERR_INVALID_PEER, structures.KindOf(err))

		})

	}

	// None of the rejects were remembered.
	req.Len(engine.KnownPeers(), 1)

}

func TestRememberAndForgetPeers(t *testing.T) {

	require := require.New(t)

	engine := testnetEngine()

	first := validAdvert()

	second := validAdvert()

	second.Id = "node-c"

	second.Address = "192.168.1.21"

	engine.RememberPeer(first)

	engine.RememberPeer(second)

	require.Len(engine.KnownPeers(), 2)

	// Remembering an id again replaces, never duplicates.
	first.Address = "192.168.1.99"

	engine.RememberPeer(first)

	peers := engine.KnownPeers()

	require.Len(peers, 2)

	addressesById := make(map[string]string)

	for _, peer := range peers {
		addressesById[peer.Id] = peer.Address
	}

	require.Equal("192.168.1.99", addressesById["node-b"])

	engine.ForgetPeer("node-b")

	require.Len(engine.KnownPeers(), 1)

	engine.ForgetPeer("never-seen")

	require.Len(engine.KnownPeers(), 1)

}

func TestLocalAdvertReflectsBroadcast(t *testing.T) {

	require := require.New(t)

	engine := testnetEngine()

	advert := engine.LocalAdvert()

	require.Equal("self-node", advert.Id)

	require.Equal(9091, advert.Port)

	require.Equal(structures.NETWORK_MODE_TESTNET, advert.NetworkMode)

	require.False(advert.IsReady)

	require.Empty(advert.WalletAddress)

	require.NotEmpty(advert.Address)

	require.Contains(advert.Capabilities, structures.CAPABILITY_GENESIS_CREATION)

	require.Positive(advert.LastSeen)

	// Broadcasting with no known peers is a pure advert update.
	engine.BroadcastAvailability("PGaa000000000000000000000000000000000000")

	advert = engine.LocalAdvert()

	require.True(advert.IsReady)

	require.Equal("PGaa000000000000000000000000000000000000", advert.WalletAddress)

}

func TestScanForPeersHonoursCancellation(t *testing.T) {

	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())

	cancel()

	peers := testnetEngine().ScanForPeers(ctx, structures.NETWORK_MODE_TESTNET)

	require.Empty(peers)

}
