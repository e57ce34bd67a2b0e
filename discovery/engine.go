package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/playergold/playergold-bootstrap-core/structures"
	"github.com/playergold/playergold-bootstrap-core/utils"

	"github.com/gorilla/websocket"
)

const (
	SCAN_CONCURRENCY   = 5
	SCAN_PROBE_TIMEOUT = 3 * time.Second

	// Hosts probed per private subnet prefix. Keeps a full testnet scan
	// bounded to a few dozen sockets.
	SCAN_HOSTS_PER_SUBNET = 8
	SCAN_TARGETS_LIMIT    = 50
)

var commonPrivateSubnets = []string{"192.168.0.", "192.168.1.", "10.0.0.", "172.16.0."}

// Engine finds candidate peers by probing an address space appropriate to the
// configured network mode and keeps the local availability advert that
// symmetric scanners read back.
type Engine struct {
	config *structures.NodeLevelConfig

	advertMu      sync.RWMutex
	walletAddress string
	isReady       bool

	knownMu    sync.RWMutex
	knownPeers map[string]structures.PeerInfo
}

func NewEngine(config *structures.NodeLevelConfig) *Engine {
	return &Engine{
		config:     config,
		knownPeers: make(map[string]structures.PeerInfo),
	}
}

// DetectNetworkMode returns the configured mode. The mode is an operator
// decision, never inferred from observed traffic.
func (engine *Engine) DetectNetworkMode() string {

	if engine.config.NetworkMode == structures.NETWORK_MODE_MAINNET {
		return structures.NETWORK_MODE_MAINNET
	}

	return structures.NETWORK_MODE_TESTNET
}

// ValidateIpAddress applies the mode asymmetry: testnet nodes may talk to
// loopback and RFC1918 space, mainnet nodes must never treat a LAN address as
// publicly routable.
func (engine *Engine) ValidateIpAddress(address string) bool {

	ip := net.ParseIP(address)

	if ip == nil || ip.IsUnspecified() || ip.IsMulticast() {
		return false
	}

	isLocal := ip.IsLoopback() || ip.IsPrivate()

	if engine.DetectNetworkMode() == structures.NETWORK_MODE_TESTNET {
		return isLocal || ip.IsGlobalUnicast()
	}

	return !isLocal && !ip.IsLinkLocalUnicast() && ip.IsGlobalUnicast()
}

// GenerateScanTargets enumerates the bounded address set a scan will probe.
// Testnet: loopback, the node's own subnets and the common private ranges.
// Mainnet: the configured seed nodes only - blind scanning of public space
// is pointless.
func (engine *Engine) GenerateScanTargets() []string {

	if engine.DetectNetworkMode() == structures.NETWORK_MODE_MAINNET {

		targets := make([]string, 0, len(engine.config.SeedNodes))

		for _, seed := range engine.config.SeedNodes {

			if engine.ValidateIpAddress(seed) {
				targets = append(targets, seed)
			}

		}

		return targets
	}

	seen := make(map[string]struct{})

	targets := []string{"127.0.0.1"}

	seen["127.0.0.1"] = struct{}{}

	appendTarget := func(address string) {

		if len(targets) >= SCAN_TARGETS_LIMIT {
			return
		}

		if _, ok := seen[address]; ok {
			return
		}

		ip := net.ParseIP(address)

		if ip == nil || !(ip.IsLoopback() || ip.IsPrivate()) {
			return
		}

		seen[address] = struct{}{}

		targets = append(targets, address)

	}

	// Prefer the subnets this host actually sits on.
	for _, subnetPrefix := range localSubnetPrefixes() {

		for host := 1; host <= SCAN_HOSTS_PER_SUBNET; host++ {
			appendTarget(subnetPrefix + strconv.Itoa(host))
		}

	}

	for _, subnetPrefix := range commonPrivateSubnets {

		for host := 1; host <= SCAN_HOSTS_PER_SUBNET; host++ {
			appendTarget(subnetPrefix + strconv.Itoa(host))
		}

	}

	return targets
}

// ScanForPeers probes every scan target on the discovery port with a bounded
// worker pool. Individual probe failures are absorbed - a dead address is the
// normal case during formation, not an error.
func (engine *Engine) ScanForPeers(ctx context.Context, mode string) []structures.PeerInfo {

	targets := engine.GenerateScanTargets()

	if len(targets) == 0 {
		return nil
	}

	utils.LogWithTime(fmt.Sprintf("Scanning %d %s targets on port %d", len(targets), mode, engine.config.WebSocketPort), utils.CYAN_COLOR)

	var wg sync.WaitGroup

	semaphore := make(chan struct{}, SCAN_CONCURRENCY)

	resultsMu := sync.Mutex{}

	discovered := make(map[string]structures.PeerInfo)

	for _, target := range targets {

		wg.Add(1)

		go func(address string) {

			defer wg.Done()

			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			peer, err := engine.probeTarget(ctx, address, engine.config.WebSocketPort)

			if err != nil {
				return
			}

			resultsMu.Lock()

			if len(discovered) < engine.config.MaxPeers {
				discovered[peer.Id] = peer
			}

			resultsMu.Unlock()

		}(target)

	}

	wg.Wait()

	peers := make([]structures.PeerInfo, 0, len(discovered))

	for _, peer := range discovered {

		engine.RememberPeer(peer)

		peers = append(peers, peer)

	}

	return peers
}

// BroadcastAvailability marks the local advert ready so concurrent scanners
// discover this node, and pushes a best-effort availability notice to every
// peer we already know about.
func (engine *Engine) BroadcastAvailability(walletAddress string) {

	engine.advertMu.Lock()

	engine.walletAddress = walletAddress
	engine.isReady = true

	engine.advertMu.Unlock()

	utils.LogWithTime(fmt.Sprintf("Broadcasting availability for wallet %s", walletAddress), utils.GREEN_COLOR)

	notice := structures.WsAvailabilityNotice{
		Route:  structures.WS_ROUTE_AVAILABILITY,
		Advert: engine.LocalAdvert(),
	}

	rawNotice, err := json.Marshal(notice)

	if err != nil {
		return
	}

	for _, peer := range engine.KnownPeers() {

		go func(target structures.PeerInfo) {

			conn := utils.DialPeer(target)

			if conn == nil {
				return
			}

			defer conn.Close()

			_ = conn.SetWriteDeadline(time.Now().Add(SCAN_PROBE_TIMEOUT))
			_ = conn.WriteMessage(websocket.TextMessage, rawNotice)

		}(peer)

	}

}

// ValidatePeerConnection re-checks liveness and compatibility of a previously
// discovered peer. Any transport failure, identity change, mode mismatch or
// readiness loss counts as invalid.
func (engine *Engine) ValidatePeerConnection(ctx context.Context, peer structures.PeerInfo) bool {

	if peer.NetworkMode != engine.DetectNetworkMode() {
		return false
	}

	fresh, err := engine.probeTarget(ctx, peer.Address, peer.Port)

	if err != nil {
		return false
	}

	return fresh.Id == peer.Id && fresh.IsReady
}

// LocalAdvert builds the record symmetric peers receive during a handshake.
func (engine *Engine) LocalAdvert() structures.PeerInfo {

	engine.advertMu.RLock()

	walletAddress := engine.walletAddress
	isReady := engine.isReady

	engine.advertMu.RUnlock()

	return structures.PeerInfo{
		Id:            engine.config.PublicKey,
		Address:       engine.advertisedAddress(),
		Port:          engine.config.WebSocketPort,
		WalletAddress: walletAddress,
		NetworkMode:   engine.DetectNetworkMode(),
		IsReady:       isReady,
		Capabilities: []string{
			structures.CAPABILITY_DISCOVERY,
			structures.CAPABILITY_GENESIS_CREATION,
			structures.CAPABILITY_MINING,
		},
		LastSeen: utils.GetUTCTimestampInMilliSeconds(),
	}
}

func (engine *Engine) RememberPeer(peer structures.PeerInfo) {

	engine.knownMu.Lock()

	engine.knownPeers[peer.Id] = peer

	engine.knownMu.Unlock()

}

// AdmitRemoteAdvert is the passive-side counterpart of probing: a peer that
// contacted us presents its advert, we validate it against the local mode and
// remember it on success.
func (engine *Engine) AdmitRemoteAdvert(advert structures.PeerInfo) (structures.PeerInfo, error) {

	peer, err := engine.validateRemoteAdvert(advert)

	if err != nil {
		return structures.PeerInfo{}, err
	}

	engine.RememberPeer(peer)

	return peer, nil
}

func (engine *Engine) ForgetPeer(peerId string) {

	engine.knownMu.Lock()

	delete(engine.knownPeers, peerId)

	engine.knownMu.Unlock()

}

func (engine *Engine) KnownPeers() []structures.PeerInfo {

	engine.knownMu.RLock()

	defer engine.knownMu.RUnlock()

	peers := make([]structures.PeerInfo, 0, len(engine.knownPeers))

	for _, peer := range engine.knownPeers {
		peers = append(peers, peer)
	}

	return peers
}

// ProbeEndpoint runs a single handshake against an arbitrary endpoint and
// returns the validated peer record. Used by directory-assisted discovery,
// which brings its own candidate addresses.
func (engine *Engine) ProbeEndpoint(ctx context.Context, address string, port int) (structures.PeerInfo, error) {

	peer, err := engine.probeTarget(ctx, address, port)

	if err != nil {
		return structures.PeerInfo{}, err
	}

	engine.RememberPeer(peer)

	return peer, nil
}

// probeTarget performs one handshake round-trip: dial, send our advert, read
// the remote advert, validate it against the local mode.
func (engine *Engine) probeTarget(ctx context.Context, address string, port int) (structures.PeerInfo, error) {

	probeCtx, cancel := context.WithTimeout(ctx, SCAN_PROBE_TIMEOUT)

	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: SCAN_PROBE_TIMEOUT}

	endpoint := "ws://" + address + ":" + strconv.Itoa(port)

	conn, _, err := dialer.DialContext(probeCtx, endpoint, nil)

	if err != nil {
		return structures.PeerInfo{}, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	defer conn.Close()

	request := structures.WsHandshakeRequest{
		Route:  structures.WS_ROUTE_HANDSHAKE,
		Advert: engine.LocalAdvert(),
	}

	rawRequest, err := json.Marshal(request)

	if err != nil {
		return structures.PeerInfo{}, err
	}

	deadline := time.Now().Add(SCAN_PROBE_TIMEOUT)

	_ = conn.SetWriteDeadline(deadline)

	if err := conn.WriteMessage(websocket.TextMessage, rawRequest); err != nil {
		return structures.PeerInfo{}, fmt.Errorf("handshake write to %s: %w", endpoint, err)
	}

	_ = conn.SetReadDeadline(deadline)

	_, rawResponse, err := conn.ReadMessage()

	if err != nil {
		return structures.PeerInfo{}, fmt.Errorf("handshake read from %s: %w", endpoint, err)
	}

	var response structures.WsHandshakeResponse

	if err := json.Unmarshal(rawResponse, &response); err != nil {
		return structures.PeerInfo{}, fmt.Errorf("handshake decode from %s: %w", endpoint, err)
	}

	return engine.validateRemoteAdvert(response.Advert)
}

func (engine *Engine) validateRemoteAdvert(advert structures.PeerInfo) (structures.PeerInfo, error) {

	if err := advert.ValidatePeerInfo(); err != nil {
		return structures.PeerInfo{}, structures.WrapBootstrapError(structures.ERR_INVALID_PEER, "malformed peer advert", err)
	}

	if advert.Id == engine.config.PublicKey {
		return structures.PeerInfo{}, structures.NewBootstrapError(structures.ERR_INVALID_PEER, "own advert")
	}

	if advert.NetworkMode != engine.DetectNetworkMode() {
		return structures.PeerInfo{}, structures.NewBootstrapError(structures.ERR_INVALID_PEER, "network mode mismatch: "+advert.NetworkMode)
	}

	if !advert.IsReady {
		return structures.PeerInfo{}, structures.NewBootstrapError(structures.ERR_INVALID_PEER, "peer is not ready")
	}

	if !engine.ValidateIpAddress(advert.Address) {
		return structures.PeerInfo{}, structures.NewBootstrapError(structures.ERR_INVALID_PEER, "address not allowed in "+engine.DetectNetworkMode()+" mode: "+advert.Address)
	}

	return advert.CopyPeerInfo(), nil
}

// advertisedAddress picks the address other nodes should dial us on: the
// configured interface when it is a concrete one, otherwise the first
// matching interface address for the current mode.
func (engine *Engine) advertisedAddress() string {

	configured := engine.config.WebSocketInterface

	if ip := net.ParseIP(configured); ip != nil && !ip.IsUnspecified() {
		return configured
	}

	wantLocal := engine.DetectNetworkMode() == structures.NETWORK_MODE_TESTNET

	addresses, err := net.InterfaceAddrs()

	if err == nil {

		for _, interfaceAddress := range addresses {

			ipNet, ok := interfaceAddress.(*net.IPNet)

			if !ok || ipNet.IP.To4() == nil {
				continue
			}

			ip := ipNet.IP

			if wantLocal && ip.IsPrivate() {
				return ip.String()
			}

			if !wantLocal && ip.IsGlobalUnicast() && !ip.IsPrivate() {
				return ip.String()
			}

		}

	}

	return "127.0.0.1"
}

// localSubnetPrefixes derives /24 prefixes from this host's own private
// interface addresses so a scan reaches real neighbours first.
func localSubnetPrefixes() []string {

	var prefixes []string

	addresses, err := net.InterfaceAddrs()

	if err != nil {
		return prefixes
	}

	for _, interfaceAddress := range addresses {

		ipNet, ok := interfaceAddress.(*net.IPNet)

		if !ok {
			continue
		}

		ip := ipNet.IP.To4()

		if ip == nil || !ip.IsPrivate() {
			continue
		}

		prefixes = append(prefixes, fmt.Sprintf("%d.%d.%d.", ip[0], ip[1], ip[2]))

	}

	return prefixes
}
