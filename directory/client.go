package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/playergold/playergold-bootstrap-core/cryptography"
	"github.com/playergold/playergold-bootstrap-core/discovery"
	"github.com/playergold/playergold-bootstrap-core/structures"
	"github.com/playergold/playergold-bootstrap-core/utils"
)

const DIRECTORY_REQUEST_TIMEOUT = 5 * time.Second

const CANDIDATE_CONNECT_TIMEOUT = 8 * time.Second

const CANDIDATE_CONNECT_WORKERS = 5

const NETWORK_MAP_LIMIT = 50

var httpClient = &http.Client{Timeout: DIRECTORY_REQUEST_TIMEOUT}

// Client talks to the remote node directory. The directory is an optimization
// layer on top of subnet scanning: every call here may fail without blocking
// bootstrap, callers fall back to the scan path.
type Client struct {
	config *structures.NodeLevelConfig

	engine *discovery.Engine
}

func NewClient(config *structures.NodeLevelConfig, engine *discovery.Engine) *Client {
	return &Client{config: config, engine: engine}
}

func (client *Client) HasEndpoints() bool {
	return len(client.config.DirectoryEndpoints) > 0
}

// Register announces this node to the directory. Called once at startup,
// failures are absorbed as diagnostics.
func (client *Client) Register() error {

	advert := client.engine.LocalAdvert()

	message := fmt.Sprintf("%s:%s:%d:%.6f:%.6f", client.config.PublicKey, advert.Address, advert.Port, client.config.Latitude, client.config.Longitude)

	payload, err := json.Marshal(structures.DirectoryRegisterRequest{
		NodeId:    client.config.PublicKey,
		PublicKey: client.config.PublicKey,
		Address:   advert.Address,
		Port:      advert.Port,
		Latitude:  client.config.Latitude,
		Longitude: client.config.Longitude,
		Signature: cryptography.GenerateSignature(client.config.PrivateKey, message),
	})

	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), DIRECTORY_REQUEST_TIMEOUT)

	defer cancel()

	body, err := client.postToDirectory(ctx, "/register", payload)

	if err != nil {
		return err
	}

	return parseDirectoryAck(body)
}

// Keepalive reports liveness and coarse runtime metrics. Height is 0 before
// the genesis block exists and 1 after.
func (client *Client) Keepalive(blockchainHeight, connectedPeers int) error {

	var memStats runtime.MemStats

	runtime.ReadMemStats(&memStats)

	message := fmt.Sprintf("%s:%d:%d", client.config.PublicKey, blockchainHeight, connectedPeers)

	payload, err := json.Marshal(structures.DirectoryKeepaliveRequest{
		NodeId:           client.config.PublicKey,
		BlockchainHeight: blockchainHeight,
		ConnectedPeers:   connectedPeers,
		MemoryUsageMb:    float64(memStats.HeapAlloc) / (1024 * 1024),
		GoroutineCount:   runtime.NumGoroutine(),
		Signature:        cryptography.GenerateSignature(client.config.PrivateKey, message),
	})

	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), DIRECTORY_REQUEST_TIMEOUT)

	defer cancel()

	body, err := client.postToDirectory(ctx, "/keepalive", payload)

	if err != nil {
		return err
	}

	return parseDirectoryAck(body)
}

// parseDirectoryAck accepts any answer that does not carry an explicit error.
// Older directories answer with an empty body, which is fine.
func parseDirectoryAck(body []byte) error {

	if len(body) == 0 {
		return nil
	}

	var ack structures.DirectoryAckResponse

	if err := json.Unmarshal(body, &ack); err != nil {
		return nil
	}

	if ack.Error != "" {
		return fmt.Errorf("directory rejected the request: %s", ack.Error)
	}

	return nil
}

func (client *Client) FetchStats(ctx context.Context) (structures.DirectoryStatsResponse, error) {

	var stats structures.DirectoryStatsResponse

	body, err := client.getFromDirectory(ctx, "/stats")

	if err != nil {
		return stats, err
	}

	if err := json.Unmarshal(body, &stats); err != nil {
		return stats, err
	}

	return stats, nil
}

// FetchNetworkMap asks the directory for candidate nodes near our configured
// location, walking backup endpoints before giving up.
func (client *Client) FetchNetworkMap(ctx context.Context) ([]structures.DirectoryNodeRecord, error) {

	message := fmt.Sprintf("%s:%.6f:%.6f", client.config.PublicKey, client.config.Latitude, client.config.Longitude)

	payload, err := json.Marshal(structures.DirectoryNetworkMapRequest{
		NodeId:    client.config.PublicKey,
		Latitude:  client.config.Latitude,
		Longitude: client.config.Longitude,
		Limit:     NETWORK_MAP_LIMIT,
		Signature: cryptography.GenerateSignature(client.config.PrivateKey, message),
	})

	if err != nil {
		return nil, err
	}

	body, err := client.postToDirectory(ctx, "/network-map", payload)

	if err != nil {
		return nil, err
	}

	var response structures.DirectoryNetworkMapResponse

	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}

	return response.Nodes, nil
}

// DiscoverPeers is the directory-assisted discovery entry: fetch the network
// map, rank it, then handshake the best candidates on a bounded worker pool.
// Every attempt is recorded, successes are returned as validated peers.
func (client *Client) DiscoverPeers(ctx context.Context) ([]structures.PeerInfo, error) {

	if !client.HasEndpoints() {
		return nil, structures.NewBootstrapError(structures.ERR_NETWORK_TIMEOUT, "no directory endpoints configured")
	}

	records, err := client.FetchNetworkMap(ctx)

	if err != nil {
		return nil, structures.WrapBootstrapError(structures.ERR_NETWORK_TIMEOUT, "network directory unreachable", err)
	}

	candidates := RankNetworkMap(records, client.config)

	if len(candidates) == 0 {
		return nil, nil
	}

	maxPeers := client.config.MaxPeers

	connectCtx, cancel := context.WithCancel(ctx)

	defer cancel()

	jobs := make(chan structures.DirectoryNodeRecord, len(candidates))

	for _, candidate := range candidates {
		jobs <- candidate
	}

	close(jobs)

	results := make(chan structures.PeerInfo, len(candidates))

	wg := &sync.WaitGroup{}

	for workerIndex := 0; workerIndex < CANDIDATE_CONNECT_WORKERS; workerIndex++ {

		wg.Add(1)

		go func() {

			defer wg.Done()

			for candidate := range jobs {

				select {
				case <-connectCtx.Done():
					return
				default:
				}

				if peer, ok := client.attemptCandidate(connectCtx, candidate); ok {
					results <- peer
				}

			}

		}()

	}

	go func() {
		wg.Wait()
		close(results)
	}()

	connected := make([]structures.PeerInfo, 0, maxPeers)

	for peer := range results {

		if len(connected) < maxPeers {

			connected = append(connected, peer)

			if len(connected) >= maxPeers {
				cancel()
			}

		}

	}

	utils.LogWithTime(fmt.Sprintf("Directory discovery: connected to %d of %d ranked candidates", len(connected), len(candidates)), utils.CYAN_COLOR)

	return connected, nil
}

// attemptCandidate runs one handshake and records the outcome, success or not.
func (client *Client) attemptCandidate(ctx context.Context, candidate structures.DirectoryNodeRecord) (structures.PeerInfo, bool) {

	attemptCtx, cancel := context.WithTimeout(ctx, CANDIDATE_CONNECT_TIMEOUT)

	defer cancel()

	startedAt := time.Now()

	peer, err := client.engine.ProbeEndpoint(attemptCtx, candidate.PublicIp, candidate.Port)

	attempt := structures.ConnectionAttempt{
		TargetId:  candidate.NodeId,
		Address:   candidate.PublicIp,
		Port:      candidate.Port,
		Success:   err == nil,
		LatencyMs: time.Since(startedAt).Milliseconds(),
		Timestamp: utils.GetUTCTimestampInMilliSeconds(),
	}

	if err != nil {
		attempt.Error = err.Error()
	}

	if storeErr := utils.StoreConnectionAttempt(attempt); storeErr != nil {
		utils.LogWithTime(fmt.Sprintf("Directory discovery: failed to record connection attempt: %v", storeErr), utils.YELLOW_COLOR)
	}

	if err != nil {
		return structures.PeerInfo{}, false
	}

	return peer, true
}

func (client *Client) postToDirectory(ctx context.Context, route string, payload []byte) ([]byte, error) {

	var lastErr error

	for _, endpoint := range client.config.DirectoryEndpoints {

		body, err := postJSON(ctx, strings.TrimRight(endpoint, "/")+route, payload)

		if err == nil {
			return body, nil
		}

		lastErr = err

	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no directory endpoints configured")
	}

	return nil, lastErr
}

func (client *Client) getFromDirectory(ctx context.Context, route string) ([]byte, error) {

	var lastErr error

	for _, endpoint := range client.config.DirectoryEndpoints {

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(endpoint, "/")+route, nil)

		if err != nil {
			lastErr = err
			continue
		}

		body, err := doRequest(req)

		if err == nil {
			return body, nil
		}

		lastErr = err

	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no directory endpoints configured")
	}

	return nil, lastErr
}

func postJSON(ctx context.Context, url string, payload []byte) ([]byte, error) {

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))

	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	return doRequest(req)
}

func doRequest(req *http.Request) ([]byte, error) {

	resp, err := httpClient.Do(req)

	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory responded with status %d", resp.StatusCode)
	}

	return body, nil
}
