package genesis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/playergold/playergold-bootstrap-core/block_pack"
	"github.com/playergold/playergold-bootstrap-core/structures"
	"github.com/playergold/playergold-bootstrap-core/utils"
)

// A network cannot form below this many remote participants.
const MIN_GENESIS_PARTICIPANTS = 2

// Dropped peers shrink the set between attempts. After this many failed
// rounds the coordination reports failure instead of looping.
const GENESIS_COORDINATION_ATTEMPTS = 3

const GENESIS_DEFAULT_DIFFICULTY = 1

const CONSENSUS_ALGORITHM = "proof-of-ai-work"

// Upper bound for one proposal round: send to all, collect all acks.
const DISTRIBUTION_ROUND_TIMEOUT = 10 * time.Second

// PeerValidator re-checks liveness of peers that went silent mid-round.
type PeerValidator interface {
	ValidatePeerConnection(ctx context.Context, peer structures.PeerInfo) bool
}

// PhaseListener observes coordination phase transitions.
type PhaseListener func(phase string)

// Coordinator drives network formation: negotiate parameters with the
// discovered peer set, build the deterministic genesis block, distribute it
// and require every active participant to acknowledge the same hash.
type Coordinator struct {
	config *structures.NodeLevelConfig

	validator PeerValidator

	waiter *utils.QuorumWaiter

	onPhase PhaseListener

	distribute func(ctx context.Context, params structures.GenesisParams, block structures.GenesisBlock, activePeers []structures.PeerInfo) (map[string]struct{}, map[string]struct{})
}

func NewCoordinator(config *structures.NodeLevelConfig, validator PeerValidator, onPhase PhaseListener) *Coordinator {

	coordinator := &Coordinator{
		config:    config,
		validator: validator,
		waiter:    utils.NewQuorumWaiter(config.MaxPeers),
		onPhase:   onPhase,
	}

	coordinator.distribute = coordinator.distributeProposal

	return coordinator
}

func (coordinator *Coordinator) emitPhase(phase string) {

	utils.LogWithTime(fmt.Sprintf("Genesis coordination: phase => %s", phase), utils.MAGENTA_COLOR)

	if coordinator.onPhase != nil {
		coordinator.onPhase(phase)
	}
}

// NegotiateGenesisParameters derives the formation parameters from the peer
// set. Participants are wallet addresses in canonical lexicographic order, so
// every node negotiating over the same peer set derives the same list no
// matter in which order peers arrived.
func (coordinator *Coordinator) NegotiateGenesisParameters(peers []structures.PeerInfo, localWalletAddress string) (structures.GenesisParams, error) {

	if len(peers) < MIN_GENESIS_PARTICIPANTS {
		return structures.GenesisParams{}, structures.NewBootstrapError(structures.ERR_INSUFFICIENT_PEERS, fmt.Sprintf("genesis negotiation requires at least %d peers, have %d", MIN_GENESIS_PARTICIPANTS, len(peers)))
	}

	seen := make(map[string]struct{}, len(peers)+1)

	participants := make([]string, 0, len(peers)+1)

	appendParticipant := func(walletAddress string) {

		if walletAddress == "" {
			return
		}

		if _, ok := seen[walletAddress]; ok {
			return
		}

		seen[walletAddress] = struct{}{}

		participants = append(participants, walletAddress)

	}

	appendParticipant(localWalletAddress)

	for _, peer := range peers {
		appendParticipant(peer.WalletAddress)
	}

	sort.Strings(participants)

	rewards := make(map[string]uint64, len(participants))

	for _, participant := range participants {
		rewards[participant] = coordinator.config.GenesisBaseReward
	}

	params := structures.GenesisParams{
		Timestamp:    utils.GetUTCTimestampInMilliSeconds(),
		Difficulty:   GENESIS_DEFAULT_DIFFICULTY,
		Participants: participants,
		Rewards:      rewards,
		NetworkId:    fmt.Sprintf("pg-%s-%s", coordinator.config.NetworkMode, uuid.NewString()),
		ConsensusRules: structures.ConsensusRules{
			Algorithm:        CONSENSUS_ALGORITHM,
			BlockTimeSeconds: coordinator.config.BlockTimeSeconds,
			MinValidators:    coordinator.config.MinValidators,
			MaxValidators:    coordinator.config.MaxValidators,
		},
	}

	if err := params.ValidateGenesisParams(); err != nil {
		return structures.GenesisParams{}, structures.WrapBootstrapError(structures.ERR_GENESIS_FAILURE, "negotiated parameters failed validation", err)
	}

	return params, nil
}

// PersistNetworkConfiguration stores the formation result for this node.
func (coordinator *Coordinator) PersistNetworkConfiguration(networkConfig *structures.NetworkConfig, block *structures.GenesisBlock) error {
	return PersistNetworkConfiguration(networkConfig, block)
}

// CreateGenesisBlock derives the zero-index block from negotiated parameters.
func (coordinator *Coordinator) CreateGenesisBlock(params structures.GenesisParams) (structures.GenesisBlock, error) {

	if err := params.ValidateGenesisParams(); err != nil {
		return structures.GenesisBlock{}, structures.WrapBootstrapError(structures.ERR_GENESIS_FAILURE, "refusing to build genesis block from invalid parameters", err)
	}

	return block_pack.NewGenesisBlock(params), nil
}

// CoordinateGenesis runs the full formation protocol against the given peer
// set. Peers that drop mid-flight are removed and the round restarts with the
// survivors, bounded by GENESIS_COORDINATION_ATTEMPTS and never below the
// configured quorum.
func (coordinator *Coordinator) CoordinateGenesis(ctx context.Context, peers []structures.PeerInfo, localWalletAddress string) (*structures.GenesisResult, error) {

	activePeers := make([]structures.PeerInfo, 0, len(peers))

	for _, peer := range peers {
		activePeers = append(activePeers, peer.CopyPeerInfo())
	}

	minQuorum := coordinator.config.MinQuorum

	var lastErr error

	for attempt := 1; attempt <= GENESIS_COORDINATION_ATTEMPTS; attempt++ {

		if len(activePeers) < minQuorum {

			coordinator.emitPhase(structures.GENESIS_PHASE_FAILED)

			return nil, structures.NewBootstrapError(structures.ERR_INSUFFICIENT_PEERS, fmt.Sprintf("peer set shrank below quorum of %d during genesis coordination", minQuorum))
		}

		coordinator.emitPhase(structures.GENESIS_PHASE_NEGOTIATING)

		params, err := coordinator.NegotiateGenesisParameters(activePeers, localWalletAddress)

		if err != nil {
			coordinator.emitPhase(structures.GENESIS_PHASE_FAILED)
			return nil, err
		}

		coordinator.emitPhase(structures.GENESIS_PHASE_CREATING)

		block, err := coordinator.CreateGenesisBlock(params)

		if err != nil {
			coordinator.emitPhase(structures.GENESIS_PHASE_FAILED)
			return nil, err
		}

		coordinator.emitPhase(structures.GENESIS_PHASE_DISTRIBUTING)

		silentPeers, divergedPeers := coordinator.distribute(ctx, params, block, activePeers)

		if len(silentPeers) == 0 && len(divergedPeers) == 0 {

			networkConfig := structures.NetworkConfig{
				NetworkId:      params.NetworkId,
				GenesisHash:    block.Hash,
				Peers:          activePeers,
				ConsensusRules: params.ConsensusRules.CopyConsensusRules(),
				CreatedAt:      params.Timestamp,
			}

			coordinator.emitPhase(structures.GENESIS_PHASE_COMPLETED)

			utils.LogWithTime(fmt.Sprintf("Genesis coordination: network %s formed with %d peers, hash %s", params.NetworkId, len(activePeers), block.Hash), utils.GREEN_COLOR)

			return &structures.GenesisResult{
				Block:         &block,
				NetworkConfig: &networkConfig,
				Participants:  params.Participants,
			}, nil

		}

		droppedCount := len(silentPeers) + len(divergedPeers)

		activePeers = coordinator.filterDroppedPeers(ctx, activePeers, silentPeers, divergedPeers)

		lastErr = structures.NewBootstrapError(structures.ERR_PEER_DISCONNECTION, fmt.Sprintf("%d peers dropped during genesis distribution attempt %d", droppedCount, attempt))

		utils.LogWithTime(fmt.Sprintf("Genesis coordination: attempt %d lost %d peers, retrying with %d", attempt, droppedCount, len(activePeers)), utils.YELLOW_COLOR)

	}

	coordinator.emitPhase(structures.GENESIS_PHASE_FAILED)

	if len(activePeers) < minQuorum {
		return nil, structures.NewBootstrapError(structures.ERR_INSUFFICIENT_PEERS, fmt.Sprintf("peer set shrank below quorum of %d during genesis coordination", minQuorum))
	}

	if lastErr == nil {
		lastErr = structures.NewBootstrapError(structures.ERR_GENESIS_FAILURE, "genesis coordination exhausted all attempts")
	}

	return nil, structures.WrapBootstrapError(structures.ERR_GENESIS_FAILURE, "peers never converged on a single genesis hash", lastErr)
}

// distributeProposal pushes the proposal to every active peer and collects
// acks. Returns two sets of peer ids: silent (send failure or missing ack,
// eligible for a live re-check) and diverged (acked a different hash or sent
// an ack whose signature does not verify against the peer id).
func (coordinator *Coordinator) distributeProposal(ctx context.Context, params structures.GenesisParams, block structures.GenesisBlock, activePeers []structures.PeerInfo) (map[string]struct{}, map[string]struct{}) {

	silent := make(map[string]struct{})

	diverged := make(map[string]struct{})

	message, err := json.Marshal(structures.WsGenesisProposalRequest{
		Route:  structures.WS_ROUTE_GENESIS_PROPOSAL,
		Params: params,
		Block:  block,
	})

	if err != nil {

		for _, peer := range activePeers {
			silent[peer.Id] = struct{}{}
		}

		return silent, diverged
	}

	targets := make(map[string]structures.PeerInfo, len(activePeers))

	for _, peer := range activePeers {
		targets[peer.Id] = peer
	}

	wsConnMap := utils.GetPeerConnections(activePeers)

	defer utils.ReleasePeerConnections(wsConnMap)

	roundCtx, cancel := context.WithTimeout(ctx, DISTRIBUTION_ROUND_TIMEOUT)

	defer cancel()

	responses, _ := coordinator.waiter.SendAndWait(roundCtx, message, targets, wsConnMap, len(targets))

	coordinator.emitPhase(structures.GENESIS_PHASE_VALIDATING)

	for peerId := range targets {

		raw, answered := responses[peerId]

		if !answered {
			silent[peerId] = struct{}{}
			continue
		}

		var ack structures.WsGenesisAckResponse

		if json.Unmarshal(raw, &ack) != nil {
			silent[peerId] = struct{}{}
			continue
		}

		if !ack.Ok || ack.Hash != block.Hash {

			utils.LogWithTime(fmt.Sprintf("Genesis coordination: peer %s rejected proposal (hash %s vs %s)", peerId, ack.Hash, block.Hash), utils.YELLOW_COLOR)

			diverged[peerId] = struct{}{}

			continue
		}

		if !utils.VerifyGenesisAckSignature(params.NetworkId, block.Hash, peerId, ack.Signature) {

			utils.LogWithTime(fmt.Sprintf("Genesis coordination: peer %s sent an ack it did not sign, dropping", peerId), utils.YELLOW_COLOR)

			diverged[peerId] = struct{}{}

		}

	}

	return silent, diverged
}

// filterDroppedPeers removes diverged peers outright. A silent peer that
// merely missed the ack window but still answers a live re-validation is kept
// for the next attempt.
func (coordinator *Coordinator) filterDroppedPeers(ctx context.Context, activePeers []structures.PeerInfo, silentPeers, divergedPeers map[string]struct{}) []structures.PeerInfo {

	survivors := make([]structures.PeerInfo, 0, len(activePeers))

	for _, peer := range activePeers {

		if _, hasDiverged := divergedPeers[peer.Id]; hasDiverged {
			utils.LogWithTime(fmt.Sprintf("Genesis coordination: removing diverged peer %s", peer.Id), utils.YELLOW_COLOR)
			continue
		}

		if _, wentSilent := silentPeers[peer.Id]; !wentSilent {
			survivors = append(survivors, peer)
			continue
		}

		if coordinator.validator != nil && coordinator.validator.ValidatePeerConnection(ctx, peer) {
			survivors = append(survivors, peer)
			continue
		}

		utils.LogWithTime(fmt.Sprintf("Genesis coordination: removing unresponsive peer %s", peer.Id), utils.YELLOW_COLOR)

	}

	return survivors
}
