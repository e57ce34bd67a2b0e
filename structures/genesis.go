package structures

import "errors"

// Genesis coordination phases, emitted as events while a formation attempt runs.
const (
	GENESIS_PHASE_NEGOTIATING  = "negotiating"
	GENESIS_PHASE_CREATING     = "creating"
	GENESIS_PHASE_DISTRIBUTING = "distributing"
	GENESIS_PHASE_VALIDATING   = "validating"
	GENESIS_PHASE_COMPLETED    = "completed"
	GENESIS_PHASE_FAILED       = "failed"
)

const GENESIS_TX_TYPE_REWARD = "genesis_reward"

type ConsensusRules struct {
	Algorithm        string `json:"algorithm"`
	BlockTimeSeconds int64  `json:"blockTimeSeconds"`
	MinValidators    int    `json:"minValidators"`
	MaxValidators    int    `json:"maxValidators"`
}

func (src *ConsensusRules) CopyConsensusRules() ConsensusRules {
	return ConsensusRules{
		Algorithm:        src.Algorithm,
		BlockTimeSeconds: src.BlockTimeSeconds,
		MinValidators:    src.MinValidators,
		MaxValidators:    src.MaxValidators,
	}
}

type GenesisParams struct {
	Timestamp      int64             `json:"timestamp"`
	Difficulty     int               `json:"difficulty"`
	Participants   []string          `json:"participants"`
	Rewards        map[string]uint64 `json:"rewards"`
	NetworkId      string            `json:"networkId"`
	ConsensusRules ConsensusRules    `json:"consensusRules"`
}

func (params *GenesisParams) ValidateGenesisParams() error {

	if params.Timestamp <= 0 {
		return errors.New("genesis params: timestamp is required")
	}

	if len(params.Participants) == 0 {
		return errors.New("genesis params: participants list is empty")
	}

	if params.NetworkId == "" {
		return errors.New("genesis params: network id is required")
	}

	for _, participant := range params.Participants {

		if participant == "" {
			return errors.New("genesis params: empty participant address")
		}

		if _, ok := params.Rewards[participant]; !ok {
			return errors.New("genesis params: missing reward for participant " + participant)
		}

	}

	return nil
}

func (src *GenesisParams) CopyGenesisParams() GenesisParams {

	participants := make([]string, len(src.Participants))

	copy(participants, src.Participants)

	rewards := make(map[string]uint64, len(src.Rewards))

	for address, amount := range src.Rewards {
		rewards[address] = amount
	}

	return GenesisParams{
		Timestamp:      src.Timestamp,
		Difficulty:     src.Difficulty,
		Participants:   participants,
		Rewards:        rewards,
		NetworkId:      src.NetworkId,
		ConsensusRules: src.ConsensusRules.CopyConsensusRules(),
	}
}

type GenesisTransaction struct {
	Id        string `json:"id"`
	Type      string `json:"type"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

type GenesisBlock struct {
	Index        int                  `json:"index"`
	PrevHash     string               `json:"previousHash"`
	NetworkId    string               `json:"networkId"`
	Timestamp    int64                `json:"timestamp"`
	Difficulty   int                  `json:"difficulty"`
	Transactions []GenesisTransaction `json:"transactions"`
	Hash         string               `json:"hash"`
}

func (src *GenesisBlock) CopyGenesisBlock() GenesisBlock {

	transactions := make([]GenesisTransaction, len(src.Transactions))

	copy(transactions, src.Transactions)

	blockCopy := *src

	blockCopy.Transactions = transactions

	return blockCopy
}

type NetworkConfig struct {
	NetworkId      string         `json:"networkId"`
	GenesisHash    string         `json:"genesisHash"`
	Peers          []PeerInfo     `json:"peers"`
	ConsensusRules ConsensusRules `json:"consensusRules"`
	CreatedAt      int64          `json:"createdAt"`
}

func (src *NetworkConfig) CopyNetworkConfig() NetworkConfig {

	peers := make([]PeerInfo, 0, len(src.Peers))

	for _, peer := range src.Peers {
		peers = append(peers, peer.CopyPeerInfo())
	}

	return NetworkConfig{
		NetworkId:      src.NetworkId,
		GenesisHash:    src.GenesisHash,
		Peers:          peers,
		ConsensusRules: src.ConsensusRules.CopyConsensusRules(),
		CreatedAt:      src.CreatedAt,
	}
}

// GenesisResult is what a successful coordination round hands back to the orchestrator.
type GenesisResult struct {
	Block         *GenesisBlock  `json:"block"`
	NetworkConfig *NetworkConfig `json:"networkConfig"`
	Participants  []string       `json:"participants"`
}
