package structures

type NodeLevelConfig struct {
	PublicKey          string   `json:"PUBLIC_KEY"`
	PrivateKey         string   `json:"PRIVATE_KEY"`
	Interface          string   `json:"INTERFACE"`
	Port               int      `json:"PORT"`
	WebSocketInterface string   `json:"WEBSOCKET_INTERFACE"`
	WebSocketPort      int      `json:"WEBSOCKET_PORT"`
	NetworkMode        string   `json:"NETWORK_MODE"`
	Latitude           float64  `json:"LATITUDE"`
	Longitude          float64  `json:"LONGITUDE"`
	DirectoryEndpoints []string `json:"DIRECTORY_ENDPOINTS"`
	SeedNodes          []string `json:"SEED_NODES"`
	MinQuorum          int      `json:"MIN_QUORUM"`
	MaxPeers           int      `json:"MAX_PEERS"`
	MaxRetryAttempts   int      `json:"MAX_RETRY_ATTEMPTS"`
	RetryBaseDelayMs   int64    `json:"RETRY_BASE_DELAY_MS"`
	GenesisBaseReward  uint64   `json:"GENESIS_BASE_REWARD"`
	BlockTimeSeconds   int64    `json:"BLOCK_TIME_SECONDS"`
	MinValidators      int      `json:"MIN_VALIDATORS"`
	MaxValidators      int      `json:"MAX_VALIDATORS"`
}
