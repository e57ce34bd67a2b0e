package structures

// Wire structures for the remote directory service. Every POST body carries an
// ed25519 signature over the canonical message so the directory can verify the
// sender owns the advertised node key.

type DirectoryNodeRecord struct {
	NodeId           string  `json:"nodeId"`
	PublicIp         string  `json:"publicIp"`
	Port             int     `json:"port"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	LastSeen         int64   `json:"lastSeen"`
	MiningActive     bool    `json:"miningActive"`
	NetworkLatency   float64 `json:"networkLatency"`
	UptimePercentage float64 `json:"uptimePercentage"`
	ConnectedPeers   int     `json:"connectedPeers"`
}

type DirectoryRegisterRequest struct {
	NodeId    string  `json:"nodeId"`
	PublicKey string  `json:"publicKey"`
	Address   string  `json:"address"`
	Port      int     `json:"port"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Signature string  `json:"signature"`
}

type DirectoryKeepaliveRequest struct {
	NodeId           string  `json:"nodeId"`
	BlockchainHeight int     `json:"blockchainHeight"`
	ConnectedPeers   int     `json:"connectedPeers"`
	MemoryUsageMb    float64 `json:"memoryUsageMb"`
	GoroutineCount   int     `json:"goroutineCount"`
	Signature        string  `json:"signature"`
}

type DirectoryNetworkMapRequest struct {
	NodeId      string  `json:"nodeId"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	MaxDistance float64 `json:"maxDistance,omitempty"`
	Limit       int     `json:"limit,omitempty"`
	Signature   string  `json:"signature"`
}

type DirectoryNetworkMapResponse struct {
	Nodes []DirectoryNodeRecord `json:"nodes"`
}

type DirectoryStatsResponse struct {
	TotalNodes   int `json:"totalNodes"`
	ActiveNodes  int `json:"activeNodes"`
	GenesisNodes int `json:"genesisNodes"`
	MiningNodes  int `json:"miningNodes"`
}

type DirectoryAckResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
