package structures

// Bootstrap modes. The orchestrator only ever moves forward through this
// sequence; NETWORK is terminal until an explicit reset.
const (
	BOOTSTRAP_MODE_PIONEER   = "pioneer"
	BOOTSTRAP_MODE_DISCOVERY = "discovery"
	BOOTSTRAP_MODE_GENESIS   = "genesis"
	BOOTSTRAP_MODE_NETWORK   = "network"
)

const (
	DISCOVERY_STRATEGY_DIRECTORY = "directory"
	DISCOVERY_STRATEGY_SCAN      = "scan"
)

type LastErrorInfo struct {
	Kind        string `json:"kind"`
	UserMessage string `json:"userMessage"`
	Timestamp   int64  `json:"timestamp"`
}

// BootstrapState is the orchestrator's single source of truth. It is mutated
// only through the orchestrator's guarded update path and read everywhere else
// through snapshot copies.
type BootstrapState struct {
	Mode              string            `json:"mode"`
	WalletAddress     string            `json:"walletAddress"`
	SelectedAsset     string            `json:"selectedAsset"`
	AssetMetadata     map[string]string `json:"assetMetadata,omitempty"`
	Peers             []PeerInfo        `json:"peers"`
	GenesisBlock      *GenesisBlock     `json:"genesisBlock,omitempty"`
	NetworkConfig     *NetworkConfig    `json:"networkConfig,omitempty"`
	LastError         *LastErrorInfo    `json:"lastError,omitempty"`
	IsReady           bool              `json:"isReady"`
	DiscoveryStrategy string            `json:"discoveryStrategy,omitempty"`
	Extensions        map[string]string `json:"extensions,omitempty"`
	UpdatedAt         int64             `json:"updatedAt"`
}

func NewBootstrapState() BootstrapState {
	return BootstrapState{
		Mode:          BOOTSTRAP_MODE_PIONEER,
		AssetMetadata: make(map[string]string),
		Peers:         []PeerInfo{},
		Extensions:    make(map[string]string),
	}
}

func (src *BootstrapState) CopyBootstrapState() BootstrapState {

	stateCopy := *src

	stateCopy.AssetMetadata = copyStringMap(src.AssetMetadata)
	stateCopy.Extensions = copyStringMap(src.Extensions)

	stateCopy.Peers = make([]PeerInfo, 0, len(src.Peers))

	for _, peer := range src.Peers {
		stateCopy.Peers = append(stateCopy.Peers, peer.CopyPeerInfo())
	}

	if src.GenesisBlock != nil {
		blockCopy := src.GenesisBlock.CopyGenesisBlock()
		stateCopy.GenesisBlock = &blockCopy
	}

	if src.NetworkConfig != nil {
		configCopy := src.NetworkConfig.CopyNetworkConfig()
		stateCopy.NetworkConfig = &configCopy
	}

	if src.LastError != nil {
		errCopy := *src.LastError
		stateCopy.LastError = &errCopy
	}

	return stateCopy
}

func copyStringMap(src map[string]string) map[string]string {

	dst := make(map[string]string, len(src))

	for key, value := range src {
		dst[key] = value
	}

	return dst
}
