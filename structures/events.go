package structures

// Lifecycle events published by the orchestrator. Collaborators (wallet,
// mining, UI) subscribe to a typed channel stream instead of polling state.
const (
	EVENT_MODE_CHANGED          = "mode_changed"
	EVENT_PEERS_DISCOVERED      = "peers_discovered"
	EVENT_GENESIS_PHASE_CHANGED = "genesis_phase_changed"
	EVENT_GENESIS_CREATED       = "genesis_created"
	EVENT_NETWORK_ACTIVATED     = "network_activated"
	EVENT_ERROR                 = "error"
)

type BootstrapEvent struct {
	Kind          string         `json:"kind"`
	Mode          string         `json:"mode,omitempty"`
	PreviousMode  string         `json:"previousMode,omitempty"`
	Peers         []PeerInfo     `json:"peers,omitempty"`
	GenesisPhase  string         `json:"genesisPhase,omitempty"`
	GenesisBlock  *GenesisBlock  `json:"genesisBlock,omitempty"`
	NetworkConfig *NetworkConfig `json:"networkConfig,omitempty"`
	Error         *LastErrorInfo `json:"error,omitempty"`
	Timestamp     int64          `json:"timestamp"`
}
