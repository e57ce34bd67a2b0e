package structures

// Route-dispatched JSON messages of the peer websocket protocol.
const (
	WS_ROUTE_HANDSHAKE        = "handshake"
	WS_ROUTE_PING             = "ping"
	WS_ROUTE_AVAILABILITY     = "availability"
	WS_ROUTE_GENESIS_PROPOSAL = "genesis_proposal"
	WS_ROUTE_GENESIS_QUERY    = "genesis_query"
)

type WsHandshakeRequest struct {
	Route  string   `json:"route"`
	Advert PeerInfo `json:"advert"`
}

type WsHandshakeResponse struct {
	Advert PeerInfo `json:"advert"`
	Error  string   `json:"error,omitempty"`
}

type WsPingRequest struct {
	Route string `json:"route"`
}

type WsPongResponse struct {
	Pong   bool     `json:"pong"`
	Advert PeerInfo `json:"advert"`
}

type WsAvailabilityNotice struct {
	Route  string   `json:"route"`
	Advert PeerInfo `json:"advert"`
}

type WsAvailabilityResponse struct {
	Status string `json:"status"`
}

type WsGenesisProposalRequest struct {
	Route  string        `json:"route"`
	Params GenesisParams `json:"params"`
	Block  GenesisBlock  `json:"block"`
}

// WsGenesisAckResponse is the receiver's verdict on a genesis proposal: the
// hash it computed locally from the proposed params and whether it matches.
// A positive ack is signed with the node key, so the coordinator counts only
// acks provably issued by the peer it addressed.
type WsGenesisAckResponse struct {
	NodeId    string `json:"nodeId"`
	Hash      string `json:"hash"`
	Ok        bool   `json:"ok"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}

type WsGenesisQueryRequest struct {
	Route string `json:"route"`
}

type WsGenesisQueryResponse struct {
	HasGenesis  bool   `json:"hasGenesis"`
	GenesisHash string `json:"genesisHash,omitempty"`
	NetworkId   string `json:"networkId,omitempty"`
}
