package websocket_pack

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/playergold/playergold-bootstrap-core/discovery"
	"github.com/playergold/playergold-bootstrap-core/structures"
	"github.com/playergold/playergold-bootstrap-core/utils"

	"github.com/lxzan/gws"
)

// Server answers the peer-to-peer protocol: handshakes, liveness pings,
// availability notices and genesis coordination messages.
type Server struct {
	config *structures.NodeLevelConfig

	engine *discovery.Engine
}

func NewServer(config *structures.NodeLevelConfig, engine *discovery.Engine) *Server {
	return &Server{config: config, engine: engine}
}

type Handler struct {
	server *Server
}

type IncomingMsg struct {
	Route string `json:"route"`
}

func (h *Handler) OnOpen(conn *gws.Conn) {}

func (h *Handler) OnClose(conn *gws.Conn, err error) {}

func (h *Handler) OnPing(conn *gws.Conn, payload []byte) {}

func (h *Handler) OnPong(conn *gws.Conn, payload []byte) {}

func (h *Handler) OnMessage(connection *gws.Conn, message *gws.Message) {

	defer message.Close()

	var incoming IncomingMsg

	if err := json.Unmarshal(message.Bytes(), &incoming); err != nil {

		connection.WriteMessage(gws.OpcodeText, []byte(`{"error":"invalid_json"}`))

		return

	}

	switch incoming.Route {

	case structures.WS_ROUTE_HANDSHAKE:

		var req structures.WsHandshakeRequest

		if err := json.Unmarshal(message.Bytes(), &req); err != nil {
			connection.WriteMessage(gws.OpcodeText, []byte(`{"error":"invalid_handshake_request"}`))
			return
		}

		h.server.HandleHandshake(req, connection)

	case structures.WS_ROUTE_PING:

		h.server.HandlePing(connection)

	case structures.WS_ROUTE_AVAILABILITY:

		var req structures.WsAvailabilityNotice

		if err := json.Unmarshal(message.Bytes(), &req); err != nil {
			connection.WriteMessage(gws.OpcodeText, []byte(`{"error":"invalid_availability_notice"}`))
			return
		}

		h.server.HandleAvailability(req, connection)

	case structures.WS_ROUTE_GENESIS_PROPOSAL:

		var req structures.WsGenesisProposalRequest

		if err := json.Unmarshal(message.Bytes(), &req); err != nil {
			connection.WriteMessage(gws.OpcodeText, []byte(`{"error":"invalid_genesis_proposal"}`))
			return
		}

		h.server.HandleGenesisProposal(req, connection)

	case structures.WS_ROUTE_GENESIS_QUERY:

		h.server.HandleGenesisQuery(connection)

	default:
		connection.WriteMessage(gws.OpcodeText, []byte(`{"error":"unknown_type"}`))

	}
}

func (server *Server) CreateWebsocketServer() {

	upgrader := gws.NewUpgrader(&Handler{server: server}, &gws.ServerOption{
		ParallelEnabled:   true,
		Recovery:          gws.Recovery,
		PermessageDeflate: gws.PermessageDeflate{Enabled: true},
	})

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {

		conn, err := upgrader.Upgrade(w, r)

		if err != nil {

			return

		}

		go func() {

			conn.ReadLoop()

		}()

	})

	wsInterface := server.config.WebSocketInterface

	wsPort := server.config.WebSocketPort

	address := wsInterface + ":" + strconv.Itoa(wsPort)

	utils.LogWithTime(fmt.Sprintf("Websocket server is starting at ws://%s ...✅", address), utils.CYAN_COLOR)

	if err := http.ListenAndServe(address, nil); err != nil {

		utils.LogWithTime(fmt.Sprintf("Error in websocket server: %s", err), utils.RED_COLOR)

	}

}
