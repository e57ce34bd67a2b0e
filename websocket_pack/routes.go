package websocket_pack

import (
	"encoding/json"
	"fmt"

	"github.com/playergold/playergold-bootstrap-core/block_pack"
	"github.com/playergold/playergold-bootstrap-core/cryptography"
	"github.com/playergold/playergold-bootstrap-core/genesis"
	"github.com/playergold/playergold-bootstrap-core/structures"
	"github.com/playergold/playergold-bootstrap-core/utils"

	"github.com/lxzan/gws"
)

func writeJson(connection *gws.Conn, payload any) {

	raw, err := json.Marshal(payload)

	if err != nil {
		connection.WriteMessage(gws.OpcodeText, []byte(`{"error":"internal"}`))
		return
	}

	connection.WriteMessage(gws.OpcodeText, raw)
}

// HandleHandshake validates the caller's advert and answers with our own, so
// both sides leave the exchange knowing each other.
func (server *Server) HandleHandshake(parsedRequest structures.WsHandshakeRequest, connection *gws.Conn) {

	peer, err := server.engine.AdmitRemoteAdvert(parsedRequest.Advert)

	if err != nil {

		writeJson(connection, structures.WsHandshakeResponse{Error: err.Error()})

		return
	}

	utils.LogWithTime(fmt.Sprintf("Peer protocol: handshake from %s (%s)", peer.Id, peer.Endpoint()), utils.CYAN_COLOR)

	writeJson(connection, structures.WsHandshakeResponse{Advert: server.engine.LocalAdvert()})
}

func (server *Server) HandlePing(connection *gws.Conn) {

	writeJson(connection, structures.WsPongResponse{Pong: true, Advert: server.engine.LocalAdvert()})
}

// HandleAvailability records a peer that just became ready.
func (server *Server) HandleAvailability(parsedRequest structures.WsAvailabilityNotice, connection *gws.Conn) {

	peer, err := server.engine.AdmitRemoteAdvert(parsedRequest.Advert)

	if err != nil {

		writeJson(connection, structures.WsAvailabilityResponse{Status: "REJECTED"})

		return
	}

	utils.LogWithTime(fmt.Sprintf("Peer protocol: availability notice from %s", peer.Id), utils.GREEN_COLOR)

	writeJson(connection, structures.WsAvailabilityResponse{Status: "OK"})
}

// HandleGenesisProposal is the receiving half of genesis distribution: rebuild
// the block from the proposed parameters with our own code and ack the hash we
// computed. Convergence is proven by recomputation, not by echoing.
func (server *Server) HandleGenesisProposal(parsedRequest structures.WsGenesisProposalRequest, connection *gws.Conn) {

	ack := structures.WsGenesisAckResponse{NodeId: server.config.PublicKey}

	if err := parsedRequest.Params.ValidateGenesisParams(); err != nil {

		ack.Error = err.Error()

		writeJson(connection, ack)

		return
	}

	recomputed := block_pack.NewGenesisBlock(parsedRequest.Params)

	ack.Hash = recomputed.Hash

	ack.Ok = recomputed.Hash == parsedRequest.Block.Hash && block_pack.VerifyGenesisBlock(&parsedRequest.Block)

	if !ack.Ok {
		utils.LogWithTime(fmt.Sprintf("Peer protocol: genesis proposal diverged (ours %s, theirs %s)", recomputed.Hash, parsedRequest.Block.Hash), utils.YELLOW_COLOR)
	} else {

		ack.Signature = cryptography.GenerateSignature(server.config.PrivateKey, utils.GenesisAckSignaturePayload(parsedRequest.Params.NetworkId, recomputed.Hash))

		utils.LogWithTime(fmt.Sprintf("Peer protocol: acknowledged genesis proposal %s", recomputed.Hash), utils.GREEN_COLOR)

	}

	writeJson(connection, ack)
}

// HandleGenesisQuery answers whether this node already holds a genesis block.
func (server *Server) HandleGenesisQuery(connection *gws.Conn) {

	block, err := genesis.LoadGenesisBlock()

	if err != nil || block == nil {

		writeJson(connection, structures.WsGenesisQueryResponse{HasGenesis: false})

		return
	}

	writeJson(connection, structures.WsGenesisQueryResponse{
		HasGenesis:  true,
		GenesisHash: block.Hash,
		NetworkId:   block.NetworkId,
	})
}
