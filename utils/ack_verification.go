package utils

import (
	"strings"

	"github.com/playergold/playergold-bootstrap-core/cryptography"
)

// GenesisAckSignaturePayload is the canonical string a participant signs when
// acknowledging a genesis proposal. Binding the network id into the payload
// keeps an ack from one formation round from being replayed in another.
func GenesisAckSignaturePayload(networkId, blockHash string) string {

	return strings.Join([]string{"genesis-ack", networkId, blockHash}, ":")

}

// VerifyGenesisAckSignature checks that the ack for blockHash was really
// produced by the peer the transport claims it came from. Peer ids are base58
// ed25519 public keys, so the id doubles as the verification key.
func VerifyGenesisAckSignature(networkId, blockHash, peerId, signature string) bool {

	if peerId == "" || signature == "" {
		return false
	}

	return cryptography.VerifySignature(GenesisAckSignaturePayload(networkId, blockHash), peerId, signature)

}
