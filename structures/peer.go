package structures

import (
	"errors"
	"strconv"
)

const (
	NETWORK_MODE_TESTNET = "testnet"
	NETWORK_MODE_MAINNET = "mainnet"
)

const (
	CAPABILITY_DISCOVERY        = "discovery"
	CAPABILITY_GENESIS_CREATION = "genesis_creation"
	CAPABILITY_MINING           = "mining"
)

// PeerInfo describes a discovered candidate node. Records are immutable once
// built - a re-discovery produces a fresh record rather than mutating the old one.
type PeerInfo struct {
	Id            string   `json:"id"`
	Address       string   `json:"address"`
	Port          int      `json:"port"`
	WalletAddress string   `json:"walletAddress"`
	NetworkMode   string   `json:"networkMode"`
	IsReady       bool     `json:"isReady"`
	Capabilities  []string `json:"capabilities"`
	LastSeen      int64    `json:"lastSeen"`
}

func (peer *PeerInfo) ValidatePeerInfo() error {

	if peer.Id == "" {
		return errors.New("peer info: id is required")
	}

	if peer.Address == "" {
		return errors.New("peer info: address is required")
	}

	if peer.Port <= 0 || peer.Port > 65535 {
		return errors.New("peer info: port is out of range")
	}

	if peer.WalletAddress == "" {
		return errors.New("peer info: wallet address is required")
	}

	if peer.NetworkMode != NETWORK_MODE_TESTNET && peer.NetworkMode != NETWORK_MODE_MAINNET {
		return errors.New("peer info: unknown network mode " + peer.NetworkMode)
	}

	return nil
}

func (peer *PeerInfo) HasCapability(capability string) bool {

	for _, known := range peer.Capabilities {

		if known == capability {
			return true
		}

	}

	return false
}

func (peer *PeerInfo) Endpoint() string {
	return peer.Address + ":" + strconv.Itoa(peer.Port)
}

func (peer *PeerInfo) WebsocketUrl() string {
	return "ws://" + peer.Endpoint()
}

func (src *PeerInfo) CopyPeerInfo() PeerInfo {

	capabilities := make([]string, len(src.Capabilities))

	copy(capabilities, src.Capabilities)

	peerCopy := *src

	peerCopy.Capabilities = capabilities

	return peerCopy
}
