package globals

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/playergold/playergold-bootstrap-core/cryptography"
	"github.com/playergold/playergold-bootstrap-core/structures"
)

const CORE_VERSION = "1.0.0"

const (
	DEFAULT_API_PORT       = 8080
	DEFAULT_DISCOVERY_PORT = 8333
	DEFAULT_MIN_QUORUM     = 2
	DEFAULT_MAX_PEERS      = 50
)

var CHAINDATA_PATH = resolveChaindataPath()

var CONFIGURATION structures.NodeLevelConfig

func resolveChaindataPath() string {

	if path := os.Getenv("CHAINDATA_PATH"); path != "" {
		return path
	}

	return "chaindata"
}

// LoadConfiguration reads configs.json from the chaindata directory and fills
// the process-wide CONFIGURATION. Missing numeric fields fall back to network
// defaults so a minimal config file is enough to start a node.
func LoadConfiguration() error {

	configPath := CHAINDATA_PATH + "/configs.json"

	rawConfig, err := os.ReadFile(configPath)

	if err != nil {
		return fmt.Errorf("read node config %s: %w", configPath, err)
	}

	var config structures.NodeLevelConfig

	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return fmt.Errorf("parse node config: %w", err)
	}

	ApplyConfigDefaults(&config)

	// A node without an identity cannot sign directory requests or genesis
	// acks. Generate one on first boot and write it back so the identity
	// survives restarts.
	if config.PublicKey == "" || config.PrivateKey == "" {

		publicKey, privateKey, err := cryptography.GenerateKeyPair()

		if err != nil {
			return fmt.Errorf("generate node keypair: %w", err)
		}

		config.PublicKey = publicKey

		config.PrivateKey = privateKey

		if patched, err := json.MarshalIndent(config, "", "    "); err == nil {
			_ = os.WriteFile(configPath, patched, 0644)
		}

	}

	CONFIGURATION = config

	return nil
}

func ApplyConfigDefaults(config *structures.NodeLevelConfig) {

	if config.Interface == "" {
		config.Interface = "0.0.0.0"
	}

	if config.Port == 0 {
		config.Port = DEFAULT_API_PORT
	}

	if config.WebSocketInterface == "" {
		config.WebSocketInterface = config.Interface
	}

	if config.WebSocketPort == 0 {
		config.WebSocketPort = DEFAULT_DISCOVERY_PORT
	}

	if config.NetworkMode == "" {
		config.NetworkMode = structures.NETWORK_MODE_TESTNET
	}

	if config.MinQuorum <= 0 {
		config.MinQuorum = DEFAULT_MIN_QUORUM
	}

	if config.MaxPeers <= 0 {
		config.MaxPeers = DEFAULT_MAX_PEERS
	}

	if config.MaxRetryAttempts <= 0 {
		config.MaxRetryAttempts = 5
	}

	if config.RetryBaseDelayMs <= 0 {
		config.RetryBaseDelayMs = 1000
	}

	if config.GenesisBaseReward == 0 {
		config.GenesisBaseReward = 1000
	}

	if config.BlockTimeSeconds <= 0 {
		config.BlockTimeSeconds = 10
	}

	if config.MinValidators <= 0 {
		config.MinValidators = 3
	}

	if config.MaxValidators <= 0 {
		config.MaxValidators = 100
	}

}
