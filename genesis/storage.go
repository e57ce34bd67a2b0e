package genesis

import (
	"encoding/json"
	"errors"

	"github.com/playergold/playergold-bootstrap-core/databases"
	"github.com/playergold/playergold-bootstrap-core/structures"

	"github.com/syndtr/goleveldb/leveldb"
	ldbErrors "github.com/syndtr/goleveldb/leveldb/errors"
)

var networkConfigKey = []byte("NETWORK_CONFIG")

var genesisBlockKey = []byte("GENESIS_BLOCK")

// PersistNetworkConfiguration writes the agreed configuration and the genesis
// block in one atomic batch. Either both survive a crash or neither does.
func PersistNetworkConfiguration(networkConfig *structures.NetworkConfig, block *structures.GenesisBlock) error {

	if networkConfig == nil || block == nil {
		return errors.New("persist network configuration: config and block are both required")
	}

	jsonedConfig, err := json.Marshal(networkConfig)

	if err != nil {
		return err
	}

	jsonedBlock, err := json.Marshal(block)

	if err != nil {
		return err
	}

	atomicBatch := new(leveldb.Batch)

	atomicBatch.Put(networkConfigKey, jsonedConfig)

	atomicBatch.Put(genesisBlockKey, jsonedBlock)

	return databases.NETWORK_DATA.Write(atomicBatch, nil)
}

// LoadNetworkConfiguration returns the persisted config or nil when the
// network has not formed yet.
func LoadNetworkConfiguration() (*structures.NetworkConfig, error) {

	raw, err := databases.NETWORK_DATA.Get(networkConfigKey, nil)

	if err != nil {

		if errors.Is(err, ldbErrors.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	var networkConfig structures.NetworkConfig

	if err := json.Unmarshal(raw, &networkConfig); err != nil {
		return nil, err
	}

	return &networkConfig, nil
}

func LoadGenesisBlock() (*structures.GenesisBlock, error) {

	raw, err := databases.NETWORK_DATA.Get(genesisBlockKey, nil)

	if err != nil {

		if errors.Is(err, ldbErrors.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	var block structures.GenesisBlock

	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, err
	}

	return &block, nil
}

func HasPersistedGenesis() bool {

	block, err := LoadGenesisBlock()

	return err == nil && block != nil
}
