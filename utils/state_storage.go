package utils

import (
	"encoding/json"
	"errors"

	"github.com/playergold/playergold-bootstrap-core/databases"
	"github.com/playergold/playergold-bootstrap-core/structures"

	ldbErrors "github.com/syndtr/goleveldb/leveldb/errors"
)

var bootstrapStateKey = []byte("BOOTSTRAP_STATE")

func StoreBootstrapState(state *structures.BootstrapState) error {

	payload, err := json.Marshal(state)

	if err != nil {
		return err
	}

	return databases.STATE.Put(bootstrapStateKey, payload, nil)
}

// LoadBootstrapState returns nil without error when no state was persisted yet.
func LoadBootstrapState() (*structures.BootstrapState, error) {

	raw, err := databases.STATE.Get(bootstrapStateKey, nil)

	if err != nil {

		if errors.Is(err, ldbErrors.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	var state structures.BootstrapState

	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}

	return &state, nil
}
