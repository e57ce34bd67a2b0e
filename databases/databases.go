package databases

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// STATE holds the write-through bootstrap state snapshot, NETWORK_DATA the
// agreed network configuration and genesis block, ATTEMPTS the rolling window
// of peer connection attempts.
var STATE, NETWORK_DATA, ATTEMPTS *leveldb.DB

// CloseAll safely closes all initialized LevelDB instances
func CloseAll() error {

	type namedDB struct {
		name string
		db   **leveldb.DB
	}

	databases := []namedDB{
		{name: "STATE", db: &STATE},
		{name: "NETWORK_DATA", db: &NETWORK_DATA},
		{name: "ATTEMPTS", db: &ATTEMPTS},
	}

	var errs []error
	for _, database := range databases {
		if database.db == nil || *database.db == nil {
			continue
		}

		if err := (*database.db).Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", database.name, err))
		}

	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
