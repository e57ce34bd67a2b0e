package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/playergold/playergold-bootstrap-core/databases"
	"github.com/playergold/playergold-bootstrap-core/structures"

	"github.com/syndtr/goleveldb/leveldb"
	ldbErrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Only the newest CONNECTION_ATTEMPTS_WINDOW records are kept. Each append
// deletes the record that falls out of the window in the same batch.
const CONNECTION_ATTEMPTS_WINDOW = 512

const CONNECTION_ATTEMPT_PREFIX = "ATTEMPT:"

var ATTEMPTS_WRITE_MUTEX sync.Mutex

var connectionAttemptSeqKey = []byte("ATTEMPT_SEQ")

func connectionAttemptKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", CONNECTION_ATTEMPT_PREFIX, seq))
}

func StoreConnectionAttempt(attempt structures.ConnectionAttempt) error {

	payload, err := json.Marshal(attempt)

	if err != nil {
		return err
	}

	ATTEMPTS_WRITE_MUTEX.Lock()

	defer ATTEMPTS_WRITE_MUTEX.Unlock()

	seq := uint64(0)

	if raw, readErr := databases.ATTEMPTS.Get(connectionAttemptSeqKey, nil); readErr == nil {

		if parsed, parseErr := strconv.ParseUint(string(raw), 10, 64); parseErr == nil {
			seq = parsed + 1
		}

	} else if !errors.Is(readErr, ldbErrors.ErrNotFound) {
		return readErr
	}

	atomicBatch := new(leveldb.Batch)

	atomicBatch.Put(connectionAttemptKey(seq), payload)

	atomicBatch.Put(connectionAttemptSeqKey, []byte(strconv.FormatUint(seq, 10)))

	if seq >= CONNECTION_ATTEMPTS_WINDOW {
		atomicBatch.Delete(connectionAttemptKey(seq - CONNECTION_ATTEMPTS_WINDOW))
	}

	return databases.ATTEMPTS.Write(atomicBatch, nil)
}

// ReadRecentConnectionAttempts returns up to limit records, oldest first.
// Keys are zero-padded so iteration order matches append order.
func ReadRecentConnectionAttempts(limit int) []structures.ConnectionAttempt {

	if limit <= 0 || limit > CONNECTION_ATTEMPTS_WINDOW {
		limit = CONNECTION_ATTEMPTS_WINDOW
	}

	it := databases.ATTEMPTS.NewIterator(util.BytesPrefix([]byte(CONNECTION_ATTEMPT_PREFIX)), nil)

	defer it.Release()

	attempts := make([]structures.ConnectionAttempt, 0, limit)

	for it.Next() {

		var attempt structures.ConnectionAttempt

		if json.Unmarshal(it.Value(), &attempt) != nil {
			continue
		}

		attempts = append(attempts, attempt)

		if len(attempts) > limit {
			attempts = attempts[1:]
		}

	}

	return attempts
}
