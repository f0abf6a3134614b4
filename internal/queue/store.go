package queue

import (
	"errors"

	pebblestore "github.com/stationkit/redeemq/internal/storage/pebble"
)

// KVStore is the durable blob store the queue persists into. Get reports
// found=false for absent keys; Set must be synchronous enough that a crash
// immediately after it does not lose the write.
type KVStore interface {
	Get(key []byte) (value []byte, found bool, err error)
	Set(key, value []byte) error
}

// QueueKey returns the persistence key owned by one station's queue.
func QueueKey(stationID string) []byte {
	return []byte("queue/" + stationID)
}

// NewPebbleStore adapts a pebblestore.DB to the KVStore contract.
func NewPebbleStore(db *pebblestore.DB) KVStore {
	return pebbleKV{db: db}
}

type pebbleKV struct {
	db *pebblestore.DB
}

func (s pebbleKV) Get(key []byte) ([]byte, bool, error) {
	v, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

func (s pebbleKV) Set(key, value []byte) error {
	return s.db.Set(key, value)
}
