package badger

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/models"
)

// consumedKey records that a scheduled slot has been consumed. Keys are
// opaque to the store; the scheduler composes them from user, episode
// type, and period.
type consumedKey struct {
	Key        string    `badgerhold:"key"`
	ConsumedAt time.Time
}

// ConsumptionStorage implements the ConsumptionStorage interface for
// Badger. Persistence makes the consume-at-most-once guarantee survive
// restarts.
type ConsumptionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewConsumptionStorage creates a new ConsumptionStorage instance
func NewConsumptionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ConsumptionStorage {
	return &ConsumptionStorage{
		db:     db,
		logger: logger,
	}
}

// MarkConsumed records the key and reports whether this call was the
// first to do so. Insert fails with ErrKeyExists on the second and
// later calls, which gives the exactly-once answer without a separate
// read.
func (s *ConsumptionStorage) MarkConsumed(ctx context.Context, key string) (bool, error) {
	err := s.db.Store().Insert(key, &consumedKey{
		Key:        key,
		ConsumedAt: time.Now(),
	})
	if err == badgerhold.ErrKeyExists {
		return false, nil
	}
	if err != nil {
		return false, &models.PersistenceError{Entity: "consumption", Err: err}
	}
	return true, nil
}

func (s *ConsumptionStorage) IsConsumed(ctx context.Context, key string) (bool, error) {
	var record consumedKey
	err := s.db.Store().Get(key, &record)
	if err == badgerhold.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, &models.PersistenceError{Entity: "consumption", Err: err}
	}
	return true, nil
}
