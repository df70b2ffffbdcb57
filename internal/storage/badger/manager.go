package badger

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/common"
	"github.com/audiofin/fincast/internal/interfaces"
)

// Manager aggregates all Badger-backed storage services behind a single
// database connection.
type Manager struct {
	db                 *BadgerDB
	episodeStorage     interfaces.EpisodeStorage
	insightStorage     interfaces.InsightStorage
	sessionStorage     interfaces.SessionStorage
	recordStorage      interfaces.RecordStorage
	consumptionStorage interfaces.ConsumptionStorage
	logger             arbor.ILogger
}

// NewManager opens the database and wires every storage service to it
func NewManager(cfg *common.BadgerConfig, logger arbor.ILogger) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &Manager{
		db:                 db,
		episodeStorage:     NewEpisodeStorage(db, logger),
		insightStorage:     NewInsightStorage(db, logger),
		sessionStorage:     NewSessionStorage(db, logger),
		recordStorage:      NewRecordStorage(db, logger),
		consumptionStorage: NewConsumptionStorage(db, logger),
		logger:             logger,
	}, nil
}

func (m *Manager) EpisodeStorage() interfaces.EpisodeStorage {
	return m.episodeStorage
}

func (m *Manager) InsightStorage() interfaces.InsightStorage {
	return m.insightStorage
}

func (m *Manager) SessionStorage() interfaces.SessionStorage {
	return m.sessionStorage
}

func (m *Manager) RecordStorage() interfaces.RecordStorage {
	return m.recordStorage
}

func (m *Manager) ConsumptionStorage() interfaces.ConsumptionStorage {
	return m.consumptionStorage
}

// Close closes the underlying database connection
func (m *Manager) Close() error {
	m.logger.Info().Msg("Closing storage manager")
	return m.db.Close()
}
