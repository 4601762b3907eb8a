package badger

import (
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/stockgrader/internal/common"
	"github.com/ternarybob/stockgrader/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	analysis   interfaces.AnalysisStorage
	kv         interfaces.KeyValueStorage
	transcript interfaces.TranscriptStorage
	logger     arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig, transcriptTTL time.Duration) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:         db,
		analysis:   NewAnalysisStorage(db, logger),
		kv:         NewKVStorage(db, logger),
		transcript: NewTranscriptStorage(db, transcriptTTL, logger),
		logger:     logger,
	}

	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

// AnalysisStorage returns the analysis history storage interface
func (m *Manager) AnalysisStorage() interfaces.AnalysisStorage {
	return m.analysis
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// TranscriptStorage returns the chat transcript storage interface
func (m *Manager) TranscriptStorage() interfaces.TranscriptStorage {
	return m.transcript
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
