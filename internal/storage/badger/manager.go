package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/common"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	checkpoint interfaces.CheckpointStorage
	schedule   interfaces.ScheduleStorage
	manifest   interfaces.ManifestStorage
	audit      interfaces.AuditStorage
	logger     arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:         db,
		checkpoint: NewCheckpointStorage(db, logger),
		schedule:   NewScheduleStorage(db, logger),
		manifest:   NewManifestStorage(db, logger),
		audit:      NewAuditStorage(db, logger),
		logger:     logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// CheckpointStorage returns the checkpoint ledger interface
func (m *Manager) CheckpointStorage() interfaces.CheckpointStorage {
	return m.checkpoint
}

// ScheduleStorage returns the schedule storage interface
func (m *Manager) ScheduleStorage() interfaces.ScheduleStorage {
	return m.schedule
}

// ManifestStorage returns the sync manifest storage interface
func (m *Manager) ManifestStorage() interfaces.ManifestStorage {
	return m.manifest
}

// AuditStorage returns the scheduler audit log interface
func (m *Manager) AuditStorage() interfaces.AuditStorage {
	return m.audit
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
