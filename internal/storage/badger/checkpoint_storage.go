package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/interfaces"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
)

// CheckpointStorage implements the CheckpointStorage interface for Badger.
// The ledger is never fatal to its callers: read errors degrade to an empty
// result with a warning so a corrupt store cannot take the service down.
type CheckpointStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCheckpointStorage creates a new CheckpointStorage instance
func NewCheckpointStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CheckpointStorage {
	return &CheckpointStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CheckpointStorage) RecordResult(ctx context.Context, record *models.CheckpointRecord) error {
	if record.RunID == "" || record.ItemPath == "" {
		return fmt.Errorf("checkpoint record requires run id and item path")
	}

	record.Key = models.CheckpointKey(record.RunID, record.ItemPath)

	// Upsert: a later write for the same (run, item) overwrites, never appends
	if err := s.db.Store().Upsert(record.Key, record); err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}
	return nil
}

func (s *CheckpointStorage) GetRecordsForRun(ctx context.Context, runID string) ([]models.CheckpointRecord, error) {
	var records []models.CheckpointRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("RunID").Eq(runID)); err != nil {
		s.logger.Warn().Err(err).Str("run_id", runID).Msg("Ledger read failed, degrading to empty result")
		return []models.CheckpointRecord{}, nil
	}
	return records, nil
}

func (s *CheckpointStorage) GetCurrentRunID(ctx context.Context) (string, error) {
	return s.getMarker(models.MarkerCurrentRun), nil
}

func (s *CheckpointStorage) GetLastCompletedRunID(ctx context.Context) (string, error) {
	return s.getMarker(models.MarkerLastCompleted), nil
}

func (s *CheckpointStorage) SetCurrentRunID(ctx context.Context, runID string) error {
	return s.setMarker(models.MarkerCurrentRun, runID)
}

func (s *CheckpointStorage) SetLastCompletedRunID(ctx context.Context, runID string) error {
	return s.setMarker(models.MarkerLastCompleted, runID)
}

// CanResume reports the resumability rule: a run is resumable iff it has at
// least one checkpoint record AND its id differs from the last-completed
// marker: it started but never reached the terminal completion signal.
func (s *CheckpointStorage) CanResume(ctx context.Context, runID string) (bool, error) {
	if runID == "" {
		return false, nil
	}
	if s.getMarker(models.MarkerLastCompleted) == runID {
		return false, nil
	}

	count, err := s.db.Store().Count(&models.CheckpointRecord{}, badgerhold.Where("RunID").Eq(runID))
	if err != nil {
		s.logger.Warn().Err(err).Str("run_id", runID).Msg("Ledger count failed, treating run as not resumable")
		return false, nil
	}
	return count > 0, nil
}

func (s *CheckpointStorage) getMarker(name string) string {
	var marker models.RunMarker
	if err := s.db.Store().Get(name, &marker); err != nil {
		if err != badgerhold.ErrNotFound {
			s.logger.Warn().Err(err).Str("marker", name).Msg("Marker read failed, degrading to empty")
		}
		return ""
	}
	return marker.RunID
}

func (s *CheckpointStorage) setMarker(name, runID string) error {
	marker := models.RunMarker{
		Name:      name,
		RunID:     runID,
		UpdatedAt: time.Now(),
	}
	if err := s.db.Store().Upsert(name, &marker); err != nil {
		return fmt.Errorf("failed to set %s marker: %w", name, err)
	}
	return nil
}
