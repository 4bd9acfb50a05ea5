package interfaces

import (
	"context"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
)

// CheckpointStorage is the durable per-(run, item) status ledger, the
// source of truth for resumability and metrics. Read paths degrade to empty
// results rather than failing the caller when the backing store is unreadable.
type CheckpointStorage interface {
	// RecordResult upserts the record for (run, item). Idempotent overwrite:
	// at most one live record exists per pair.
	RecordResult(ctx context.Context, record *models.CheckpointRecord) error

	// GetRecordsForRun returns every record written by a run
	GetRecordsForRun(ctx context.Context, runID string) ([]models.CheckpointRecord, error)

	// GetCurrentRunID returns the run currently writing the ledger, or ""
	GetCurrentRunID(ctx context.Context) (string, error)

	// GetLastCompletedRunID returns the last run that completed cleanly, or ""
	GetLastCompletedRunID(ctx context.Context) (string, error)

	// SetCurrentRunID records which run is writing the ledger
	SetCurrentRunID(ctx context.Context, runID string) error

	// SetLastCompletedRunID advances the terminal completion marker
	SetLastCompletedRunID(ctx context.Context, runID string) error

	// CanResume reports whether a run is resumable: it has at least one
	// record and its id differs from the last-completed marker.
	CanResume(ctx context.Context, runID string) (bool, error)
}

// ScheduleStorage persists schedule definitions
type ScheduleStorage interface {
	SaveSchedule(ctx context.Context, schedule *models.Schedule) error
	GetSchedule(ctx context.Context, id string) (*models.Schedule, error)
	ListSchedules(ctx context.Context) ([]models.Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error
}

// ManifestStorage is the global content-hash ledger used by the sync
// collaborator to skip unchanged transfers across runs
type ManifestStorage interface {
	// UpsertEntry records a verified successful fetch
	UpsertEntry(ctx context.Context, entry *models.ManifestEntry) error

	// GetEntry returns the entry for a key, or nil if unknown
	GetEntry(ctx context.Context, key string) (*models.ManifestEntry, error)

	// CountEntries returns the manifest size
	CountEntries(ctx context.Context) (int, error)
}

// AuditStorage is the append-only scheduler trigger log
type AuditStorage interface {
	AppendEntry(ctx context.Context, entry *models.AuditEntry) error
	ListEntries(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

// StorageManager provides access to all storage backends
type StorageManager interface {
	CheckpointStorage() CheckpointStorage
	ScheduleStorage() ScheduleStorage
	ManifestStorage() ManifestStorage
	AuditStorage() AuditStorage
	Close() error
}
