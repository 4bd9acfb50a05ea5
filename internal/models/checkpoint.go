package models

import (
	"fmt"
	"time"
)

// ItemStatus is the outcome recorded for one item within one run
type ItemStatus string

const (
	ItemStatusPending ItemStatus = "pending"
	ItemStatusDone    ItemStatus = "done"
	ItemStatusError   ItemStatus = "error"
	ItemStatusSkipped ItemStatus = "skipped"
)

// CheckpointRecord is the durable status entry for one item processed within
// one run. At most one live record exists per (run, item): a later write
// overwrites, never appends, so the ledger always reflects the latest outcome.
type CheckpointRecord struct {
	Key        string     `json:"key"` // Composite key: runID|itemPath
	RunID      string     `json:"run_id" badgerhold:"index"`
	ItemPath   string     `json:"item_path"`
	Status     ItemStatus `json:"status"`
	StatusCode int        `json:"status_code"`
	LatencyMs  int64      `json:"latency_ms"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// CheckpointKey builds the composite ledger key for a (run, item) pair
func CheckpointKey(runID, itemPath string) string {
	return fmt.Sprintf("%s|%s", runID, itemPath)
}

// Run marker names for the checkpoint store. The markers record which run is
// currently writing to the ledger and which run last completed cleanly.
const (
	MarkerCurrentRun    = "current_run"
	MarkerLastCompleted = "last_completed_run"
)

// RunMarker is a small keyed document holding a run id
type RunMarker struct {
	Name      string    `json:"name"`
	RunID     string    `json:"run_id"`
	UpdatedAt time.Time `json:"updated_at"`
}
