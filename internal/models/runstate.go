package models

import (
	"time"
)

// CaseRunStatus is the durable resumability state of one case
type CaseRunStatus string

const (
	CaseStatusRunning CaseRunStatus = "running"
	CaseStatusStopped CaseRunStatus = "stopped"
)

// RunState is the durable resumability snapshot for one case. It survives
// process restarts and has an independent lifecycle from checkpoint records:
// created when a job starts, rewritten on interruption, cleared on clean
// success or operator hard reset.
type RunState struct {
	CaseID       string            `json:"case_id"`
	Status       CaseRunStatus     `json:"status"`
	Params       RunParams         `json:"params"`
	RunID        string            `json:"run_id"`
	StartedAt    time.Time         `json:"started_at"`
	StoppedAt    *time.Time        `json:"stopped_at,omitempty"`
	LastProgress *ProgressSnapshot `json:"last_progress,omitempty"`
}
