// -----------------------------------------------------------------------
// Run - one execution attempt of a pipeline case
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// RunOrigin identifies how a run was triggered
type RunOrigin string

const (
	OriginManual    RunOrigin = "manual"
	OriginScheduled RunOrigin = "scheduled"
)

// IsValidOrigin checks if a given RunOrigin is one of the valid constants
func IsValidOrigin(origin RunOrigin) bool {
	return origin == OriginManual || origin == OriginScheduled
}

// RunStatus represents the lifecycle state of a run
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusFailed      RunStatus = "failed"
	RunStatusInterrupted RunStatus = "interrupted"
)

// ScopePair is one (brand, purchaser) selection a run operates on
type ScopePair struct {
	Brand     string `json:"brand"`
	Purchaser string `json:"purchaser"`
}

// RunParams carries the caller-supplied parameters for a run.
// An empty Pairs slice means the run is unscoped (all brands/purchasers).
type RunParams struct {
	SyncLimit    int         `json:"sync_limit,omitempty"`
	ExtractLimit int         `json:"extract_limit,omitempty"`
	Pairs        []ScopePair `json:"pairs,omitempty"`
	Resume       bool        `json:"resume,omitempty"`
}

// Run represents one execution attempt of a pipeline case.
// Once a run reaches a terminal status it is never mutated again; its
// checkpoint records remain as history.
type Run struct {
	ID         string     `json:"id"`
	CaseID     string     `json:"case_id"`
	Origin     RunOrigin  `json:"origin"`
	Params     RunParams  `json:"params"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunResult is the terminal outcome of an orchestrated process run
type RunResult struct {
	RunID       string `json:"run_id"`
	CaseID      string `json:"case_id"`
	ExitCode    int    `json:"exit_code"`
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
	Command     string `json:"command"`
	Interrupted bool   `json:"interrupted"`
}

// Success reports whether the run finished cleanly: zero exit and not
// cancelled. Only a clean success clears resumable state downstream.
func (r *RunResult) Success() bool {
	return r.ExitCode == 0 && !r.Interrupted
}
