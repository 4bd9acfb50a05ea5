package models

import (
	"time"
)

// TriggerOutcome classifies one scheduler trigger attempt
type TriggerOutcome string

const (
	// TriggerFired is appended when the trigger launches a run, before the
	// run finishes, so a crash mid-run still leaves a record of the attempt
	TriggerFired     TriggerOutcome = "fired"
	TriggerSkipped   TriggerOutcome = "skipped"
	TriggerErrored   TriggerOutcome = "errored"
	TriggerCompleted TriggerOutcome = "completed"
)

// AuditEntry is one append-only record of a scheduler trigger attempt.
// Entries are never updated or deleted.
type AuditEntry struct {
	ID         string         `json:"id"`
	ScheduleID string         `json:"schedule_id" badgerhold:"index"`
	CaseID     string         `json:"case_id"`
	Outcome    TriggerOutcome `json:"outcome"`
	Detail     string         `json:"detail,omitempty"`
	Pairs      []ScopePair    `json:"pairs,omitempty"`
	RunID      string         `json:"run_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
