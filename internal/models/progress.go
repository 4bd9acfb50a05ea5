package models

// ProgressEventType tags one decoded event from a job's output stream
type ProgressEventType string

const (
	EventSyncProgress      ProgressEventType = "sync_progress"
	EventExtractProgress   ProgressEventType = "extraction_progress"
	EventResumeSkipSync    ProgressEventType = "resume_skip_sync"
	EventResumeSkipExtract ProgressEventType = "resume_skip_extract"
	EventProgress          ProgressEventType = "progress" // generic fallback (percent scanner)
	EventLog               ProgressEventType = "log"
	EventReport            ProgressEventType = "report"
	EventError             ProgressEventType = "error"
	EventResult            ProgressEventType = "result" // terminal event on the run stream
)

// ProgressEvent is the tagged union decoded from a job's mixed
// human/machine output. Counter events carry Done/Total (or Skipped),
// the rest carry a Message or Payload.
type ProgressEvent struct {
	Type    ProgressEventType `json:"type"`
	Done    int               `json:"done,omitempty"`
	Total   int               `json:"total,omitempty"`
	Percent int               `json:"percent,omitempty"`
	Skipped int               `json:"skipped,omitempty"`
	Message string            `json:"message,omitempty"`
	Payload string            `json:"payload,omitempty"`
}

// ProgressSnapshot is the compact "last known progress" persisted with an
// interrupted run's state so the UI can show where the job stopped.
type ProgressSnapshot struct {
	Phase string `json:"phase"` // "sync" or "extract"
	Done  int    `json:"done"`
	Total int    `json:"total"`
}
