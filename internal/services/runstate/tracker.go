// -----------------------------------------------------------------------
// Run state tracker - durable resumability snapshot per case
// -----------------------------------------------------------------------

package runstate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/interfaces"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
)

// Tracker persists per-case run state in a single JSON document, surviving
// process restarts independently of the checkpoint ledger. Reads tolerate a
// missing or corrupt file by degrading to empty state; writes go through a
// temp file and atomic rename so a crash mid-write cannot truncate state.
type Tracker struct {
	path        string
	resumable   map[string]bool
	checkpoints interfaces.CheckpointStorage
	logger      arbor.ILogger
	mu          sync.Mutex
}

// NewTracker creates a run state tracker backed by the document at path.
// resumableCases is the fixed allow-list of case ids whose interrupted runs
// may be resumed; every other case has its state cleared on interruption.
func NewTracker(path string, resumableCases []string, checkpoints interfaces.CheckpointStorage, logger arbor.ILogger) *Tracker {
	resumable := make(map[string]bool, len(resumableCases))
	for _, caseID := range resumableCases {
		resumable[caseID] = true
	}

	return &Tracker{
		path:        path,
		resumable:   resumable,
		checkpoints: checkpoints,
		logger:      logger,
	}
}

// IsResumable reports whether a case is on the resume-capable allow-list
func (t *Tracker) IsResumable(caseID string) bool {
	return t.resumable[caseID]
}

// ResumableCases returns the resume-capable allow-list in sorted order.
// Consumers iterate this rather than carrying their own copy of the list.
func (t *Tracker) ResumableCases() []string {
	out := make([]string, 0, len(t.resumable))
	for caseID := range t.resumable {
		out = append(out, caseID)
	}
	sort.Strings(out)
	return out
}

// Get returns the persisted state for a case, or nil if none
func (t *Tracker) Get(caseID string) *models.RunState {
	t.mu.Lock()
	defer t.mu.Unlock()

	states := t.load()
	if state, exists := states[caseID]; exists {
		return &state
	}
	return nil
}

// MarkStarted records that a run of the case is in flight
func (t *Tracker) MarkStarted(caseID, runID string, params models.RunParams) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	states := t.load()
	states[caseID] = models.RunState{
		CaseID:    caseID,
		Status:    models.CaseStatusRunning,
		Params:    params,
		RunID:     runID,
		StartedAt: time.Now(),
	}
	return t.save(states)
}

// MarkInterrupted handles an interrupted run. Resume-capable cases keep a
// stopped snapshot with their last observed progress; all other cases have
// their state cleared; non-resumable job types never offer resume.
// Idempotent: interrupting an absent case leaves zero state behind.
func (t *Tracker) MarkInterrupted(caseID string, lastProgress *models.ProgressSnapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	states := t.load()

	if !t.resumable[caseID] {
		delete(states, caseID)
		t.logger.Info().Str("case_id", caseID).Msg("Interrupted non-resumable case, state cleared")
		return t.save(states)
	}

	state, exists := states[caseID]
	if !exists {
		return nil
	}
	now := time.Now()
	state.Status = models.CaseStatusStopped
	state.StoppedAt = &now
	if lastProgress != nil {
		state.LastProgress = lastProgress
	}
	states[caseID] = state

	t.logger.Info().
		Str("case_id", caseID).
		Str("run_id", state.RunID).
		Msg("Interrupted run state persisted for resume")

	return t.save(states)
}

// MarkCompleted handles a clean success: the case state is cleared and the
// checkpoint store's last-completed marker advances so the resumability rule
// reports this run as finished.
func (t *Tracker) MarkCompleted(ctx context.Context, caseID, runID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	states := t.load()
	delete(states, caseID)
	if err := t.save(states); err != nil {
		return err
	}

	if err := t.checkpoints.SetLastCompletedRunID(ctx, runID); err != nil {
		return fmt.Errorf("failed to advance last-completed marker: %w", err)
	}

	t.logger.Info().
		Str("case_id", caseID).
		Str("run_id", runID).
		Msg("Run completed cleanly, state cleared")

	return nil
}

// Clear removes state for a case (operator-issued hard reset)
func (t *Tracker) Clear(caseID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	states := t.load()
	delete(states, caseID)
	return t.save(states)
}

// load reads the state document. Missing or corrupt files degrade to empty
// state rather than failing the caller.
func (t *Tracker) load() map[string]models.RunState {
	states := make(map[string]models.RunState)

	data, err := os.ReadFile(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn().Err(err).Str("path", t.path).Msg("Run state read failed, degrading to empty")
		}
		return states
	}

	if err := json.Unmarshal(data, &states); err != nil {
		t.logger.Warn().Err(err).Str("path", t.path).Msg("Run state document corrupt, degrading to empty")
		return make(map[string]models.RunState)
	}

	return states
}

// save writes the state document atomically: temp file then rename
func (t *Tracker) save(states map[string]models.RunState) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("failed to create run state directory: %w", err)
	}

	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	tmpPath := t.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write run state temp file: %w", err)
	}
	if err := os.Rename(tmpPath, t.path); err != nil {
		return fmt.Errorf("failed to replace run state file: %w", err)
	}

	return nil
}
