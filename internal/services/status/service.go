// -----------------------------------------------------------------------
// Status service - read-only aggregation over ledger, registry and run state
// -----------------------------------------------------------------------

package status

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/interfaces"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/registry"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/runstate"
)

// Aggregate is the overall resumability/progress view of the current run
type Aggregate struct {
	CanResume bool   `json:"can_resume"`
	RunID     string `json:"run_id,omitempty"`
	Done      int    `json:"done"`
	Failed    int    `json:"failed"`
	Total     int    `json:"total"`
	SyncLimit int    `json:"sync_limit,omitempty"`
	IsBusy    bool   `json:"is_busy"`

	// size of the global sync manifest, read-only
	ManifestEntries int `json:"manifest_entries"`
}

// CaseStatus is the per-case view
type CaseStatus struct {
	CaseID    string              `json:"case_id"`
	IsRunning bool                `json:"is_running"`
	CanResume bool                `json:"can_resume"`
	State     *models.RunState    `json:"state,omitempty"`
	Active    *registry.ActiveRun `json:"active,omitempty"`
}

// Service answers the status endpoints. All reads are side-effect free and
// degrade to zero values when the backing stores are unreadable.
type Service struct {
	checkpoints interfaces.CheckpointStorage
	manifest    interfaces.ManifestStorage
	registry    *registry.Registry
	tracker     *runstate.Tracker
	logger      arbor.ILogger
}

// NewService creates the status service
func NewService(checkpoints interfaces.CheckpointStorage, manifest interfaces.ManifestStorage, reg *registry.Registry, tracker *runstate.Tracker, logger arbor.ILogger) *Service {
	return &Service{
		checkpoints: checkpoints,
		manifest:    manifest,
		registry:    reg,
		tracker:     tracker,
		logger:      logger,
	}
}

// Aggregate builds the overall status from the current run's ledger records
func (s *Service) Aggregate(ctx context.Context) *Aggregate {
	agg := &Aggregate{IsBusy: s.registry.IsBusy()}

	if s.manifest != nil {
		if count, err := s.manifest.CountEntries(ctx); err == nil {
			agg.ManifestEntries = count
		}
	}

	runID, err := s.checkpoints.GetCurrentRunID(ctx)
	if err != nil || runID == "" {
		return agg
	}
	agg.RunID = runID

	if canResume, err := s.checkpoints.CanResume(ctx, runID); err == nil {
		agg.CanResume = canResume
	}

	records, err := s.checkpoints.GetRecordsForRun(ctx, runID)
	if err != nil {
		s.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to read ledger for status")
		return agg
	}

	agg.Total = len(records)
	for i := range records {
		switch records[i].Status {
		case models.ItemStatusDone:
			agg.Done++
		case models.ItemStatusError:
			agg.Failed++
		}
	}

	// surface the sync limit of the interrupted run, if one is pending resume
	for _, state := range s.interruptedStates() {
		if state.RunID == runID {
			agg.SyncLimit = state.Params.SyncLimit
			break
		}
	}

	return agg
}

// ForCase builds the per-case status view
func (s *Service) ForCase(ctx context.Context, caseID string) *CaseStatus {
	status := &CaseStatus{CaseID: caseID}

	status.Active = s.registry.FindByCase(caseID)
	status.IsRunning = status.Active != nil
	status.State = s.tracker.Get(caseID)

	if s.tracker.IsResumable(caseID) && status.State != nil && status.State.Status == models.CaseStatusStopped {
		if canResume, err := s.checkpoints.CanResume(ctx, status.State.RunID); err == nil {
			status.CanResume = canResume
		}
	}

	return status
}

// interruptedStates returns the stopped run states across the resume-capable
// cases, as configured on the tracker
func (s *Service) interruptedStates() []models.RunState {
	var out []models.RunState
	for _, caseID := range s.tracker.ResumableCases() {
		if state := s.tracker.Get(caseID); state != nil && state.Status == models.CaseStatusStopped {
			out = append(out, *state)
		}
	}
	return out
}
