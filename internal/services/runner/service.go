// -----------------------------------------------------------------------
// Runner service - orchestrates pipeline worker runs end to end
// -----------------------------------------------------------------------

package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/common"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/interfaces"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/progress"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/registry"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/runstate"
)

var (
	// ErrUnknownCase means the requested case id has no template
	ErrUnknownCase = errors.New("unknown case")
	// ErrBusy means another run is active; storage is single-writer so
	// concurrent runs are refused rather than queued
	ErrBusy = errors.New("another run is already active")
	// ErrNotResumable means resume was requested for a case outside the
	// resume-capable set
	ErrNotResumable = errors.New("case does not support resume")
	// ErrNothingToResume means resume was requested but no interrupted run
	// is eligible
	ErrNothingToResume = errors.New("no interrupted run to resume")
)

// Service launches pipeline worker processes for named cases and drives the
// surrounding lifecycle: registry membership, run markers, resumability
// state, and event publication.
type Service struct {
	config      *common.Config
	templates   map[string]*models.CaseTemplate
	registry    *registry.Registry
	tracker     *runstate.Tracker
	checkpoints interfaces.CheckpointStorage
	events      interfaces.EventService
	logger      arbor.ILogger
}

// NewService builds the runner service. Built-in case templates are loaded
// first, then overrides from the configured cases directory.
func NewService(config *common.Config, reg *registry.Registry, tracker *runstate.Tracker, checkpoints interfaces.CheckpointStorage, events interfaces.EventService, logger arbor.ILogger) (*Service, error) {
	templates := DefaultTemplates()
	if err := LoadCaseOverrides(templates, config.Pipeline.CasesDir, logger); err != nil {
		return nil, err
	}

	return &Service{
		config:      config,
		templates:   templates,
		registry:    reg,
		tracker:     tracker,
		checkpoints: checkpoints,
		events:      events,
		logger:      logger,
	}, nil
}

// Template returns the template for a case id, or nil if unknown
func (s *Service) Template(caseID string) *models.CaseTemplate {
	return s.templates[caseID]
}

// Templates returns all known case templates sorted by id
func (s *Service) Templates() []models.CaseTemplate {
	out := make([]models.CaseTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Execute runs a case to completion. Decoded progress events are delivered
// to emit (may be nil) and published on the event bus. The call blocks until
// the worker exits; Stop cancels an in-flight run from another goroutine.
func (s *Service) Execute(ctx context.Context, caseID string, origin models.RunOrigin, params models.RunParams, emit progress.EmitFunc) (*models.RunResult, error) {
	template, exists := s.templates[caseID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCase, caseID)
	}
	if params.Resume && !template.Resumable {
		return nil, fmt.Errorf("%w: %s", ErrNotResumable, caseID)
	}

	// claim the execution slot before any side effects. The checkpoint
	// ledger and staging directory are single-writer, so any active run
	// blocks new ones; Register checks and claims under one lock so two
	// concurrent calls cannot both pass.
	active := &registry.ActiveRun{CaseID: caseID, Origin: origin, StartedAt: time.Now()}
	if err := s.registry.Register(active); err != nil {
		return nil, ErrBusy
	}

	runID, err := s.resolveRunID(ctx, template, params)
	if err != nil {
		s.registry.Unregister(caseID, origin)
		return nil, err
	}

	if err := s.tracker.MarkStarted(caseID, runID, params); err != nil {
		s.registry.Unregister(caseID, origin)
		return nil, fmt.Errorf("failed to persist run state: %w", err)
	}

	var lastProgress *models.ProgressSnapshot
	forward := func(event models.ProgressEvent) {
		switch event.Type {
		case models.EventSyncProgress:
			lastProgress = &models.ProgressSnapshot{Phase: "sync", Done: event.Done, Total: event.Total}
		case models.EventExtractProgress:
			lastProgress = &models.ProgressSnapshot{Phase: "extract", Done: event.Done, Total: event.Total}
		}
		if emit != nil {
			emit(event)
		}
		s.events.Publish(ctx, interfaces.Event{
			Type: interfaces.EventRunProgress,
			Payload: map[string]interface{}{
				"run_id":  runID,
				"case_id": caseID,
				"event":   event,
			},
		})
	}

	args := BuildArgs(template, params)
	handle, err := launch(ctx, runID, caseID, s.config.Pipeline.WorkerBin, args, forward, s.logger)
	if err != nil {
		s.registry.Unregister(caseID, origin)
		// no process ever ran: nothing to resume
		if clearErr := s.tracker.Clear(caseID); clearErr != nil {
			s.logger.Error().Err(clearErr).Str("run_id", runID).Msg("Failed to clear run state after spawn failure")
		}
		return nil, err
	}
	s.registry.Bind(caseID, origin, runID, handle)

	s.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventRunStarted,
		Payload: map[string]interface{}{
			"run_id":  runID,
			"case_id": caseID,
			"origin":  string(origin),
		},
	})

	<-handle.Done()
	s.registry.Unregister(caseID, origin)

	result := handle.Result()
	s.finishRun(ctx, template, runID, result, lastProgress)

	s.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventRunCompleted,
		Payload: map[string]interface{}{
			"run_id":      runID,
			"case_id":     caseID,
			"exit_code":   result.ExitCode,
			"interrupted": result.Interrupted,
			"success":     result.Success(),
		},
	})

	return result, nil
}

// Stop cancels the active run of a case. An empty origin matches any origin.
// Returns false if no matching run is active.
func (s *Service) Stop(caseID string, origin models.RunOrigin) (bool, error) {
	var active *registry.ActiveRun
	if origin == "" {
		active = s.registry.FindByCase(caseID)
	} else {
		active = s.registry.Find(caseID, origin)
	}
	if active == nil || active.Handle == nil {
		return false, nil
	}
	if err := active.Handle.Stop(); err != nil {
		return true, fmt.Errorf("failed to stop run %s: %w", active.RunID, err)
	}
	return true, nil
}

// resolveRunID produces the run identity. Fresh runs of resumable cases mint
// a new id and record it as the current-run marker; resumed runs reuse the
// marker so checkpoint records accumulate under one run. Non-resumable cases
// never touch the markers.
func (s *Service) resolveRunID(ctx context.Context, template *models.CaseTemplate, params models.RunParams) (string, error) {
	if !template.Resumable {
		return common.NewRunID(), nil
	}

	if params.Resume {
		runID, err := s.checkpoints.GetCurrentRunID(ctx)
		if err != nil || runID == "" {
			return "", ErrNothingToResume
		}
		eligible, err := s.checkpoints.CanResume(ctx, runID)
		if err != nil {
			return "", fmt.Errorf("failed to check resume eligibility: %w", err)
		}
		if !eligible {
			return "", ErrNothingToResume
		}
		return runID, nil
	}

	runID := common.NewRunID()
	if err := s.checkpoints.SetCurrentRunID(ctx, runID); err != nil {
		return "", fmt.Errorf("failed to set current run marker: %w", err)
	}
	return runID, nil
}

// finishRun applies the terminal state transition. Clean success clears
// state, advancing the last-completed marker for resumable cases. An
// interrupted run persists its snapshot so it can be resumed. A terminal
// failure (organic non-zero exit) clears run state: the partial ledger is
// kept for diagnosis, but retrying is an operator decision, not a resume.
func (s *Service) finishRun(ctx context.Context, template *models.CaseTemplate, runID string, result *models.RunResult, lastProgress *models.ProgressSnapshot) {
	if result.Success() {
		if template.Resumable {
			if err := s.tracker.MarkCompleted(ctx, template.ID, runID); err != nil {
				s.logger.Error().Err(err).Str("run_id", runID).Msg("Failed to finalize completed run")
			}
		} else if err := s.tracker.Clear(template.ID); err != nil {
			s.logger.Error().Err(err).Str("run_id", runID).Msg("Failed to clear run state")
		}
		return
	}

	if result.Interrupted {
		if err := s.tracker.MarkInterrupted(template.ID, lastProgress); err != nil {
			s.logger.Error().Err(err).Str("run_id", runID).Msg("Failed to persist interruption state")
		}
		return
	}

	if err := s.tracker.Clear(template.ID); err != nil {
		s.logger.Error().Err(err).Str("run_id", runID).Msg("Failed to clear run state after failure")
	}
}
