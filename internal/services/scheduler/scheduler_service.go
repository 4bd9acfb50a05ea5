// -----------------------------------------------------------------------
// Scheduler service - cron-driven pipeline runs with audit trail
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/common"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/interfaces"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/registry"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/runner"
)

// Service implements SchedulerService. Schedules are persisted in storage;
// enabled ones are registered with cron using a per-entry CRON_TZ timezone.
// Triggers never queue: when any run is active the trigger is skipped and
// audited as such.
type Service struct {
	config   *common.Config
	storage  interfaces.ScheduleStorage
	audit    interfaces.AuditStorage
	runner   *runner.Service
	registry *registry.Registry
	events   interfaces.EventService
	cron     *cron.Cron
	logger   arbor.ILogger

	mu      sync.Mutex // protects entries and running
	entries map[string]cron.EntryID
	running bool
}

// NewService creates the scheduler service
func NewService(config *common.Config, storage interfaces.ScheduleStorage, audit interfaces.AuditStorage, runnerService *runner.Service, reg *registry.Registry, events interfaces.EventService, logger arbor.ILogger) interfaces.SchedulerService {
	return &Service{
		config:   config,
		storage:  storage,
		audit:    audit,
		runner:   runnerService,
		registry: reg,
		events:   events,
		cron:     cron.New(),
		logger:   logger,
		entries:  make(map[string]cron.EntryID),
	}
}

// Start registers every enabled persisted schedule and begins triggering
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	schedules, err := s.storage.ListSchedules(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	registered := 0
	for i := range schedules {
		schedule := schedules[i]
		if !schedule.Enabled {
			continue
		}
		if err := s.addCronEntry(&schedule); err != nil {
			s.logger.Error().Err(err).Str("schedule_id", schedule.ID).Msg("Failed to register schedule with cron")
			continue
		}
		registered++
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Int("registered", registered).
		Int("total", len(schedules)).
		Msg("Scheduler started")

	return nil
}

// Stop halts the scheduler. In-flight triggers finish on their own.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cron.Stop()
	s.running = false
	s.entries = make(map[string]cron.EntryID)

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if the scheduler is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CreateSchedule validates, persists and registers a new schedule
func (s *Service) CreateSchedule(ctx context.Context, schedule *models.Schedule) error {
	if err := schedule.Validate(s.config.Scheduler.Timezones); err != nil {
		return err
	}
	if err := s.checkDuplicateTrigger(ctx, schedule); err != nil {
		return err
	}

	if schedule.ID == "" {
		schedule.ID = common.NewScheduleID()
	}
	now := time.Now()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	if err := s.storage.SaveSchedule(ctx, schedule); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && schedule.Enabled {
		if err := s.addCronEntry(schedule); err != nil {
			return err
		}
	}

	s.logger.Info().
		Str("schedule_id", schedule.ID).
		Str("case_id", schedule.CaseID).
		Str("cron", schedule.Cron).
		Str("timezone", schedule.Timezone).
		Msg("Schedule created")

	return nil
}

// UpdateSchedule validates and persists changes, re-registering the cron entry
func (s *Service) UpdateSchedule(ctx context.Context, schedule *models.Schedule) error {
	existing, err := s.storage.GetSchedule(ctx, schedule.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("schedule %s not found", schedule.ID)
	}

	if err := schedule.Validate(s.config.Scheduler.Timezones); err != nil {
		return err
	}
	if err := s.checkDuplicateTrigger(ctx, schedule); err != nil {
		return err
	}

	schedule.CreatedAt = existing.CreatedAt
	schedule.UpdatedAt = time.Now()

	if err := s.storage.SaveSchedule(ctx, schedule); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCronEntry(schedule.ID)
	if s.running && schedule.Enabled {
		if err := s.addCronEntry(schedule); err != nil {
			return err
		}
	}

	s.logger.Info().Str("schedule_id", schedule.ID).Msg("Schedule updated")
	return nil
}

// DeleteSchedule removes a schedule and its cron entry
func (s *Service) DeleteSchedule(ctx context.Context, id string) error {
	if err := s.storage.DeleteSchedule(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	s.removeCronEntry(id)
	s.mu.Unlock()

	s.logger.Info().Str("schedule_id", id).Msg("Schedule deleted")
	return nil
}

// GetSchedule returns one schedule by id
func (s *Service) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	return s.storage.GetSchedule(ctx, id)
}

// ListSchedules returns all schedules
func (s *Service) ListSchedules(ctx context.Context) ([]models.Schedule, error) {
	return s.storage.ListSchedules(ctx)
}

// checkDuplicateTrigger rejects a schedule whose (cron, timezone) pair
// collides with a different existing schedule
func (s *Service) checkDuplicateTrigger(ctx context.Context, schedule *models.Schedule) error {
	existing, err := s.storage.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("failed to list schedules: %w", err)
	}
	for i := range existing {
		other := existing[i]
		if other.ID == schedule.ID {
			continue
		}
		if schedule.SameTrigger(&other) {
			return fmt.Errorf("schedule %s already fires at %q in %s", other.ID, schedule.Cron, schedule.Timezone)
		}
	}
	return nil
}

// addCronEntry registers the schedule's trigger. Caller holds s.mu.
func (s *Service) addCronEntry(schedule *models.Schedule) error {
	id := schedule.ID
	entryID, err := s.cron.AddFunc(schedule.CronSpec(), func() {
		s.trigger(id)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron entry for schedule %s: %w", id, err)
	}
	s.entries[id] = entryID
	return nil
}

// removeCronEntry drops the schedule's trigger if registered. Caller holds s.mu.
func (s *Service) removeCronEntry(id string) {
	if entryID, exists := s.entries[id]; exists {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}

// trigger fires one schedule: resolve the run scope, refuse to overlap an
// active run, execute the case, and append an audit entry whatever happens.
func (s *Service) trigger(scheduleID string) {
	ctx := context.Background()

	schedule, err := s.storage.GetSchedule(ctx, scheduleID)
	if err != nil || schedule == nil {
		s.logger.Warn().Str("schedule_id", scheduleID).Msg("Triggered schedule no longer exists")
		return
	}

	pairs := ResolveScope(schedule, s.config.Tenancy.Brands)

	// advisory: the authoritative admission check is the runner's slot claim,
	// this one exists to record the skip outcome instead of an error
	if s.registry.IsBusy() {
		s.appendAudit(ctx, schedule, models.TriggerSkipped, "another run is active", pairs, "")
		s.logger.Info().
			Str("schedule_id", schedule.ID).
			Str("case_id", schedule.CaseID).
			Msg("Schedule trigger skipped, another run is active")
		return
	}

	s.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventScheduleTriggered,
		Payload: map[string]interface{}{
			"schedule_id": schedule.ID,
			"case_id":     schedule.CaseID,
		},
	})

	// fired is recorded before the run so the audit log keeps a record of
	// every trigger attempt even if the process dies mid-run
	s.appendAudit(ctx, schedule, models.TriggerFired, "run started", pairs, "")

	params := models.RunParams{Pairs: pairs}
	result, err := s.runner.Execute(ctx, schedule.CaseID, models.OriginScheduled, params, nil)
	if err != nil {
		s.appendAudit(ctx, schedule, models.TriggerErrored, err.Error(), pairs, "")
		s.logger.Error().Err(err).
			Str("schedule_id", schedule.ID).
			Str("case_id", schedule.CaseID).
			Msg("Scheduled run failed to start")
		return
	}

	detail := fmt.Sprintf("exit code %d", result.ExitCode)
	if result.Interrupted {
		detail = "run interrupted"
	}
	s.appendAudit(ctx, schedule, models.TriggerCompleted, detail, pairs, result.RunID)

	s.logger.Info().
		Str("schedule_id", schedule.ID).
		Str("run_id", result.RunID).
		Int("exit_code", result.ExitCode).
		Msg("Scheduled run finished")
}

func (s *Service) appendAudit(ctx context.Context, schedule *models.Schedule, outcome models.TriggerOutcome, detail string, pairs []models.ScopePair, runID string) {
	entry := &models.AuditEntry{
		ScheduleID: schedule.ID,
		CaseID:     schedule.CaseID,
		Outcome:    outcome,
		Detail:     detail,
		Pairs:      pairs,
		RunID:      runID,
	}
	if err := s.audit.AppendEntry(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("schedule_id", schedule.ID).Msg("Failed to append audit entry")
	}
}

// ResolveScope intersects the schedule's brand/purchaser selections with the
// configured brand membership table. Empty selections mean "all". A schedule
// whose selections match nothing fires unscoped rather than silently no-op.
func ResolveScope(schedule *models.Schedule, brands map[string][]string) []models.ScopePair {
	selectedBrands := make(map[string]bool, len(schedule.Brands))
	for _, b := range schedule.Brands {
		selectedBrands[b] = true
	}
	selectedPurchasers := make(map[string]bool, len(schedule.Purchasers))
	for _, p := range schedule.Purchasers {
		selectedPurchasers[p] = true
	}

	var pairs []models.ScopePair
	for brand, purchasers := range brands {
		if len(selectedBrands) > 0 && !selectedBrands[brand] {
			continue
		}
		for _, purchaser := range purchasers {
			if len(selectedPurchasers) > 0 && !selectedPurchasers[purchaser] {
				continue
			}
			pairs = append(pairs, models.ScopePair{Brand: brand, Purchaser: purchaser})
		}
	}

	// map iteration order is random; keep the scope deterministic
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Brand != pairs[j].Brand {
			return pairs[i].Brand < pairs[j].Brand
		}
		return pairs[i].Purchaser < pairs[j].Purchaser
	})
	return pairs
}
