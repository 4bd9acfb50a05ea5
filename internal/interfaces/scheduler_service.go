package interfaces

import (
	"context"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
)

// SchedulerService manages cron-driven schedules and their trigger lifecycle
type SchedulerService interface {
	// Start registers all enabled schedules with cron and begins triggering
	Start() error

	// Stop halts the scheduler
	Stop() error

	// IsRunning returns true if the scheduler is active
	IsRunning() bool

	// CreateSchedule validates and persists a new schedule, registering it
	// with cron when the scheduler is running
	CreateSchedule(ctx context.Context, schedule *models.Schedule) error

	// UpdateSchedule validates and persists changes to an existing schedule
	UpdateSchedule(ctx context.Context, schedule *models.Schedule) error

	// DeleteSchedule removes a schedule and its cron entry
	DeleteSchedule(ctx context.Context, id string) error

	// GetSchedule returns one schedule by id
	GetSchedule(ctx context.Context, id string) (*models.Schedule, error)

	// ListSchedules returns all schedules
	ListSchedules(ctx context.Context) ([]models.Schedule, error)
}
