package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventRunStarted        EventType = "run_started"
	EventRunProgress       EventType = "run_progress"
	EventRunCompleted      EventType = "run_completed"
	EventScheduleTriggered EventType = "schedule_triggered"
	EventStatusChanged     EventType = "status_changed"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes an event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error
}
