package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventEpisodeCreated   EventType = "episode_created"
	EventEpisodeStage     EventType = "episode_stage"
	EventEpisodeCompleted EventType = "episode_completed"
	EventEpisodeFailed    EventType = "episode_failed"
)

// Event carries an episode lifecycle notification
type Event struct {
	Type    EventType
	Payload map[string]interface{}
}

// EventHandler processes a published event
type EventHandler func(ctx context.Context, event Event) error

// EventService is the notification contract for episode lifecycle changes.
// Terminal-state events are the push transport; polling the progress
// endpoint remains the fallback. Consumers needing consume-at-most-once
// semantics pair subscriptions with ConsumptionStorage.
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler) error
	Publish(ctx context.Context, event Event) error
	PublishSync(ctx context.Context, event Event) error
	Close() error
}
