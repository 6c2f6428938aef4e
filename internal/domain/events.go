package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Learning Events
// -----------------------------------------------------------------------------

// EventType names a learning event
type EventType string

const (
	EventTopicStarted     EventType = "topic.started"
	EventTopicCompleted   EventType = "topic.completed"
	EventLevelCompleted   EventType = "level.completed"
	EventStreakMilestone  EventType = "streak.milestone"
	EventLevelUp          EventType = "xp.level_up"
	EventSessionCompleted EventType = "session.completed"
	EventReviewsDue       EventType = "reviews.due"
)

// Event is a fact about a learner's progress. Value carries the event's
// number: the milestone days, the new XP level, the due count.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id"`
	TopicID    string    `json:"topic_id,omitempty"`
	Level      int       `json:"level,omitempty"`
	Value      int       `json:"value,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent creates an event stamped with a fresh id
func NewEvent(eventType EventType, userID string, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: at,
	}
}

// RoutingKey is the key used when the event leaves the process
func (e Event) RoutingKey() string {
	return "lingua." + string(e.Type)
}

// Achievement is a user-visible badge derived from an event
type Achievement struct {
	ID          string    `json:"id"`
	Kind        EventType `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	EarnedAt    time.Time `json:"earned_at"`
}

// -----------------------------------------------------------------------------
// Event Handler and Dispatcher
// -----------------------------------------------------------------------------

// EventPublisher accepts events for delivery
type EventPublisher interface {
	Publish(event Event)
}

// Ensure EventDispatcher implements EventPublisher
var _ EventPublisher = (*EventDispatcher)(nil)

// EventHandler processes learning events
type EventHandler func(event Event)

// EventDispatcher fans events out to in-process subscribers
type EventDispatcher struct {
	mu          sync.RWMutex
	handlers    map[EventType][]EventHandler
	allHandlers []EventHandler
}

// NewEventDispatcher creates a new event dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[EventType][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type
func (d *EventDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (d *EventDispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allHandlers = append(d.allHandlers, handler)
}

// Publish dispatches an event to all registered handlers
func (d *EventDispatcher) Publish(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, h := range d.handlers[event.Type] {
		h(event)
	}
	for _, h := range d.allHandlers {
		h(event)
	}
}

// PublishAll dispatches events in order
func (d *EventDispatcher) PublishAll(events []Event) {
	for _, event := range events {
		d.Publish(event)
	}
}
