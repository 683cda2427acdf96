package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Event Interface and Base Event
// -----------------------------------------------------------------------------

// Event represents a domain event
type Event interface {
	// EventID returns the unique identifier for this event
	EventID() uuid.UUID
	// EventType returns the type name of this event
	EventType() string
	// OccurredAt returns when this event occurred
	OccurredAt() time.Time
	// AggregateID returns the ID of the aggregate that produced this event
	AggregateID() uuid.UUID
}

// BaseEvent provides common event fields
type BaseEvent struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateUUID uuid.UUID `json:"aggregate_id"`
}

// NewBaseEvent creates a new BaseEvent
func NewBaseEvent(eventType string, aggregateID uuid.UUID) BaseEvent {
	return BaseEvent{
		ID:            uuid.New(),
		Type:          eventType,
		Timestamp:     time.Now(),
		AggregateUUID: aggregateID,
	}
}

func (e BaseEvent) EventID() uuid.UUID     { return e.ID }
func (e BaseEvent) EventType() string      { return e.Type }
func (e BaseEvent) OccurredAt() time.Time  { return e.Timestamp }
func (e BaseEvent) AggregateID() uuid.UUID { return e.AggregateUUID }

// -----------------------------------------------------------------------------
// Exercise Events
// -----------------------------------------------------------------------------

const (
	EventTypeExerciseStarted   = "exercise.started"
	EventTypeExerciseCompleted = "exercise.completed"
)

// ExerciseStartedEvent is published when an engine is initialised or
// reloaded with a document.
type ExerciseStartedEvent struct {
	BaseEvent
	Title      string `json:"title"`
	GroupCount int    `json:"group_count"`
	ItemCount  int    `json:"item_count"`
}

// NewExerciseStartedEvent creates an ExerciseStartedEvent for a play
// session identified by sessionID.
func NewExerciseStartedEvent(sessionID uuid.UUID, doc *ExerciseDocument) *ExerciseStartedEvent {
	return &ExerciseStartedEvent{
		BaseEvent:  NewBaseEvent(EventTypeExerciseStarted, sessionID),
		Title:      doc.Title,
		GroupCount: len(doc.Groups),
		ItemCount:  doc.TotalItems(),
	}
}

// ExerciseCompletedEvent is published once per session when the learner
// validates their placements.
type ExerciseCompletedEvent struct {
	BaseEvent
	Title      string            `json:"title"`
	Score      Score             `json:"score"`
	Placements []PlacementRecord `json:"placements"`
}

// NewExerciseCompletedEvent creates an ExerciseCompletedEvent.
func NewExerciseCompletedEvent(sessionID uuid.UUID, title string, score Score, placements []PlacementRecord) *ExerciseCompletedEvent {
	return &ExerciseCompletedEvent{
		BaseEvent:  NewBaseEvent(EventTypeExerciseCompleted, sessionID),
		Title:      title,
		Score:      score,
		Placements: placements,
	}
}

// -----------------------------------------------------------------------------
// Event Handler and Dispatcher
// -----------------------------------------------------------------------------

// EventHandler processes domain events
type EventHandler func(event Event)

// EventDispatcher manages event subscriptions and publishing
type EventDispatcher struct {
	mu          sync.RWMutex
	handlers    map[string][]EventHandler
	allHandlers []EventHandler // handlers for all events
}

// NewEventDispatcher creates a new event dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type
func (d *EventDispatcher) Subscribe(eventType string, handler EventHandler) {
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
	typed := append([]EventHandler(nil), d.handlers[event.EventType()]...)
	all := append([]EventHandler(nil), d.allHandlers...)
	d.mu.RUnlock()

	for _, h := range typed {
		h(event)
	}
	for _, h := range all {
		h(event)
	}
}
