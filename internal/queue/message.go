package queue

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/listenex/internal/domain"
)

// ErrNotConnected is returned when publishing without an open channel.
var ErrNotConnected = errors.New("not connected to RabbitMQ")

// CompletionMessage is the wire form of one validated exercise.
type CompletionMessage struct {
	ID          uuid.UUID                `json:"id"`
	SessionID   uuid.UUID                `json:"session_id"`
	Title       string                   `json:"title"`
	Correct     int                      `json:"correct"`
	Total       int                      `json:"total"`
	Percentage  int                      `json:"percentage"`
	Grade       domain.Grade             `json:"grade"`
	Placements  []domain.PlacementRecord `json:"placements"`
	CompletedAt time.Time                `json:"completed_at"`
}

// NewCompletionMessage converts a completion event. The message id is the
// event id so redeliveries can be recognised.
func NewCompletionMessage(ev *domain.ExerciseCompletedEvent) *CompletionMessage {
	return &CompletionMessage{
		ID:          ev.EventID(),
		SessionID:   ev.AggregateID(),
		Title:       ev.Title,
		Correct:     ev.Score.Correct,
		Total:       ev.Score.Total,
		Percentage:  ev.Score.Percentage,
		Grade:       ev.Score.Grade(),
		Placements:  ev.Placements,
		CompletedAt: ev.OccurredAt().UTC(),
	}
}
