// Package result keeps the outcome of the most recently validated exercise.
// Each completion replaces the previous record.
package result

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/listenex/internal/domain"
)

// LastResult is the persisted record of one completion.
type LastResult struct {
	Timestamp  time.Time                         `json:"timestamp"`
	Title      string                            `json:"title"`
	Score      int                               `json:"score"`
	Total      int                               `json:"total"`
	Percentage int                               `json:"percentage"`
	Placements map[string]domain.PlacementRecord `json:"placements"`
}

// Store persists the last result. Load returns domain.ErrNoResult when no
// exercise has been completed yet.
type Store interface {
	Save(ctx context.Context, r LastResult) error
	Load(ctx context.Context) (LastResult, error)
}

// SlotKey identifies a slot in LastResult.Placements.
func SlotKey(groupID, index int) string {
	return fmt.Sprintf("%d-%d", groupID, index)
}

// FromEvent builds the record for a completion event.
func FromEvent(ev *domain.ExerciseCompletedEvent) LastResult {
	r := LastResult{
		Timestamp:  ev.OccurredAt().UTC(),
		Title:      ev.Title,
		Score:      ev.Score.Correct,
		Total:      ev.Score.Total,
		Percentage: ev.Score.Percentage,
		Placements: make(map[string]domain.PlacementRecord, len(ev.Placements)),
	}
	for _, p := range ev.Placements {
		r.Placements[SlotKey(p.GroupID, p.SlotIndex)] = p
	}
	return r
}

// Grade returns the display bucket for the record.
func (r LastResult) Grade() domain.Grade {
	return domain.Score{Correct: r.Score, Total: r.Total, Percentage: r.Percentage}.Grade()
}
