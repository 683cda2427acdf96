package domain

import "math"

// Score is the aggregate outcome of a validated exercise.
type Score struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Grade buckets a percentage for display.
type Grade string

const (
	GradeGood Grade = "good"
	GradeFair Grade = "fair"
	GradePoor Grade = "poor"
)

// NewScore computes the rounded percentage. A zero total yields 0%.
func NewScore(correct, total int) Score {
	s := Score{Correct: correct, Total: total}
	if total > 0 {
		s.Percentage = int(math.Round(float64(correct) / float64(total) * 100))
	}
	return s
}

// Grade returns good for >=80%, fair for >=60%, poor otherwise.
func (s Score) Grade() Grade {
	switch {
	case s.Percentage >= 80:
		return GradeGood
	case s.Percentage >= 60:
		return GradeFair
	default:
		return GradePoor
	}
}

// PlacementRecord is the persisted/reported form of one placement.
type PlacementRecord struct {
	AudioItemID    int    `json:"audio_item_id"`
	Label          string `json:"label"`
	GroupID        int    `json:"group_id"`
	SlotIndex      int    `json:"slot_index"`
	CorrectGroupID int    `json:"correct_group_id"`
	Correct        bool   `json:"correct"`
}
