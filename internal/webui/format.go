// Package webui drives the exercise page from the wasm engine. It renders
// groups and the pool into the DOM, wires HTML5 drag and drop, and plays
// audio through a single <audio> element.
package webui

import (
	"fmt"
	"strconv"

	"github.com/felixgeelhaar/listenex/internal/domain"
	"github.com/felixgeelhaar/listenex/internal/engine"
)

// DOM event names and storage keys shared with the page.
const (
	ReadyEvent     = "listenex:ready"
	CompletedEvent = "listenex:completed"
	ResultKey      = "listenex:last-result"
	GlobalName     = "listenex"
)

// Element ids the page must provide.
const (
	idTitle       = "exerciseTitle"
	idGroups      = "groupsContainer"
	idPool        = "audioPool"
	idValidate    = "validateBtn"
	idScore       = "scoreDisplay"
	idVolume      = "volumeSlider"
	idVolumeValue = "volumeValue"
	idAudio       = "audioElement"
	idStatus      = "status"
)

// scoreText is the line shown in the score display.
func scoreText(s domain.Score) string {
	return fmt.Sprintf("Score: %d/%d (%d%%)", s.Correct, s.Total, s.Percentage)
}

// scoreClass is the CSS class list for the score display.
func scoreClass(s domain.Score) string {
	return "score " + string(s.Grade())
}

// completionDetail is the detail of the completed DOM event.
func completionDetail(c engine.Completion) map[string]any {
	return map[string]any{
		"title":       c.Title,
		"correct":     c.Correct,
		"total":       c.Total,
		"percentage":  c.Percentage,
		"grade":       string(c.Grade()),
		"completedAt": c.CompletedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// slotClass is the CSS class list for a slot.
func slotClass(s engine.SlotView) string {
	class := "audio-slot"
	if s.Occupant != nil {
		class += " occupied"
	}
	if s.Locked {
		class += " locked"
	}
	switch s.Verdict {
	case engine.VerdictCorrect:
		class += " correct"
	case engine.VerdictIncorrect:
		class += " incorrect"
	}
	return class
}

// itemClass is the CSS class list for an audio item.
func itemClass(it engine.ItemView) string {
	if it.Missing {
		return "audio-item missing"
	}
	return "audio-item"
}

// volumePercent converts a 0..1 volume to the slider scale.
func volumePercent(v float64) int {
	return int(v*100 + 0.5)
}

// parseVolume converts the slider value to 0..1; bad input reads as 0.
func parseVolume(s string) float64 {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return float64(max(0, min(n, 100))) / 100
}

// payloadFor is the drag payload for an item, either from the pool or from
// the slot it occupies.
func payloadFor(it engine.ItemView, from *engine.Slot) engine.DragPayload {
	item := engine.Item{AudioItem: domain.AudioItem{ID: it.ID, Source: it.Source, DisplayName: it.Label}}
	if from != nil {
		return engine.PlacedPayload{AudioItemID: it.ID, Item: item, From: *from}
	}
	return engine.PendingPayload{AudioItemID: it.ID, Item: item}
}
