package domain

import (
	"fmt"
	"strings"
	"time"
)

// ExerciseDocument describes one listening exercise: a title and the groups
// a learner sorts audio items into. Group order is presentation order only.
type ExerciseDocument struct {
	Title       string     `json:"title" validate:"max=200"`
	Groups      []Group    `json:"groups" validate:"dive"`
	GeneratedAt *time.Time `json:"generatedAt,omitempty"`
}

// Group is a bucket of slots. Every audio item originally listed under a
// group has that group as its correct answer, and the group exposes one slot
// per original item.
type Group struct {
	ID              int         `json:"id" validate:"gt=0"`
	BackgroundImage string      `json:"backgroundImage"`
	AudioItems      []AudioItem `json:"audioElements" validate:"dive"`
}

// AudioItem is a single playable clip.
type AudioItem struct {
	ID          int    `json:"id" validate:"gt=0"`
	Source      string `json:"fileName"`
	DisplayName string `json:"originalName"`
}

// HasBackground reports whether the group references a background image.
func (g Group) HasBackground() bool {
	return strings.TrimSpace(g.BackgroundImage) != ""
}

// SlotCount returns the number of slots the group exposes during play.
func (g Group) SlotCount() int {
	return len(g.AudioItems)
}

// Missing reports whether the item has no playable source.
func (a AudioItem) Missing() bool {
	return strings.TrimSpace(a.Source) == ""
}

// Label returns the text shown for the item in the pool and in slots.
func (a AudioItem) Label() string {
	name := strings.TrimSpace(a.DisplayName)
	if name == "" {
		name = fmt.Sprintf("Audio %d", a.ID)
	}
	if a.Missing() {
		return fmt.Sprintf("Missing audio (%s)", name)
	}
	return name
}

// TotalItems returns the number of audio items across all groups.
func (d *ExerciseDocument) TotalItems() int {
	total := 0
	for _, g := range d.Groups {
		total += len(g.AudioItems)
	}
	return total
}

// Group returns the group with the given id.
func (d *ExerciseDocument) Group(id int) (Group, bool) {
	for _, g := range d.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// HasSlot reports whether (groupID, index) addresses an existing slot.
func (d *ExerciseDocument) HasSlot(groupID, index int) bool {
	g, ok := d.Group(groupID)
	if !ok {
		return false
	}
	return index >= 0 && index < g.SlotCount()
}

// Clone returns a deep copy so callers cannot mutate a document held by an
// engine.
func (d *ExerciseDocument) Clone() ExerciseDocument {
	out := ExerciseDocument{
		Title:  d.Title,
		Groups: make([]Group, len(d.Groups)),
	}
	if d.GeneratedAt != nil {
		t := *d.GeneratedAt
		out.GeneratedAt = &t
	}
	for i, g := range d.Groups {
		items := make([]AudioItem, len(g.AudioItems))
		copy(items, g.AudioItems)
		out.Groups[i] = Group{
			ID:              g.ID,
			BackgroundImage: g.BackgroundImage,
			AudioItems:      items,
		}
	}
	return out
}
