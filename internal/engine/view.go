package engine

import "github.com/felixgeelhaar/listenex/internal/domain"

// Verdict is the per-slot outcome shown after validation.
type Verdict string

const (
	VerdictNone      Verdict = ""
	VerdictCorrect   Verdict = "correct"
	VerdictIncorrect Verdict = "incorrect"
)

// View is a snapshot of everything a renderer needs. It shares no memory
// with the engine.
type View struct {
	Title       string        `json:"title"`
	Phase       Phase         `json:"phase"`
	Groups      []GroupView   `json:"groups"`
	Pool        []ItemView    `json:"pool"`
	Hidden      int           `json:"hidden"`
	Playback    PlaybackView  `json:"playback"`
	CanValidate bool          `json:"canValidate"`
	Score       *domain.Score `json:"score,omitempty"`
}

// GroupView is one group panel.
type GroupView struct {
	ID              int        `json:"id"`
	BackgroundImage string     `json:"backgroundImage,omitempty"`
	Slots           []SlotView `json:"slots"`
}

// SlotView is one slot and its occupant, if any.
type SlotView struct {
	Slot
	Occupant *ItemView `json:"occupant,omitempty"`
	Locked   bool      `json:"locked"`
	Verdict  Verdict   `json:"verdict,omitempty"`
}

// ItemView renders an audio item in the pool or in a slot.
type ItemView struct {
	ID      int    `json:"id"`
	Label   string `json:"label"`
	Source  string `json:"source,omitempty"`
	Missing bool   `json:"missing"`
	Glyph   string `json:"glyph"`
}

// PlaybackView mirrors the playback controller.
type PlaybackView struct {
	ItemID int           `json:"itemId"`
	State  PlaybackState `json:"state"`
	Volume float64       `json:"volume"`
}

// Slot looks up a slot view by address.
func (v View) Slot(s Slot) (SlotView, bool) {
	for _, g := range v.Groups {
		if g.ID != s.GroupID {
			continue
		}
		if s.Index >= 0 && s.Index < len(g.Slots) {
			return g.Slots[s.Index], true
		}
	}
	return SlotView{}, false
}

// ViewDiff lists what changed between two views so renderers can update in
// place.
type ViewDiff struct {
	// Rebuild is set when the group layout itself changed (e.g. after a
	// reload); renderers should discard and redraw everything.
	Rebuild         bool
	Slots           []SlotView
	PoolAdded       []ItemView
	PoolRemoved     []int
	PoolChanged     []ItemView
	HiddenChanged   bool
	PhaseChanged    bool
	ScoreChanged    bool
	PlaybackChanged bool
}

// Empty reports whether nothing changed.
func (d ViewDiff) Empty() bool {
	return !d.Rebuild && len(d.Slots) == 0 && len(d.PoolAdded) == 0 &&
		len(d.PoolRemoved) == 0 && len(d.PoolChanged) == 0 &&
		!d.HiddenChanged && !d.PhaseChanged && !d.ScoreChanged && !d.PlaybackChanged
}

// Diff compares two views.
func Diff(prev, next View) ViewDiff {
	var d ViewDiff
	if prev.Title != next.Title || !sameLayout(prev.Groups, next.Groups) {
		d.Rebuild = true
		return d
	}

	for gi, g := range next.Groups {
		for si, s := range g.Slots {
			if !sameSlot(prev.Groups[gi].Slots[si], s) {
				d.Slots = append(d.Slots, s)
			}
		}
	}

	before := make(map[int]ItemView, len(prev.Pool))
	for _, it := range prev.Pool {
		before[it.ID] = it
	}
	after := make(map[int]struct{}, len(next.Pool))
	for _, it := range next.Pool {
		after[it.ID] = struct{}{}
		old, ok := before[it.ID]
		switch {
		case !ok:
			d.PoolAdded = append(d.PoolAdded, it)
		case old != it:
			d.PoolChanged = append(d.PoolChanged, it)
		}
	}
	for _, it := range prev.Pool {
		if _, ok := after[it.ID]; !ok {
			d.PoolRemoved = append(d.PoolRemoved, it.ID)
		}
	}

	d.HiddenChanged = prev.Hidden != next.Hidden
	d.PhaseChanged = prev.Phase != next.Phase || prev.CanValidate != next.CanValidate
	d.ScoreChanged = !sameScore(prev.Score, next.Score)
	d.PlaybackChanged = prev.Playback != next.Playback
	return d
}

func sameLayout(a, b []GroupView) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].BackgroundImage != b[i].BackgroundImage || len(a[i].Slots) != len(b[i].Slots) {
			return false
		}
	}
	return true
}

func sameSlot(a, b SlotView) bool {
	if a.Slot != b.Slot || a.Locked != b.Locked || a.Verdict != b.Verdict {
		return false
	}
	if a.Occupant == nil || b.Occupant == nil {
		return a.Occupant == nil && b.Occupant == nil
	}
	return *a.Occupant == *b.Occupant
}

func sameScore(a, b *domain.Score) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
