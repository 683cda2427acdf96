package tui

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/listenex/internal/bundle"
	"github.com/felixgeelhaar/listenex/internal/engine"
)

func newTestModel(t *testing.T, groups, perGroup int) Model {
	t.Helper()
	eng, err := engine.New(bundle.Example(groups, perGroup),
		engine.WithoutShuffle(), engine.WithReveal(engine.RevealAll, 0))
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return NewModel(context.Background(), eng)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "space":
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press feeds keys to m and runs any command they return, except quit.
func press(m Model, keys ...string) Model {
	for _, k := range keys {
		next, cmd := m.Update(key(k))
		m = next.(Model)
		if cmd == nil {
			continue
		}
		if msg := cmd(); msg != nil {
			if _, quit := msg.(tea.QuitMsg); !quit {
				next, _ = m.Update(msg)
				m = next.(Model)
			}
		}
	}
	return m
}

func TestModel_PlaceAndValidate(t *testing.T) {
	m := newTestModel(t, 2, 1)

	// Pool holds items 1 and 2 in order; item 1 belongs to group 1.
	m = press(m, "space", "down", "enter")
	if _, placed, _ := m.eng.Counts(); placed != 1 {
		t.Fatalf("placed = %d; want 1", placed)
	}
	if m.status != "Placed" {
		t.Errorf("status = %q; want %q", m.status, "Placed")
	}

	m = press(m, "up", "space", "down", "down", "enter")
	if !m.view.CanValidate {
		t.Fatal("every item is placed; CanValidate should be true")
	}

	m = press(m, "v")
	c, ok := m.Completion()
	if !ok {
		t.Fatal("expected a completion after v")
	}
	if c.Correct != 2 || c.Total != 2 || c.Percentage != 100 {
		t.Errorf("score = %d/%d (%d%%); want 2/2 (100%%)", c.Correct, c.Total, c.Percentage)
	}
	if !strings.Contains(m.View(), "Score: 2/2 (100%)") {
		t.Error("view should show the score")
	}
}

func TestModel_ValidateTooEarly(t *testing.T) {
	m := newTestModel(t, 2, 1)
	m = press(m, "v")
	if _, ok := m.Completion(); ok {
		t.Error("validation should not happen with items pending")
	}
	if m.status != "Place every item before validating" {
		t.Errorf("status = %q", m.status)
	}
}

func TestModel_ReturnAndCancel(t *testing.T) {
	m := newTestModel(t, 2, 1)
	m = press(m, "space", "down", "enter")

	m = press(m, "x")
	if pending, _, _ := m.eng.Counts(); pending != 2 {
		t.Errorf("pending after return = %d; want 2", pending)
	}

	m = press(m, "up", "space")
	if m.held == nil {
		t.Fatal("space on a pool item should pick it up")
	}
	m = press(m, "esc")
	if m.held != nil {
		t.Error("esc should drop the held item")
	}
	m = press(m, "enter")
	if m.status != "Pick up an item with space first" {
		t.Errorf("status = %q", m.status)
	}
}

func TestModel_MovePlacedItem(t *testing.T) {
	m := newTestModel(t, 2, 1)
	m = press(m, "space", "down", "enter")

	// Pick the item back up from group 1 and drop it in group 2.
	m = press(m, "space", "down", "enter")
	if m.status != "Moved" {
		t.Errorf("status = %q; want Moved", m.status)
	}
	g2, _ := m.view.Slot(engine.Slot{GroupID: 2, Index: 0})
	if g2.Occupant == nil || g2.Occupant.ID != 1 {
		t.Errorf("group 2 slot = %+v; want item 1", g2)
	}

	// A placed item dropped on the pool row goes back.
	m = press(m, "space", "up", "up", "enter")
	if m.status != "Returned to the pool" {
		t.Errorf("status = %q; want return", m.status)
	}
}

func TestModel_CursorClamps(t *testing.T) {
	m := newTestModel(t, 2, 1)
	m = press(m, "up", "left", "left")
	if m.cur != (cursor{}) {
		t.Errorf("cursor = %+v; want origin", m.cur)
	}
	m = press(m, "down", "down", "down", "down", "right", "right")
	if m.cur.row != 2 || m.cur.col != 0 {
		t.Errorf("cursor = %+v; want row 2 col 0", m.cur)
	}
}

func TestModel_Volume(t *testing.T) {
	m := newTestModel(t, 1, 1)
	before := m.view.Playback.Volume
	m = press(m, "-")
	if got := m.view.Playback.Volume; got >= before {
		t.Errorf("volume = %v; want below %v", got, before)
	}
	m = press(m, "+", "+")
	if got := m.view.Playback.Volume; got <= before {
		t.Errorf("volume = %v; want above %v", got, before)
	}
}

func TestModel_Playback(t *testing.T) {
	m := newTestModel(t, 1, 1)
	m = press(m, "p")
	if m.view.Playback.State != engine.PlaybackPlaying || m.view.Playback.ItemID != 1 {
		t.Errorf("playback = %+v; want item 1 playing", m.view.Playback)
	}
	m = press(m, "p")
	if m.view.Playback.State != engine.PlaybackPaused {
		t.Errorf("playback = %+v; want paused", m.view.Playback)
	}
}

func TestModel_Quit(t *testing.T) {
	m := newTestModel(t, 1, 1)
	next, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
	if next.(Model).View() != "" {
		t.Error("view should be empty after quitting")
	}
}

func TestModel_ViewMsg(t *testing.T) {
	m := newTestModel(t, 2, 1)
	m.cur = cursor{row: 0, col: 1}

	v := m.view
	v.Pool = v.Pool[:1]
	next, _ := m.Update(ViewMsg{View: v})
	m = next.(Model)
	if m.cur.col != 0 {
		t.Errorf("cursor col = %d; want clamped to 0", m.cur.col)
	}
}

func TestModel_PlaybackError(t *testing.T) {
	m := newTestModel(t, 1, 1)
	next, _ := m.Update(toggledMsg{label: "Dog", err: engine.ErrNoSource})
	if got := next.(Model).status; got != "No audio for Dog" {
		t.Errorf("status = %q", got)
	}
	next, _ = m.Update(toggledMsg{label: "Dog", err: errors.New("device busy")})
	if got := next.(Model).status; got != "Playback failed: device busy" {
		t.Errorf("status = %q", got)
	}
}

func TestForwarder_KeepsOrder(t *testing.T) {
	fwd := newForwarder()
	for i := 0; i < 5; i++ {
		fwd.push(i)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan tea.Msg, 10)
	go fwd.run(ctx, func(msg tea.Msg) { got <- msg })

	for want := 0; want < 5; want++ {
		select {
		case msg := <-got:
			if msg != want {
				t.Fatalf("message %d = %v", want, msg)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("message %d never delivered", want)
		}
	}
}

// byteReader hands out one byte per read so every key is its own message.
type byteReader struct{ data []byte }

func (r *byteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func TestRun_EngineMutationsDoNotBlock(t *testing.T) {
	tests := []struct {
		name   string
		keys   string
		placed int
	}{
		{"navigation only", "jkq", 0},
		{"drop", " j\rq", 1},
		{"drop, volume and playback", " j\r+-pq", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, err := engine.New(bundle.Example(2, 1),
				engine.WithoutShuffle(), engine.WithReveal(engine.RevealAll, 0))
			if err != nil {
				t.Fatal(err)
			}
			defer eng.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				_, _, err := Run(ctx, eng,
					tea.WithInput(&byteReader{data: []byte(tt.keys)}),
					tea.WithOutput(io.Discard))
				done <- err
			}()

			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("Run() error = %v", err)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("Run() did not return")
			}
			if _, placed, _ := eng.Counts(); placed != tt.placed {
				t.Errorf("placed = %d; want %d", placed, tt.placed)
			}
		})
	}
}
