// Package tui is the terminal player: a bubbletea program driving one
// engine with the keyboard.
package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/listenex/internal/engine"
)

const volumeStep = 0.1

// ViewMsg carries a fresh engine view into the program.
type ViewMsg struct{ View engine.View }

// CompletedMsg reports a finished validation.
type CompletedMsg struct{ Completion engine.Completion }

// PlaybackMsg reports a playback transition.
type PlaybackMsg struct{ Event engine.PlaybackEvent }

// toggledMsg is the outcome of a playback toggle run off the event loop.
type toggledMsg struct {
	label string
	err   error
}

// cursor addresses the pool (row 0) or a group's slots (row i+1).
type cursor struct {
	row int
	col int
}

// Model is the bubbletea model for one exercise.
type Model struct {
	ctx    context.Context
	eng    *engine.Engine
	view   engine.View
	cur    cursor
	held   engine.DragPayload
	status string
	width  int

	completion *engine.Completion
	quitting   bool
}

// NewModel builds a model over eng.
func NewModel(ctx context.Context, eng *engine.Engine) Model {
	return Model{ctx: ctx, eng: eng, view: eng.View()}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Completion returns the result once the exercise has been validated.
func (m Model) Completion() (engine.Completion, bool) {
	if m.completion == nil {
		return engine.Completion{}, false
	}
	return *m.completion, true
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case ViewMsg:
		m.view = msg.View
		m.clamp()
	case CompletedMsg:
		c := msg.Completion
		m.completion = &c
	case PlaybackMsg:
		if msg.Event.Kind == engine.EventFailed {
			m.status = "Could not play audio"
		}
	case toggledMsg:
		switch {
		case msg.err == nil:
		case errors.Is(msg.err, engine.ErrNoSource):
			m.status = "No audio for " + msg.label
		default:
			m.status = "Playback failed: " + msg.err.Error()
		}
		m.refresh()
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg.String() {
	case "q", "ctrl+c":
		m.eng.StopPlayback()
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		m.cur.row--
	case "down", "j":
		m.cur.row++
	case "left", "h":
		m.cur.col--
	case "right", "l":
		m.cur.col++
	case " ", "space":
		m.pickUp()
	case "enter":
		m.drop()
	case "x", "backspace":
		m.returnItem()
	case "esc":
		if m.held != nil {
			m.held = nil
			m.status = "Cancelled"
		}
	case "p":
		cmd = m.togglePlayback()
	case "+", "=":
		m.eng.SetVolume(m.view.Playback.Volume + volumeStep)
	case "-", "_":
		m.eng.SetVolume(m.view.Playback.Volume - volumeStep)
	case "v":
		m.validate()
	default:
		return m, nil
	}
	m.refresh()
	return m, cmd
}

// refresh pulls the engine state after a local action.
func (m *Model) refresh() {
	m.view = m.eng.View()
	if c, ok := m.eng.Completion(); ok {
		m.completion = &c
	}
	m.clamp()
}

func (m *Model) clamp() {
	rows := len(m.view.Groups) + 1
	m.cur.row = max(0, min(m.cur.row, rows-1))
	width := m.rowWidth(m.cur.row)
	m.cur.col = max(0, min(m.cur.col, width-1))
}

func (m *Model) rowWidth(row int) int {
	if row == 0 {
		return len(m.view.Pool)
	}
	return len(m.view.Groups[row-1].Slots)
}

// selected returns the item under the cursor and, for slot rows, its slot.
func (m *Model) selected() (item *engine.ItemView, slot *engine.SlotView) {
	if m.cur.row == 0 {
		if m.cur.col < len(m.view.Pool) {
			return &m.view.Pool[m.cur.col], nil
		}
		return nil, nil
	}
	g := m.view.Groups[m.cur.row-1]
	if m.cur.col >= len(g.Slots) {
		return nil, nil
	}
	s := g.Slots[m.cur.col]
	return s.Occupant, &s
}

func (m *Model) pickUp() {
	item, slot := m.selected()
	if item == nil {
		m.status = "Nothing to pick up here"
		return
	}
	if slot != nil {
		if slot.Locked {
			m.status = "Slots are locked"
			return
		}
		m.held = engine.PlacedPayload{AudioItemID: item.ID, From: slot.Slot}
	} else {
		m.held = engine.PendingPayload{AudioItemID: item.ID}
	}
	m.status = "Holding " + item.Label
}

func (m *Model) drop() {
	if m.held == nil {
		m.status = "Pick up an item with space first"
		return
	}
	held := m.held
	m.held = nil

	var res engine.DropResult
	if _, slot := m.selected(); slot != nil {
		res = m.eng.Drop(held, slot.Slot)
	} else if held.Kind() == engine.KindPlaced {
		res = m.eng.Return(held.ItemID())
	} else {
		m.status = "Cancelled"
		return
	}
	m.status = describe(res)
}

func (m *Model) returnItem() {
	item, slot := m.selected()
	if item == nil || slot == nil {
		return
	}
	m.status = describe(m.eng.Return(item.ID))
}

// togglePlayback runs as a command since loading a clip may take a while.
func (m *Model) togglePlayback() tea.Cmd {
	item, _ := m.selected()
	if item == nil {
		return nil
	}
	ctx, eng, id, label := m.ctx, m.eng, item.ID, item.Label
	return func() tea.Msg {
		return toggledMsg{label: label, err: eng.TogglePlayback(ctx, id)}
	}
}

func (m *Model) validate() {
	if !m.view.CanValidate {
		m.status = "Place every item before validating"
		return
	}
	c, err := m.eng.Validate()
	if err != nil {
		m.status = "Cannot validate: " + err.Error()
		return
	}
	m.completion = &c
	m.status = fmt.Sprintf("%d of %d correct", c.Correct, c.Total)
}

func describe(res engine.DropResult) string {
	switch res.Op {
	case engine.OpPlaced:
		return "Placed"
	case engine.OpDisplaced:
		return fmt.Sprintf("Placed; item %d went back to the pool", res.Evicted)
	case engine.OpMoved:
		return "Moved"
	case engine.OpSwapped:
		return "Swapped"
	case engine.OpReturned:
		return "Returned to the pool"
	case engine.OpNoOp:
		return ""
	case engine.OpLocked:
		return "Slots are locked"
	default:
		return "Ignored: " + res.Reason
	}
}

// Run plays eng in the terminal until the user quits. Engine notifications
// are forwarded into the program as messages.
func Run(ctx context.Context, eng *engine.Engine, opts ...tea.ProgramOption) (engine.Completion, bool, error) {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewModel(ctx, eng), opts...)

	// Listeners may fire from inside Update; push never blocks.
	fwd := newForwarder()
	eng.OnChange(func(v engine.View) { fwd.push(ViewMsg{View: v}) })
	eng.OnCompleted(func(c engine.Completion) { fwd.push(CompletedMsg{Completion: c}) })
	eng.OnPlayback(func(ev engine.PlaybackEvent) { fwd.push(PlaybackMsg{Event: ev}) })

	fwdCtx, stop := context.WithCancel(ctx)
	defer stop()
	go fwd.run(fwdCtx, p.Send)

	final, err := p.Run()
	if err != nil {
		return engine.Completion{}, false, fmt.Errorf("run terminal player: %w", err)
	}
	c, ok := final.(Model).Completion()
	return c, ok, nil
}
