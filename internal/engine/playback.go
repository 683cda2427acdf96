package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoSource is returned when toggling an item that has no playable source.
var ErrNoSource = errors.New("no audio loaded for item")

const (
	GlyphPlay  = "▶"
	GlyphPause = "⏸"

	DefaultVolume = 0.7
)

// Player is a single audio output. Play may block while the source loads;
// the engine never holds its lock across it. onEnded is called once when
// the source finishes on its own, never from inside Play and never after
// Stop.
type Player interface {
	Play(ctx context.Context, source string, onEnded func()) error
	Pause() error
	Resume(ctx context.Context) error
	Stop() error
	SetVolume(v float64)
	Close() error
}

// PlaybackState is the visual state of the play affordance.
type PlaybackState string

const (
	PlaybackIdle    PlaybackState = "idle"
	PlaybackPlaying PlaybackState = "playing"
	PlaybackPaused  PlaybackState = "paused"
)

// PlaybackEventKind names a playback transition.
type PlaybackEventKind string

const (
	EventPlaying PlaybackEventKind = "playing"
	EventPaused  PlaybackEventKind = "paused"
	EventResumed PlaybackEventKind = "resumed"
	EventStopped PlaybackEventKind = "stopped"
	EventEnded   PlaybackEventKind = "ended"
	EventFailed  PlaybackEventKind = "failed"
)

// PlaybackEvent reports one transition for one item.
type PlaybackEvent struct {
	Kind   PlaybackEventKind `json:"kind"`
	ItemID int               `json:"itemId"`
}

// PlayStart is a Play call prepared by Toggle. The caller runs it with Start
// and reports the outcome with Started.
type PlayStart struct {
	ItemID int
	Source string
	Gen    uint64
}

// PlaybackController enforces single-flight playback over one Player. It
// tracks at most one current item. It is not safe for concurrent use; the
// Engine serialises access. Start is the exception and only touches the
// Player.
type PlaybackController struct {
	player   Player
	log      *slog.Logger
	current  int
	state    PlaybackState
	gen      uint64
	starting uint64
	volume   float64
}

// NewPlaybackController wraps player. A nil player yields a controller whose
// playback is silent but whose state transitions still happen.
func NewPlaybackController(player Player, log *slog.Logger) *PlaybackController {
	if player == nil {
		player = nopPlayer{}
	}
	if log == nil {
		log = slog.Default()
	}
	c := &PlaybackController{
		player: player,
		log:    log,
		state:  PlaybackIdle,
		volume: DefaultVolume,
	}
	player.SetVolume(c.volume)
	return c
}

// Current returns the current item id and its state. The id is 0 when idle.
func (c *PlaybackController) Current() (int, PlaybackState) {
	return c.current, c.state
}

// Volume returns the output volume in [0, 1].
func (c *PlaybackController) Volume() float64 { return c.volume }

// Glyph returns the affordance glyph for itemID.
func (c *PlaybackController) Glyph(itemID int) string {
	if c.current == itemID && c.state == PlaybackPlaying {
		return GlyphPause
	}
	return GlyphPlay
}

// Toggle plays, pauses or resumes item. Starting a different item stops the
// current one first and returns a PlayStart; the returned events are in the
// order they happened.
func (c *PlaybackController) Toggle(ctx context.Context, item Item) ([]PlaybackEvent, *PlayStart, error) {
	if c.current == item.ID && c.state != PlaybackIdle {
		events, err := c.toggleCurrent(ctx)
		return events, nil, err
	}
	if item.Missing() {
		return nil, nil, fmt.Errorf("item %d: %w", item.ID, ErrNoSource)
	}

	events := c.Stop()

	c.gen++
	c.starting = c.gen
	c.current = item.ID
	c.state = PlaybackPlaying
	start := &PlayStart{ItemID: item.ID, Source: item.Source, Gen: c.gen}
	return append(events, PlaybackEvent{Kind: EventPlaying, ItemID: item.ID}), start, nil
}

// Start hands s to the player. onEnded receives the generation s was
// prepared with.
func (c *PlaybackController) Start(ctx context.Context, s *PlayStart, onEnded func(gen uint64)) error {
	return c.player.Play(ctx, s.Source, func() { onEnded(s.Gen) })
}

// Started applies the outcome of Start to whatever happened while the
// player was loading. A start that was superseded is stopped.
func (c *PlaybackController) Started(s *PlayStart, err error) []PlaybackEvent {
	if c.starting == s.Gen {
		c.starting = 0
	}
	current := s.Gen == c.gen
	if err != nil {
		if !current {
			return nil
		}
		c.log.Warn("audio playback rejected", "item_id", s.ItemID, "error", err)
		c.reset()
		return []PlaybackEvent{{Kind: EventFailed, ItemID: s.ItemID}}
	}
	if !current {
		if err := c.player.Stop(); err != nil {
			c.log.Warn("audio stop failed", "item_id", s.ItemID, "error", err)
		}
		return nil
	}
	if c.state == PlaybackPaused {
		if err := c.player.Pause(); err != nil {
			c.log.Warn("audio pause failed", "item_id", s.ItemID, "error", err)
		}
	}
	return nil
}

func (c *PlaybackController) toggleCurrent(ctx context.Context) ([]PlaybackEvent, error) {
	id := c.current
	if c.starting == c.gen {
		// Still loading; Started applies the state.
		if c.state == PlaybackPlaying {
			c.state = PlaybackPaused
			return []PlaybackEvent{{Kind: EventPaused, ItemID: id}}, nil
		}
		c.state = PlaybackPlaying
		return []PlaybackEvent{{Kind: EventResumed, ItemID: id}}, nil
	}
	switch c.state {
	case PlaybackPlaying:
		if err := c.player.Pause(); err != nil {
			c.log.Warn("audio pause failed", "item_id", id, "error", err)
			c.reset()
			return []PlaybackEvent{{Kind: EventFailed, ItemID: id}}, fmt.Errorf("pause item %d: %w", id, err)
		}
		c.state = PlaybackPaused
		return []PlaybackEvent{{Kind: EventPaused, ItemID: id}}, nil
	default:
		if err := c.player.Resume(ctx); err != nil {
			c.log.Warn("audio resume rejected", "item_id", id, "error", err)
			c.reset()
			return []PlaybackEvent{{Kind: EventFailed, ItemID: id}}, fmt.Errorf("resume item %d: %w", id, err)
		}
		c.state = PlaybackPlaying
		return []PlaybackEvent{{Kind: EventResumed, ItemID: id}}, nil
	}
}

// Ended handles a natural end for generation gen. Stale generations are
// ignored.
func (c *PlaybackController) Ended(gen uint64) ([]PlaybackEvent, bool) {
	if gen != c.gen || c.state == PlaybackIdle {
		return nil, false
	}
	id := c.current
	c.reset()
	return []PlaybackEvent{{Kind: EventEnded, ItemID: id}}, true
}

// Stop halts the current item, if any.
func (c *PlaybackController) Stop() []PlaybackEvent {
	if c.state == PlaybackIdle {
		return nil
	}
	id := c.current
	if err := c.player.Stop(); err != nil {
		c.log.Warn("audio stop failed", "item_id", id, "error", err)
	}
	c.reset()
	return []PlaybackEvent{{Kind: EventStopped, ItemID: id}}
}

// SetVolume clamps v to [0, 1] and applies it.
func (c *PlaybackController) SetVolume(v float64) float64 {
	switch {
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	c.volume = v
	c.player.SetVolume(v)
	return v
}

// Close stops playback and releases the player.
func (c *PlaybackController) Close() []PlaybackEvent {
	events := c.Stop()
	if err := c.player.Close(); err != nil {
		c.log.Warn("audio player close failed", "error", err)
	}
	return events
}

func (c *PlaybackController) reset() {
	c.gen++
	c.current = 0
	c.state = PlaybackIdle
}

type nopPlayer struct{}

func (nopPlayer) Play(context.Context, string, func()) error { return nil }
func (nopPlayer) Pause() error                               { return nil }
func (nopPlayer) Resume(context.Context) error               { return nil }
func (nopPlayer) Stop() error                                { return nil }
func (nopPlayer) SetVolume(float64)                          {}
func (nopPlayer) Close() error                               { return nil }
