package engine

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/listenex/internal/domain"
)

// RevealMode controls how the pending pool is shown.
type RevealMode string

const (
	// RevealSequential shows one pending item at a time and reveals the
	// next one a short delay after the visible item is placed.
	RevealSequential RevealMode = "sequential"
	// RevealAll shows the whole pool at once.
	RevealAll RevealMode = "all"

	DefaultRevealDelay = time.Second
)

// ParseRevealMode maps a config value to a RevealMode, defaulting to
// sequential.
func ParseRevealMode(s string) RevealMode {
	if RevealMode(s) == RevealAll {
		return RevealAll
	}
	return RevealSequential
}

type options struct {
	player      Player
	logger      *slog.Logger
	rand        *rand.Rand
	shuffle     bool
	revealMode  RevealMode
	revealDelay time.Duration
	dispatcher  *domain.EventDispatcher
	sessionID   uuid.UUID
	now         func() time.Time
}

func defaultOptions() options {
	return options{
		logger:      slog.Default(),
		shuffle:     true,
		revealMode:  RevealSequential,
		revealDelay: DefaultRevealDelay,
		now:         time.Now,
	}
}

// Option configures an Engine.
type Option func(*options)

// WithPlayer sets the audio output. Without it playback is silent.
func WithPlayer(p Player) Option {
	return func(o *options) { o.player = p }
}

// WithLogger sets the logger used for fail-soft diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRand sets the pool shuffle source.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rand = r }
}

// WithoutShuffle keeps the pool in document order.
func WithoutShuffle() Option {
	return func(o *options) { o.shuffle = false }
}

// WithReveal sets the reveal mode and, for sequential mode, the delay
// before the next item appears. A zero delay reveals immediately.
func WithReveal(mode RevealMode, delay time.Duration) Option {
	return func(o *options) {
		o.revealMode = mode
		if delay >= 0 {
			o.revealDelay = delay
		}
	}
}

// WithDispatcher publishes exercise events to d.
func WithDispatcher(d *domain.EventDispatcher) Option {
	return func(o *options) { o.dispatcher = d }
}

// WithSessionID sets the aggregate id used on published events.
func WithSessionID(id uuid.UUID) Option {
	return func(o *options) { o.sessionID = id }
}

// WithClock overrides the completion timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
