package result

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/listenex/internal/domain"
)

const saveTimeout = 5 * time.Second

// Recorder saves a LastResult for every completion published on a
// dispatcher. Save failures are logged and never reach the publisher.
type Recorder struct {
	store  Store
	logger *slog.Logger
	saved  func(LastResult)
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// OnSaved registers fn to run after each successful save.
func (r *Recorder) OnSaved(fn func(LastResult)) {
	r.saved = fn
}

// Attach subscribes the recorder to completion events.
func (r *Recorder) Attach(d *domain.EventDispatcher) {
	d.Subscribe(domain.EventTypeExerciseCompleted, r.Handle)
}

// Handle records ev if it is a completion event.
func (r *Recorder) Handle(ev domain.Event) {
	completed, ok := ev.(*domain.ExerciseCompletedEvent)
	if !ok {
		return
	}

	rec := FromEvent(completed)
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := r.store.Save(ctx, rec); err != nil {
		r.logger.Error("failed to save result", "title", rec.Title, "error", err)
		return
	}
	r.logger.Info("result saved", "title", rec.Title, "score", rec.Score, "total", rec.Total)
	if r.saved != nil {
		r.saved(rec)
	}
}
