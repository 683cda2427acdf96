package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/listenex/internal/domain"
)

// Publisher sends a JSON document to a queue. *Connection implements it.
type Publisher interface {
	PublishJSON(ctx context.Context, queue string, data any) error
}

// ReporterConfig tunes delivery of completion reports.
type ReporterConfig struct {
	// MaxAttempts per message (default: 4)
	MaxAttempts int
	// InitialDelay before the first retry (default: 500ms)
	InitialDelay time.Duration
	// Timeout bounds one message including retries (default: 30s)
	Timeout time.Duration
	// MaxInFlight bounds concurrent deliveries (default: 2)
	MaxInFlight int

	Logger *slog.Logger
}

// DefaultReporterConfig returns the defaults used by the CLI.
func DefaultReporterConfig() ReporterConfig {
	return ReporterConfig{
		MaxAttempts:  4,
		InitialDelay: 500 * time.Millisecond,
		Timeout:      30 * time.Second,
		MaxInFlight:  2,
	}
}

// Reporter publishes a CompletionMessage for every completion event.
// Deliveries run in the background; Close waits for them.
type Reporter struct {
	pub     Publisher
	retrier retry.Retry[struct{}]
	breaker circuitbreaker.CircuitBreaker[struct{}]
	limiter bulkhead.Bulkhead[struct{}]
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewReporter creates a reporter publishing through pub.
func NewReporter(pub Publisher, cfg ReporterConfig) *Reporter {
	def := DefaultReporterConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = def.MaxInFlight
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := &Reporter{pub: pub, timeout: cfg.Timeout, logger: cfg.Logger}
	r.retrier = retry.New[struct{}](retry.Config{
		MaxAttempts:   cfg.MaxAttempts,
		InitialDelay:  cfg.InitialDelay,
		MaxDelay:      10 * time.Second,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable: func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
	})
	r.breaker = circuitbreaker.New[struct{}](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			r.logger.Warn("result reporting circuit changed", "from", from.String(), "to", to.String())
		},
	})
	r.limiter = bulkhead.New[struct{}](bulkhead.Config{
		MaxConcurrent: cfg.MaxInFlight,
		MaxQueue:      cfg.MaxInFlight * 4,
		QueueTimeout:  cfg.Timeout,
	})
	return r
}

// Attach subscribes the reporter to completion events.
func (r *Reporter) Attach(d *domain.EventDispatcher) {
	d.Subscribe(domain.EventTypeExerciseCompleted, r.Handle)
}

// Handle schedules delivery of ev if it is a completion event.
func (r *Reporter) Handle(ev domain.Event) {
	completed, ok := ev.(*domain.ExerciseCompletedEvent)
	if !ok {
		return
	}
	msg := NewCompletionMessage(completed)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Warn("reporter closed, dropping completion", "id", msg.ID)
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.Report(ctx, msg); err != nil {
			r.logger.Error("failed to report completion", "id", msg.ID, "title", msg.Title, "error", err)
		}
	}()
}

// Report publishes msg synchronously with retry.
func (r *Reporter) Report(ctx context.Context, msg *CompletionMessage) error {
	_, err := r.limiter.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return r.breaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
			return r.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, r.pub.PublishJSON(ctx, ResultQueueName, msg)
			})
		})
	})
	if err != nil {
		return fmt.Errorf("publish completion: %w", err)
	}
	r.logger.Info("completion reported", "id", msg.ID, "title", msg.Title, "correct", msg.Correct, "total", msg.Total)
	return nil
}

// Close waits for in-flight deliveries.
func (r *Reporter) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}
