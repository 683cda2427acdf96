package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrConsumerRunning is returned by Start on a consumer already started.
var ErrConsumerRunning = errors.New("consumer already running")

// ResultHandler receives a decoded completion. Returning an error requeues
// the message once; a redelivered message that fails again is dropped.
type ResultHandler func(ctx context.Context, msg *CompletionMessage) error

// ResultConsumer consumes completion reports from the results queue
type ResultConsumer struct {
	conn     *Connection
	handler  ResultHandler
	prefetch int

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewResultConsumer creates a result consumer
func NewResultConsumer(conn *Connection, handler ResultHandler) *ResultConsumer {
	return &ResultConsumer{conn: conn, handler: handler, prefetch: 10}
}

// Start begins consuming results
func (rc *ResultConsumer) Start(ctx context.Context) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.cancelFunc != nil {
		return ErrConsumerRunning
	}

	ch := rc.conn.Channel()
	if ch == nil {
		return ErrNotConnected
	}
	if err := ch.Qos(rc.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		ResultQueueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (manual ack for reliability)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start result consumer: %w", err)
	}

	ctx, rc.cancelFunc = context.WithCancel(ctx)
	rc.wg.Add(1)
	go rc.consume(ctx, msgs)

	slog.Info("consuming completion reports", "queue", ResultQueueName)
	return nil
}

func (rc *ResultConsumer) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	defer rc.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				slog.Info("result channel closed")
				return
			}
			rc.process(ctx, msg)
		}
	}
}

// process decodes and dispatches one delivery
func (rc *ResultConsumer) process(ctx context.Context, d amqp.Delivery) {
	var msg CompletionMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		slog.Error("failed to unmarshal completion", "error", err)
		// Reject without requeue for malformed messages
		_ = d.Reject(false)
		return
	}

	if err := rc.handler(ctx, &msg); err != nil {
		slog.Error("completion handler failed",
			"id", msg.ID,
			"redelivered", d.Redelivered,
			"error", err,
		)
		_ = d.Nack(false, !d.Redelivered)
		return
	}

	if err := d.Ack(false); err != nil {
		slog.Error("failed to ack completion", "id", msg.ID, "error", err)
	}
}

// Stop stops the result consumer
func (rc *ResultConsumer) Stop() {
	rc.mu.Lock()
	cancel := rc.cancelFunc
	rc.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	rc.wg.Wait()
}
