//go:build integration

package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/felixgeelhaar/listenex/internal/domain"
	"github.com/felixgeelhaar/listenex/internal/queue"
)

// setupRabbitMQ creates a RabbitMQ container for testing
func setupRabbitMQ(t *testing.T) (string, func()) {
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management")
	if err != nil {
		t.Fatalf("failed to start RabbitMQ container: %v", err)
	}

	amqpURL, err := container.AmqpURL(ctx)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to get AMQP URL: %v", err)
	}

	cleanup := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return amqpURL, cleanup
}

func connect(t *testing.T) *queue.Connection {
	t.Helper()
	amqpURL, cleanup := setupRabbitMQ(t)
	t.Cleanup(cleanup)

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestIntegration_Connection_ConnectAndClose(t *testing.T) {
	conn := connect(t)
	if !conn.IsConnected() {
		t.Error("expected connection to be active")
	}
	if err := conn.Close(); err != nil {
		t.Errorf("failed to close connection: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}
}

func TestIntegration_Connection_InvalidURL(t *testing.T) {
	if _, err := queue.NewConnection("amqp://invalid:5672"); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestIntegration_Reporter_Publishes(t *testing.T) {
	conn := connect(t)
	reporter := queue.NewReporter(conn, queue.DefaultReporterConfig())

	d := domain.NewEventDispatcher()
	reporter.Attach(d)
	d.Publish(domain.NewExerciseCompletedEvent(uuid.New(), "Farm", domain.NewScore(2, 3), nil))
	reporter.Close()

	q, err := conn.Channel().QueueInspect(queue.ResultQueueName)
	if err != nil {
		t.Fatalf("failed to inspect queue: %v", err)
	}
	if q.Messages != 1 {
		t.Errorf("expected 1 message in queue, got %d", q.Messages)
	}
}

func TestIntegration_ReportAndConsume(t *testing.T) {
	conn := connect(t)
	reporter := queue.NewReporter(conn, queue.DefaultReporterConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	received := make(chan *queue.CompletionMessage, 2)
	consumer := queue.NewResultConsumer(conn, func(_ context.Context, msg *queue.CompletionMessage) error {
		received <- msg
		return nil
	})
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("failed to start consumer: %v", err)
	}
	defer consumer.Stop()

	if err := consumer.Start(ctx); err != queue.ErrConsumerRunning {
		t.Errorf("second Start() error = %v; want ErrConsumerRunning", err)
	}

	ev := domain.NewExerciseCompletedEvent(uuid.New(), "Sky", domain.NewScore(3, 3), []domain.PlacementRecord{
		{AudioItemID: 1, GroupID: 1, CorrectGroupID: 1, Correct: true},
	})
	if err := reporter.Report(ctx, queue.NewCompletionMessage(ev)); err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg.ID != ev.EventID() || msg.Title != "Sky" || msg.Percentage != 100 {
			t.Errorf("received %+v", msg)
		}
		if len(msg.Placements) != 1 || !msg.Placements[0].Correct {
			t.Errorf("placements = %+v", msg.Placements)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for the completion")
	}
}
