package domain

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBaseEvent(t *testing.T) {
	aggregateID := uuid.New()
	event := NewBaseEvent("test.created", aggregateID)

	t.Run("EventID is unique", func(t *testing.T) {
		if event.EventID() == uuid.Nil {
			t.Error("EventID() should not be nil")
		}
		if other := NewBaseEvent("test.created", aggregateID); other.EventID() == event.EventID() {
			t.Error("EventID() repeated across events")
		}
	})

	t.Run("EventType", func(t *testing.T) {
		if event.EventType() != "test.created" {
			t.Errorf("EventType() = %q, want test.created", event.EventType())
		}
	})

	t.Run("OccurredAt is set", func(t *testing.T) {
		if event.OccurredAt().IsZero() {
			t.Error("OccurredAt() should not be zero")
		}
		if event.OccurredAt().After(time.Now()) {
			t.Error("OccurredAt() should not be in the future")
		}
	})

	t.Run("AggregateID", func(t *testing.T) {
		if event.AggregateID() != aggregateID {
			t.Errorf("AggregateID() = %v, want %v", event.AggregateID(), aggregateID)
		}
	})
}

func TestEventDispatcher(t *testing.T) {
	t.Run("Subscribe and Publish", func(t *testing.T) {
		dispatcher := NewEventDispatcher()
		var received Event

		dispatcher.Subscribe("test.event", func(e Event) {
			received = e
		})

		event := NewBaseEvent("test.event", uuid.New())
		dispatcher.Publish(event)

		if received == nil {
			t.Fatal("Event handler was not called")
		}
		if received.EventType() != "test.event" {
			t.Errorf("Received event type = %q, want test.event", received.EventType())
		}
	})

	t.Run("Multiple handlers run in subscription order", func(t *testing.T) {
		dispatcher := NewEventDispatcher()
		var order []int

		for i := 0; i < 3; i++ {
			dispatcher.Subscribe("test.event", func(e Event) {
				order = append(order, i)
			})
		}

		dispatcher.Publish(NewBaseEvent("test.event", uuid.New()))

		if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
			t.Errorf("Handler order = %v, want [0 1 2]", order)
		}
	})

	t.Run("SubscribeAll receives all events", func(t *testing.T) {
		dispatcher := NewEventDispatcher()
		var receivedEvents []Event
		mu := sync.Mutex{}

		dispatcher.SubscribeAll(func(e Event) {
			mu.Lock()
			receivedEvents = append(receivedEvents, e)
			mu.Unlock()
		})

		dispatcher.Publish(NewBaseEvent("event.type1", uuid.New()))
		dispatcher.Publish(NewBaseEvent("event.type2", uuid.New()))

		if len(receivedEvents) != 2 {
			t.Errorf("Received events count = %d, want 2", len(receivedEvents))
		}
	})

	t.Run("Unsubscribed events are ignored", func(t *testing.T) {
		dispatcher := NewEventDispatcher()
		called := false

		dispatcher.Subscribe("other.event", func(e Event) {
			called = true
		})

		dispatcher.Publish(NewBaseEvent("test.event", uuid.New()))

		if called {
			t.Error("Handler should not be called for unsubscribed event type")
		}
	})

	t.Run("Handler may subscribe during publish", func(t *testing.T) {
		dispatcher := NewEventDispatcher()
		calls := 0

		dispatcher.Subscribe("test.event", func(e Event) {
			calls++
			dispatcher.Subscribe("test.event", func(Event) { calls++ })
		})

		dispatcher.Publish(NewBaseEvent("test.event", uuid.New()))
		if calls != 1 {
			t.Errorf("calls after first publish = %d, want 1", calls)
		}
	})

	t.Run("Concurrent publish", func(t *testing.T) {
		dispatcher := NewEventDispatcher()
		var mu sync.Mutex
		count := 0
		dispatcher.SubscribeAll(func(Event) {
			mu.Lock()
			count++
			mu.Unlock()
		})

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				dispatcher.Publish(NewBaseEvent("test.event", uuid.New()))
			}()
		}
		wg.Wait()

		if count != 20 {
			t.Errorf("count = %d, want 20", count)
		}
	})
}

func TestExerciseEvents(t *testing.T) {
	sessionID := uuid.New()
	doc := &ExerciseDocument{
		Title: "Farm",
		Groups: []Group{
			{ID: 1, AudioItems: []AudioItem{{ID: 1}, {ID: 2}}},
			{ID: 2, AudioItems: []AudioItem{{ID: 3}}},
		},
	}

	t.Run("ExerciseStartedEvent", func(t *testing.T) {
		event := NewExerciseStartedEvent(sessionID, doc)

		if event.EventType() != EventTypeExerciseStarted {
			t.Errorf("EventType() = %q, want %q", event.EventType(), EventTypeExerciseStarted)
		}
		if event.AggregateID() != sessionID {
			t.Errorf("AggregateID() = %v, want %v", event.AggregateID(), sessionID)
		}
		if event.Title != "Farm" || event.GroupCount != 2 || event.ItemCount != 3 {
			t.Errorf("event = %+v", event)
		}
	})

	t.Run("ExerciseCompletedEvent", func(t *testing.T) {
		placements := []PlacementRecord{
			{AudioItemID: 1, GroupID: 1, SlotIndex: 0, CorrectGroupID: 1, Correct: true},
		}
		event := NewExerciseCompletedEvent(sessionID, "Farm", NewScore(1, 1), placements)

		if event.EventType() != EventTypeExerciseCompleted {
			t.Errorf("EventType() = %q, want %q", event.EventType(), EventTypeExerciseCompleted)
		}
		if event.Score.Percentage != 100 {
			t.Errorf("Score.Percentage = %d, want 100", event.Score.Percentage)
		}
		if len(event.Placements) != 1 || !event.Placements[0].Correct {
			t.Errorf("Placements = %+v", event.Placements)
		}
	})
}
