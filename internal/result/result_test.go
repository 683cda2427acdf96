package result

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/listenex/internal/domain"
)

func completedEvent() *domain.ExerciseCompletedEvent {
	placements := []domain.PlacementRecord{
		{AudioItemID: 1, Label: "Dog", GroupID: 1, SlotIndex: 0, CorrectGroupID: 1, Correct: true},
		{AudioItemID: 3, Label: "Bird", GroupID: 1, SlotIndex: 1, CorrectGroupID: 2},
		{AudioItemID: 2, Label: "Cat", GroupID: 2, SlotIndex: 0, CorrectGroupID: 1},
	}
	return domain.NewExerciseCompletedEvent(uuid.New(), "Farm", domain.NewScore(1, 3), placements)
}

func TestFromEvent(t *testing.T) {
	ev := completedEvent()
	r := FromEvent(ev)

	if r.Title != "Farm" || r.Score != 1 || r.Total != 3 || r.Percentage != 33 {
		t.Errorf("FromEvent() = %+v", r)
	}
	if !r.Timestamp.Equal(ev.OccurredAt()) {
		t.Errorf("Timestamp = %v; want %v", r.Timestamp, ev.OccurredAt())
	}
	if len(r.Placements) != 3 {
		t.Fatalf("placements = %d; want 3", len(r.Placements))
	}
	if p := r.Placements["1-1"]; p.AudioItemID != 3 || p.Correct {
		t.Errorf("placement 1-1 = %+v; want item 3, incorrect", p)
	}
	if r.Grade() != domain.GradePoor {
		t.Errorf("Grade() = %q; want poor", r.Grade())
	}
}

func TestJSONStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}

	if _, err := store.Load(ctx); !errors.Is(err, domain.ErrNoResult) {
		t.Errorf("Load() on empty store error = %v; want ErrNoResult", err)
	}

	first := FromEvent(completedEvent())
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	second := first
	second.Title = "Sky"
	second.Score = 3
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Title != "Sky" || got.Score != 3 {
		t.Errorf("Load() = %+v; want the latest record", got)
	}
	if got.Placements["2-0"].Label != "Cat" {
		t.Errorf("placements not kept: %+v", got.Placements)
	}
}

type memStore struct {
	mu    sync.Mutex
	last  *LastResult
	err   error
	saves int
}

func (m *memStore) Save(_ context.Context, r LastResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.err != nil {
		return m.err
	}
	m.last = &r
	return nil
}

func (m *memStore) Load(context.Context) (LastResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return LastResult{}, domain.ErrNoResult
	}
	return *m.last, nil
}

func TestRecorder(t *testing.T) {
	store := &memStore{}
	rec := NewRecorder(store, nil)
	var saved []LastResult
	rec.OnSaved(func(r LastResult) { saved = append(saved, r) })

	d := domain.NewEventDispatcher()
	rec.Attach(d)

	d.Publish(domain.NewExerciseStartedEvent(uuid.New(), &domain.ExerciseDocument{Title: "Farm"}))
	if store.saves != 0 {
		t.Errorf("started events should not be recorded")
	}

	d.Publish(completedEvent())
	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Title != "Farm" || got.Total != 3 {
		t.Errorf("recorded = %+v", got)
	}
	if len(saved) != 1 {
		t.Errorf("OnSaved calls = %d; want 1", len(saved))
	}
}

func TestRecorder_SaveFailureIsSwallowed(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	rec := NewRecorder(store, nil)
	called := false
	rec.OnSaved(func(LastResult) { called = true })

	rec.Handle(completedEvent())
	if store.saves != 1 {
		t.Errorf("saves = %d; want 1", store.saves)
	}
	if called {
		t.Error("OnSaved should not run after a failed save")
	}
}
