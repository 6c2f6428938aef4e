package achievement

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/felixgeelhaar/lingua/internal/storage"
)

func newTestService() (*Service, *storage.Store) {
	store := storage.New(storage.NewMemoryBackend())
	svc := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	return svc, store
}

func TestService_HandleStoresOnce(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	ev := event(domain.EventLevelCompleted)
	ev.Level = 1

	earned, err := svc.Handle(ctx, ev)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(earned) != 1 || earned[0].ID != "level-1" || earned[0].Description == "" {
		t.Fatalf("earned = %+v", earned)
	}

	again, err := svc.Handle(ctx, ev)
	if err != nil {
		t.Fatalf("second Handle() error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("replayed event earned %+v", again)
	}

	p, _ := store.Get(ctx, "ana")
	if len(p.Achievements) != 1 {
		t.Errorf("stored achievements = %d; want 1", len(p.Achievements))
	}
}

func TestService_RemindersAreNotStored(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	ev := event(domain.EventReviewsDue)
	ev.Value = 3
	earned, err := svc.Handle(ctx, ev)
	if err != nil || len(earned) != 0 {
		t.Fatalf("Handle() = %+v, %v", earned, err)
	}

	p, _ := store.Get(ctx, "ana")
	if len(p.Achievements) != 0 {
		t.Error("reminder must not be stored as a badge")
	}
	recent := svc.Recent("ana")
	if len(recent) != 1 || recent[0].Type != BadgeReviewsDue {
		t.Errorf("Recent() = %+v", recent)
	}
}

func TestService_SubscribeAndRecent(t *testing.T) {
	svc, _ := newTestService()
	d := domain.NewEventDispatcher()
	svc.Subscribe(d)

	streak := event(domain.EventStreakMilestone)
	streak.Value = 7
	level := event(domain.EventLevelCompleted)
	level.Level = 2
	d.PublishAll([]domain.Event{streak, level})

	recent := svc.Recent("ana")
	if len(recent) != 2 {
		t.Fatalf("len(Recent()) = %d; want 2", len(recent))
	}
	if recent[0].Type != BadgeLevelComplete {
		t.Errorf("newest = %s; want level_complete", recent[0].Type)
	}
}

func TestService_IgnoresAnonymousEvents(t *testing.T) {
	svc, _ := newTestService()
	ev := event(domain.EventLevelCompleted)
	ev.UserID = ""

	earned, err := svc.Handle(context.Background(), ev)
	if err != nil || earned != nil {
		t.Errorf("Handle() = %+v, %v", earned, err)
	}
}
