package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/lingua/internal/domain"
)

func TestStore_GetReturnsFreshRecord(t *testing.T) {
	store := New(NewMemoryBackend())

	p, err := store.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.UserID != "u1" || p.CurrentLevel != 1 || p.TotalXP != 0 {
		t.Errorf("unexpected fresh record: %+v", p)
	}

	users, _ := store.Users(context.Background())
	if len(users) != 0 {
		t.Errorf("Get should not persist, users = %v", users)
	}
}

func TestStore_EmptyUserID(t *testing.T) {
	store := New(NewMemoryBackend())

	if _, err := store.Get(context.Background(), ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Get(\"\") error = %v, want ErrInvalidInput", err)
	}
	_, err := store.Update(context.Background(), "", func(p *domain.UserProgress) error { return nil })
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Update(\"\") error = %v, want ErrInvalidInput", err)
	}
}

func TestStore_UpdatePersists(t *testing.T) {
	store := New(NewMemoryBackend())
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return fixed })
	ctx := context.Background()

	_, err := store.Update(ctx, "u1", func(p *domain.UserProgress) error {
		p.TotalXP = 40
		p.Topic("greetings").PhrasesLearned = 3
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	p, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.TotalXP != 40 {
		t.Errorf("TotalXP = %d, want 40", p.TotalXP)
	}
	if p.Topics["greetings"].PhrasesLearned != 3 {
		t.Errorf("PhrasesLearned = %d, want 3", p.Topics["greetings"].PhrasesLearned)
	}
	if !p.UpdatedAt.Equal(fixed) {
		t.Errorf("UpdatedAt = %v, want %v", p.UpdatedAt, fixed)
	}
}

func TestStore_UpdateErrorDiscards(t *testing.T) {
	store := New(NewMemoryBackend())
	ctx := context.Background()

	_, _ = store.Update(ctx, "u1", func(p *domain.UserProgress) error {
		p.TotalXP = 10
		return nil
	})

	boom := errors.New("boom")
	_, err := store.Update(ctx, "u1", func(p *domain.UserProgress) error {
		p.TotalXP = 999
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}

	p, _ := store.Get(ctx, "u1")
	if p.TotalXP != 10 {
		t.Errorf("TotalXP = %d, want 10 (failed update must not be saved)", p.TotalXP)
	}
}

func TestStore_ConcurrentUpdatesSameUser(t *testing.T) {
	store := New(NewMemoryBackend())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "u1", func(p *domain.UserProgress) error {
				p.TotalXP++
				return nil
			})
			if err != nil {
				t.Errorf("Update() error = %v", err)
			}
		}()
	}
	wg.Wait()

	p, _ := store.Get(ctx, "u1")
	if p.TotalXP != 50 {
		t.Errorf("TotalXP = %d, want 50 (lost updates)", p.TotalXP)
	}
	if len(store.locks.locks) != 0 {
		t.Errorf("lock table should be empty, has %d entries", len(store.locks.locks))
	}
}

func TestStore_UpdateHonoursContext(t *testing.T) {
	store := New(NewMemoryBackend())

	unlock, err := store.locks.lock(context.Background(), "u1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = store.Update(ctx, "u1", func(p *domain.UserProgress) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Update() error = %v, want DeadlineExceeded", err)
	}
}

func TestMemoryBackend_Isolation(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	p := domain.NewUserProgress("u1", time.Now())
	p.TotalXP = 5
	if err := backend.Save(ctx, p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	p.TotalXP = 100

	loaded, err := backend.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.TotalXP != 5 {
		t.Errorf("TotalXP = %d, want 5", loaded.TotalXP)
	}

	if _, err := backend.Load(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
	}
}
