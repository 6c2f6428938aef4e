package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/felixgeelhaar/lingua/internal/storage"
)

func TestNewStore_CreatesDirectory(t *testing.T) {
	newDir := filepath.Join(t.TempDir(), "subdir", "nested")

	store, err := NewStore(newDir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if store.basePath != newDir {
		t.Errorf("basePath = %v, want %v", store.basePath, newDir)
	}

	info, err := os.Stat(newDir)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory, got file")
	}
}

func TestStore_SaveLoad(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	ctx := context.Background()

	p := domain.NewUserProgress("ana", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	p.TotalXP = 120
	p.CurrentLevel = 2
	p.Topic("greetings").Status = domain.TopicInProgress

	if err := store.Save(ctx, p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load(ctx, "ana")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.TotalXP != 120 || loaded.CurrentLevel != 2 {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Topics["greetings"].Status != domain.TopicInProgress {
		t.Errorf("status = %q", loaded.Topics["greetings"].Status)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store, _ := NewStore(t.TempDir())

	_, err := store.Load(context.Background(), "nobody")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("Load() error = %v, want ErrUserNotFound", err)
	}
}

func TestStore_RejectsPathTraversal(t *testing.T) {
	store, _ := NewStore(t.TempDir())

	for _, id := range []string{"", "../etc", "a/b", ".hidden"} {
		if _, err := store.Load(context.Background(), id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Load(%q) error = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestStore_UsersSkipsTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir)
	ctx := context.Background()

	for _, id := range []string{"zoe", "ana"} {
		if err := store.Save(ctx, domain.NewUserProgress(id, time.Now())); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}
	os.WriteFile(filepath.Join(dir, ".progress-123"), []byte("{"), 0644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644)

	users, err := store.Users(ctx)
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	if len(users) != 2 || users[0] != "ana" || users[1] != "zoe" {
		t.Errorf("Users() = %v, want [ana zoe]", users)
	}
}

func TestStore_Delete(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	ctx := context.Background()

	store.Save(ctx, domain.NewUserProgress("ana", time.Now()))

	if err := store.Delete(ctx, "ana"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "ana"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestStore_WithProgressStore(t *testing.T) {
	backend, _ := NewStore(t.TempDir())
	store := storage.New(backend)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Update(ctx, "ana", func(p *domain.UserProgress) error {
			p.TotalXP += 10
			return nil
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}

	p, err := store.Get(ctx, "ana")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.TotalXP != 30 {
		t.Errorf("TotalXP = %d, want 30", p.TotalXP)
	}
}
