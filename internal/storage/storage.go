// Package storage provides the per-user progress store and its backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/lingua/internal/domain"
)

// Backend persists whole progress records keyed by user id
type Backend interface {
	// Load returns domain.ErrUserNotFound when the user has no record
	Load(ctx context.Context, userID string) (*domain.UserProgress, error)
	Save(ctx context.Context, p *domain.UserProgress) error
	Users(ctx context.Context) ([]string, error)
}

// ProgressStore is the read-modify-write contract used by the services
type ProgressStore interface {
	Get(ctx context.Context, userID string) (*domain.UserProgress, error)
	Update(ctx context.Context, userID string, fn func(p *domain.UserProgress) error) (*domain.UserProgress, error)
	Users(ctx context.Context) ([]string, error)
}

// Store serializes writers per user on top of a Backend
type Store struct {
	backend Backend
	locks   *userLocks
	now     func() time.Time
}

// Ensure Store implements ProgressStore
var _ ProgressStore = (*Store)(nil)

// New creates a store over the given backend
func New(backend Backend) *Store {
	return &Store{
		backend: backend,
		locks:   newUserLocks(),
		now:     time.Now,
	}
}

// SetClock overrides the time source (tests)
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Get returns the user's record, or a fresh one if none is stored yet
func (s *Store) Get(ctx context.Context, userID string) (*domain.UserProgress, error) {
	if userID == "" {
		return nil, domain.Invalidf("user id is required")
	}
	return s.load(ctx, userID)
}

// Update loads, mutates and saves the user's record while holding the
// user's write lock. If fn returns an error nothing is saved.
func (s *Store) Update(ctx context.Context, userID string, fn func(p *domain.UserProgress) error) (*domain.UserProgress, error) {
	if userID == "" {
		return nil, domain.Invalidf("user id is required")
	}

	unlock, err := s.locks.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := fn(p); err != nil {
		return nil, err
	}

	p.UpdatedAt = s.now()
	if err := s.backend.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save progress: %w", err)
	}

	return p, nil
}

// Users lists users with a stored record
func (s *Store) Users(ctx context.Context) ([]string, error) {
	return s.backend.Users(ctx)
}

func (s *Store) load(ctx context.Context, userID string) (*domain.UserProgress, error) {
	p, err := s.backend.Load(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.NewUserProgress(userID, s.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	p.Normalize()
	return p, nil
}

// userLocks hands out one semaphore per user, dropped when unused
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sem  chan struct{}
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

func (l *userLocks) lock(ctx context.Context, userID string) (func(), error) {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{sem: make(chan struct{}, 1)}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	select {
	case ul.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(userID, ul)
		return nil, ctx.Err()
	}

	return func() {
		<-ul.sem
		l.release(userID, ul)
	}, nil
}

func (l *userLocks) release(userID string, ul *userLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ul.refs--
	if ul.refs == 0 {
		delete(l.locks, userID)
	}
}
