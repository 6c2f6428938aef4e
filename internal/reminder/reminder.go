// Package reminder publishes reviews.due events for learners with phrases
// waiting for review, once an hour inside the notification window.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/felixgeelhaar/lingua/internal/domain"
)

// Default notification window, local hours inclusive
const (
	DefaultStartHour = 8
	DefaultEndHour   = 21
)

// Config controls when reminders go out
type Config struct {
	StartHour int
	EndHour   int
	// MaxCount caps the due count reported in one reminder; 0 means no cap
	MaxCount int
	Location *time.Location
}

func DefaultConfig() Config {
	return Config{
		StartHour: DefaultStartHour,
		EndHour:   DefaultEndHour,
		Location:  time.Local,
	}
}

// Users lists learners with a stored progress record
type Users interface {
	Users(ctx context.Context) ([]string, error)
}

// DueCounter reports how many review items are due for a learner
type DueCounter interface {
	DueCount(ctx context.Context, userID string) (int, error)
}

// Scheduler runs the hourly reminder check
type Scheduler struct {
	scheduler *gocron.Scheduler
	users     Users
	due       DueCounter
	events    domain.EventPublisher
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

func New(users Users, due DueCounter, events domain.EventPublisher, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		users:     users,
		due:       due,
		events:    events,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Start schedules the hourly check and returns immediately
func (s *Scheduler) Start() error {
	s.scheduler.SingletonModeAll()
	if _, err := s.scheduler.Every(1).Hour().Do(s.tick); err != nil {
		return fmt.Errorf("schedule reminders: %w", err)
	}
	s.scheduler.StartAsync()
	s.logger.Info("reminders scheduled", "start_hour", s.cfg.StartHour, "end_hour", s.cfg.EndHour)
	return nil
}

// Stop terminates the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sent, err := s.Check(ctx)
	if err != nil {
		s.logger.Error("reminder check failed", "error", err)
		return
	}
	if sent > 0 {
		s.logger.Info("reminders sent", "count", sent)
	}
}

// Check publishes a reminder for every learner with due items, provided the
// current hour is inside the window. It returns how many were published.
func (s *Scheduler) Check(ctx context.Context) (int, error) {
	hour := s.now().In(s.cfg.Location).Hour()
	if !InWindow(hour, s.cfg.StartHour, s.cfg.EndHour) {
		s.logger.Debug("outside notification hours", "hour", hour)
		return 0, nil
	}

	users, err := s.users.Users(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	sent := 0
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		ok, err := s.remind(ctx, userID)
		if err != nil {
			s.logger.Warn("due count failed", "user_id", userID, "error", err)
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

// RemindUser checks a single learner regardless of the window
func (s *Scheduler) RemindUser(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, domain.Invalidf("user id is required")
	}
	return s.remind(ctx, userID)
}

func (s *Scheduler) remind(ctx context.Context, userID string) (bool, error) {
	n, err := s.due.DueCount(ctx, userID)
	if err != nil || n == 0 {
		return false, err
	}
	if s.cfg.MaxCount > 0 && n > s.cfg.MaxCount {
		n = s.cfg.MaxCount
	}

	ev := domain.NewEvent(domain.EventReviewsDue, userID, s.now())
	ev.Value = n
	s.events.Publish(ev)
	return true, nil
}

// InWindow reports whether hour falls in [start, end]. A window whose start
// is after its end wraps past midnight.
func InWindow(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour <= end
	}
	return hour >= start || hour <= end
}
