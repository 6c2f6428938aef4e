package achievement

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/felixgeelhaar/lingua/internal/storage"
)

// maxRecent is how many celebrations are kept per learner
const maxRecent = 10

// errNothingEarned aborts the store update when no badge is new
var errNothingEarned = errors.New("nothing earned")

// Service awards badges for learning events and keeps the latest
// celebration messages per learner.
type Service struct {
	store     storage.ProgressStore
	detector  *Detector
	generator *Generator
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	lastShow map[string]time.Time
	recent   map[string][]Message
}

func NewService(store storage.ProgressStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		detector:  NewDetector(),
		generator: NewGenerator(),
		logger:    logger,
		now:       time.Now,
		lastShow:  make(map[string]time.Time),
		recent:    make(map[string][]Message),
	}
}

// Subscribe hooks the service to a dispatcher
func (s *Service) Subscribe(d *domain.EventDispatcher) {
	d.SubscribeAll(func(ev domain.Event) {
		if _, err := s.Handle(context.Background(), ev); err != nil {
			s.logger.Warn("achievement handling failed", "user_id", ev.UserID, "event", ev.Type, "error", err)
		}
	})
}

// Handle awards the badges ev earns and returns the newly earned ones.
// Badges are stored once; replaying an event earns nothing.
func (s *Service) Handle(ctx context.Context, ev domain.Event) ([]domain.Achievement, error) {
	if ev.UserID == "" {
		return nil, nil
	}

	var earned []domain.Achievement
	var moments []Moment
	_, err := s.store.Update(ctx, ev.UserID, func(p *domain.UserProgress) error {
		for _, m := range s.detector.Detect(ev, p) {
			if m.ID != "" && hasAchievement(p, m.ID) {
				continue
			}
			moments = append(moments, m)
			if m.ID == "" {
				continue
			}
			a := domain.Achievement{
				ID:       m.ID,
				Kind:     ev.Type,
				Title:    m.Title,
				EarnedAt: m.Triggered,
			}
			if msg := s.generator.Generate(&m); msg != nil {
				a.Description = msg.Text
			}
			p.Achievements = append(p.Achievements, a)
			earned = append(earned, a)
		}
		if len(earned) == 0 {
			return errNothingEarned
		}
		return nil
	})
	if err != nil && !errors.Is(err, errNothingEarned) {
		return nil, err
	}

	s.celebrate(ev.UserID, moments)
	for _, a := range earned {
		s.logger.Info("achievement earned", "user_id", ev.UserID, "achievement", a.ID)
	}
	return earned, nil
}

// Recent returns the learner's latest celebration messages, newest first
func (s *Service) Recent(userID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.recent[userID]
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m
	}
	return out
}

func (s *Service) celebrate(userID string, moments []Moment) {
	best := s.detector.SelectBest(moments)
	if best == nil {
		return
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.lastShow[userID]; ok {
		if !ShouldCelebrate(int(now.Sub(last).Minutes()), s.detector.Priority(best.Type)) {
			return
		}
	}
	msg := s.generator.Generate(best)
	if msg == nil {
		return
	}
	s.lastShow[userID] = now
	list := append(s.recent[userID], *msg)
	if len(list) > maxRecent {
		list = list[len(list)-maxRecent:]
	}
	s.recent[userID] = list
}

func hasAchievement(p *domain.UserProgress, id string) bool {
	for _, a := range p.Achievements {
		if a.ID == id {
			return true
		}
	}
	return false
}
