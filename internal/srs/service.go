package srs

import (
	"context"
	"time"

	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/felixgeelhaar/lingua/internal/storage"
	"github.com/felixgeelhaar/lingua/internal/xp"
)

// DefaultDueLimit bounds Due when the caller passes no limit
const DefaultDueLimit = 10

// Service schedules review items stored in a user's progress record
type Service struct {
	store  storage.ProgressStore
	events domain.EventPublisher
	now    func() time.Time
}

// NewService creates a review service. events may be nil.
func NewService(store storage.ProgressStore, events domain.EventPublisher) *Service {
	return &Service{store: store, events: events, now: time.Now}
}

// SetClock overrides the time source (tests)
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// AddPhrase creates a review item for a learned phrase
func (s *Service) AddPhrase(ctx context.Context, userID, topicID, phrase, translation string) (*domain.ReviewItem, error) {
	now := s.now()
	item, err := NewItem(phrase, translation, topicID, now)
	if err != nil {
		return nil, err
	}

	_, err = s.store.Update(ctx, userID, func(p *domain.UserProgress) error {
		p.Items[item.ID] = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Review applies a quality score to an item and awards review XP
func (s *Service) Review(ctx context.Context, userID, itemID string, quality int) (*domain.ReviewItem, error) {
	if quality < MinQuality || quality > MaxQuality {
		return nil, domain.Invalidf("quality %d outside %d..%d", quality, MinQuality, MaxQuality)
	}

	now := s.now()
	var (
		updated *domain.ReviewItem
		gain    xp.Gain
	)
	p, err := s.store.Update(ctx, userID, func(p *domain.UserProgress) error {
		item, ok := p.Items[itemID]
		if !ok {
			return domain.ErrItemNotFound
		}

		next, err := Schedule(item, quality, now)
		if err != nil {
			return err
		}
		p.Items[itemID] = next
		updated = next

		p.Day(now).Reviews++
		gain = xp.Award(p, xp.PhraseReviewed, 1, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if ev, ok := xp.LevelUpEvent(p, gain, now); ok && s.events != nil {
		s.events.Publish(ev)
	}
	return updated, nil
}

// Due returns up to limit items due now, earliest first
func (s *Service) Due(ctx context.Context, userID string, limit int) ([]*domain.ReviewItem, error) {
	p, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultDueLimit
	}

	items := make([]*domain.ReviewItem, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, item)
	}

	due := DueItems(items, s.now())
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// DueCount returns how many items are due now
func (s *Service) DueCount(ctx context.Context, userID string) (int, error) {
	p, err := s.store.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	n := 0
	for _, item := range p.Items {
		if item.IsDue(now) {
			n++
		}
	}
	return n, nil
}
