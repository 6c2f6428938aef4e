package progress

import (
	"context"
	"time"

	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/felixgeelhaar/lingua/internal/streak"
	"github.com/felixgeelhaar/lingua/internal/xp"
)

// Summary is the overview shown by `lingua progress` and the API
type Summary struct {
	UserID           string               `json:"user_id"`
	Profile          domain.UserProfile   `json:"profile"`
	Level            xp.LevelInfo         `json:"level"`
	Streak           domain.StreakState   `json:"streak"`
	StreakActive     bool                 `json:"streak_active"`
	TopicsStarted    int                  `json:"topics_started"`
	TopicsCompleted  int                  `json:"topics_completed"`
	PhrasesLearned   int                  `json:"phrases_learned"`
	ReviewItems      int                  `json:"review_items"`
	ItemsDue         int                  `json:"items_due"`
	LevelsCompleted  []int                `json:"levels_completed,omitempty"`
	Achievements     []domain.Achievement `json:"achievements,omitempty"`
	Today            domain.DailyStat     `json:"today"`
	AvgPronunciation int                  `json:"avg_pronunciation,omitempty"`
}

// TopicView joins a catalog topic with the learner's progress on it
type TopicView struct {
	Topic      *domain.Topic        `json:"topic"`
	Progress   domain.TopicProgress `json:"progress"`
	Percentage int                  `json:"percentage"`
}

// Summary builds the learner overview
func (e *Engine) Summary(ctx context.Context, userID string) (*Summary, error) {
	p, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := e.now()

	s := &Summary{
		UserID:          p.UserID,
		Profile:         p.Profile,
		Level:           xp.Info(p.TotalXP),
		Streak:          p.Streak,
		StreakActive:    streak.IsActiveOn(p.Streak, now),
		ReviewItems:     len(p.Items),
		LevelsCompleted: p.CompletedLevels,
		Achievements:    p.Achievements,
	}
	for _, tp := range p.Topics {
		if tp.Status != domain.TopicNotStarted {
			s.TopicsStarted++
		}
		if tp.Status == domain.TopicCompleted {
			s.TopicsCompleted++
		}
		s.PhrasesLearned += tp.PhrasesLearned
	}
	for _, item := range p.Items {
		if item.IsDue(now) {
			s.ItemsDue++
		}
	}
	if d, ok := p.Daily[now.Format(time.DateOnly)]; ok {
		s.Today = *d
	} else {
		s.Today = domain.DailyStat{Date: now.Format(time.DateOnly)}
	}
	if n := len(p.Pronunciation); n > 0 {
		total := 0
		for _, ps := range p.Pronunciation {
			total += ps.Score
		}
		s.AvgPronunciation = total / n
	}
	return s, nil
}

// TopicProgress returns one topic with the learner's progress on it
func (e *Engine) TopicProgress(ctx context.Context, userID, topicID string) (*TopicView, error) {
	t, err := e.topic(topicID)
	if err != nil {
		return nil, err
	}
	p, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &TopicView{
		Topic:    t,
		Progress: domain.TopicProgress{TopicID: topicID, Status: domain.TopicNotStarted},
	}
	if tp, ok := p.Topics[topicID]; ok {
		view.Progress = *tp
	}
	view.Percentage = Percentage(&view.Progress, t.PhraseCount())
	return view, nil
}

// DailyStats returns the last days of statistics, oldest first. Days
// without activity are returned as zero entries.
func (e *Engine) DailyStats(ctx context.Context, userID string, days int) ([]domain.DailyStat, error) {
	if days <= 0 {
		return nil, domain.Invalidf("days must be positive, got %d", days)
	}
	p, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	stats := make([]domain.DailyStat, 0, days)
	for i := days - 1; i >= 0; i-- {
		key := now.AddDate(0, 0, -i).Format(time.DateOnly)
		if d, ok := p.Daily[key]; ok {
			stats = append(stats, *d)
		} else {
			stats = append(stats, domain.DailyStat{Date: key})
		}
	}
	return stats, nil
}

// Progress returns the learner's full record
func (e *Engine) Progress(ctx context.Context, userID string) (*domain.UserProgress, error) {
	return e.store.Get(ctx, userID)
}
