// Package progress tracks per-topic learning progress, XP and level
// completion on top of the progress store.
package progress

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/felixgeelhaar/lingua/internal/catalog"
	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/felixgeelhaar/lingua/internal/srs"
	"github.com/felixgeelhaar/lingua/internal/storage"
	"github.com/felixgeelhaar/lingua/internal/streak"
	"github.com/felixgeelhaar/lingua/internal/xp"
)

// PronunciationPass is the score at which an attempt earns XP
const PronunciationPass = 80

// CompletionCriteria decides when sustained practice completes a topic on
// its own. A topic whose catalog phrases are all learned always qualifies.
type CompletionCriteria struct {
	MinConversations int
	MinSessions      int
	MinPhrases       int
}

// DefaultCompletionCriteria returns the auto-completion thresholds
func DefaultCompletionCriteria() CompletionCriteria {
	return CompletionCriteria{MinConversations: 3, MinSessions: 5, MinPhrases: 8}
}

func (c CompletionCriteria) met(tp *domain.TopicProgress, total int) bool {
	if total > 0 && tp.PhrasesLearned >= total {
		return true
	}
	return tp.ConversationsCompleted >= c.MinConversations &&
		tp.PracticeSessions >= c.MinSessions &&
		tp.PhrasesLearned >= c.MinPhrases
}

// Engine implements the topic progress operations
type Engine struct {
	store    storage.ProgressStore
	catalog  catalog.Catalog
	events   domain.EventPublisher
	criteria CompletionCriteria
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithEvents publishes learning events to p
func WithEvents(p domain.EventPublisher) Option {
	return func(e *Engine) { e.events = p }
}

// WithCompletionCriteria overrides the auto-completion thresholds
func WithCompletionCriteria(c CompletionCriteria) Option {
	return func(e *Engine) { e.criteria = c }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a progress engine
func NewEngine(store storage.ProgressStore, cat catalog.Catalog, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		catalog:  cat,
		criteria: DefaultCompletionCriteria(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// change collects the events raised while mutating one record
type change struct {
	userID string
	now    time.Time
	events []domain.Event
}

func (c *change) emit(ev domain.Event) {
	c.events = append(c.events, ev)
}

func (c *change) award(p *domain.UserProgress, a xp.Action, multiplier int) {
	g := xp.Award(p, a, multiplier, c.now)
	if ev, ok := xp.LevelUpEvent(p, g, c.now); ok {
		c.emit(ev)
	}
}

// update runs fn under the user's write lock and publishes the events it
// raised once the record is saved
func (e *Engine) update(ctx context.Context, userID string, fn func(p *domain.UserProgress, c *change) error) (*domain.UserProgress, error) {
	c := &change{userID: userID, now: e.now()}
	p, err := e.store.Update(ctx, userID, func(p *domain.UserProgress) error {
		c.events = c.events[:0]
		return fn(p, c)
	})
	if err != nil {
		return nil, err
	}
	e.publish(c.events)
	return p, nil
}

func (e *Engine) publish(events []domain.Event) {
	if e.events == nil {
		return
	}
	for _, ev := range events {
		e.logger.Debug("learning event", "type", ev.Type, "user_id", ev.UserID, "topic_id", ev.TopicID, "value", ev.Value)
		e.events.Publish(ev)
	}
}

func (e *Engine) topic(topicID string) (*domain.Topic, error) {
	if topicID == "" {
		return nil, domain.Invalidf("topic id is required")
	}
	return e.catalog.Topic(topicID)
}

// StartTopic moves a topic to in_progress. A completed topic stays completed.
func (e *Engine) StartTopic(ctx context.Context, userID, topicID string) (*domain.TopicProgress, error) {
	if _, err := e.topic(topicID); err != nil {
		return nil, err
	}

	var out domain.TopicProgress
	_, err := e.update(ctx, userID, func(p *domain.UserProgress, c *change) error {
		tp := p.Topic(topicID)
		if tp.Status == domain.TopicNotStarted {
			c.award(p, xp.TopicStarted, 1)
			ev := domain.NewEvent(domain.EventTopicStarted, userID, c.now)
			ev.TopicID = topicID
			c.emit(ev)
		}
		tp.Status = tp.Status.Advance(domain.TopicInProgress)
		tp.LastPracticed = ptr(c.now)
		out = *tp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordPhraseLearned adds count learned phrases to a topic
func (e *Engine) RecordPhraseLearned(ctx context.Context, userID, topicID string, count int) (*domain.TopicProgress, error) {
	if count <= 0 {
		return nil, domain.Invalidf("phrase count must be positive, got %d", count)
	}
	t, err := e.topic(topicID)
	if err != nil {
		return nil, err
	}

	var out domain.TopicProgress
	_, err = e.update(ctx, userID, func(p *domain.UserProgress, c *change) error {
		e.learnPhrases(p, c, t, count)
		out = *p.Topic(topicID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LearnPhrase records one learned phrase and schedules it for review
func (e *Engine) LearnPhrase(ctx context.Context, userID, topicID, phrase, translation string) (*domain.ReviewItem, error) {
	t, err := e.topic(topicID)
	if err != nil {
		return nil, err
	}

	var item *domain.ReviewItem
	_, err = e.update(ctx, userID, func(p *domain.UserProgress, c *change) error {
		it, err := srs.NewItem(phrase, translation, topicID, c.now)
		if err != nil {
			return err
		}
		p.Items[it.ID] = it
		item = it
		e.learnPhrases(p, c, t, 1)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (e *Engine) learnPhrases(p *domain.UserProgress, c *change, t *domain.Topic, count int) {
	tp := p.Topic(t.ID)
	tp.PhrasesLearned += count
	tp.LastPracticed = ptr(c.now)
	if tp.Status == domain.TopicNotStarted {
		tp.Status = domain.TopicInProgress
	}
	p.Day(c.now).PhrasesLearned += count
	c.award(p, xp.PhraseLearned, count)
	e.autoComplete(p, c, t)
}

// RecordConversationTurn marks practice on a topic
func (e *Engine) RecordConversationTurn(ctx context.Context, userID, topicID string) (*domain.TopicProgress, error) {
	if _, err := e.topic(topicID); err != nil {
		return nil, err
	}

	var out domain.TopicProgress
	_, err := e.update(ctx, userID, func(p *domain.UserProgress, c *change) error {
		recordTurn(p.Topic(topicID), c.now)
		out = *p.Topic(topicID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func recordTurn(tp *domain.TopicProgress, now time.Time) {
	tp.Status = tp.Status.Advance(domain.TopicInProgress)
	tp.PracticeSessions++
	tp.LastPracticed = ptr(now)
}

// CompleteTopic marks a topic completed, counts today's activity for the
// streak and fires level completion once every topic of the level is done.
func (e *Engine) CompleteTopic(ctx context.Context, userID, topicID string) (*domain.TopicProgress, error) {
	t, err := e.topic(topicID)
	if err != nil {
		return nil, err
	}

	var out domain.TopicProgress
	_, err = e.update(ctx, userID, func(p *domain.UserProgress, c *change) error {
		e.complete(p, c, t)
		e.recordActivity(p, c)
		out = *p.Topic(topicID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *Engine) complete(p *domain.UserProgress, c *change, t *domain.Topic) {
	tp := p.Topic(t.ID)
	if tp.Status == domain.TopicCompleted {
		return
	}

	tp.Status = domain.TopicCompleted
	if tp.CompletionDate == nil {
		tp.CompletionDate = ptr(c.now)
	}
	c.award(p, xp.TopicCompleted, 1)

	ev := domain.NewEvent(domain.EventTopicCompleted, p.UserID, c.now)
	ev.TopicID = t.ID
	ev.Level = t.Level
	c.emit(ev)

	e.checkLevel(p, c, t.Level)
}

func (e *Engine) autoComplete(p *domain.UserProgress, c *change, t *domain.Topic) {
	tp := p.Topic(t.ID)
	if tp.Status == domain.TopicCompleted || !e.criteria.met(tp, t.PhraseCount()) {
		return
	}
	e.logger.Info("auto-completing topic", "user_id", p.UserID, "topic_id", t.ID,
		"conversations", tp.ConversationsCompleted, "sessions", tp.PracticeSessions, "phrases", tp.PhrasesLearned)
	e.complete(p, c, t)
	e.recordActivity(p, c)
}

func (e *Engine) checkLevel(p *domain.UserProgress, c *change, level int) {
	if p.HasCompletedLevel(level) {
		return
	}
	topics := e.catalog.TopicsForLevel(level)
	if len(topics) == 0 {
		return
	}
	for _, t := range topics {
		tp, ok := p.Topics[t.ID]
		if !ok || tp.Status != domain.TopicCompleted {
			return
		}
	}

	p.MarkLevelCompleted(level)
	ev := domain.NewEvent(domain.EventLevelCompleted, p.UserID, c.now)
	ev.Level = level
	c.emit(ev)

	if p.Profile.Level == level && level < domain.MaxLearnerLevel {
		p.Profile.Level = level + 1
	}
}

// recordActivity counts the day for the streak and pays the streak bonus
// the first time each day
func (e *Engine) recordActivity(p *domain.UserProgress, c *change) {
	res, events := streak.Record(p, c.now)
	for _, ev := range events {
		c.emit(ev)
	}
	if res.Advanced && p.Streak.Current > 1 {
		c.award(p, xp.StreakBonus, min(p.Streak.Current, 7))
	}
}

// CompletionPercentage returns round(learned / total × 100) clamped to 0..100
func (e *Engine) CompletionPercentage(ctx context.Context, userID, topicID string) (int, error) {
	t, err := e.topic(topicID)
	if err != nil {
		return 0, err
	}
	p, err := e.store.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	tp, ok := p.Topics[topicID]
	if !ok {
		return 0, nil
	}
	return Percentage(tp, t.PhraseCount()), nil
}

// Percentage computes completion for a topic with total phrases
func Percentage(tp *domain.TopicProgress, total int) int {
	if total <= 0 {
		if tp.Status == domain.TopicCompleted {
			return 100
		}
		return 0
	}
	pct := int(math.Round(float64(tp.PhrasesLearned) / float64(total) * 100))
	return max(0, min(100, pct))
}

// SessionResult is what a finished conversation reports
type SessionResult struct {
	UserID        string
	TopicID       string
	Duration      time.Duration
	Messages      int
	VoiceMessages int
}

// RecordSession credits a completed conversation: a turn, a completed
// conversation, study time, XP and the day's streak activity. The topic is
// completed when the completion criteria are met.
func (e *Engine) RecordSession(ctx context.Context, r SessionResult) (*domain.TopicProgress, error) {
	t, err := e.topic(r.TopicID)
	if err != nil {
		return nil, err
	}
	if r.Messages < 0 || r.VoiceMessages < 0 || r.Duration < 0 {
		return nil, domain.Invalidf("session counters must not be negative")
	}

	var out domain.TopicProgress
	_, err = e.update(ctx, r.UserID, func(p *domain.UserProgress, c *change) error {
		tp := p.Topic(r.TopicID)
		recordTurn(tp, c.now)
		tp.ConversationsCompleted++

		day := p.Day(c.now)
		day.StudyMinutes += studyMinutes(r.Duration)
		day.Messages += r.Messages
		day.VoiceMessages += r.VoiceMessages

		if r.Messages > 0 {
			c.award(p, xp.ConversationMessage, r.Messages)
		}
		if r.VoiceMessages > 0 {
			c.award(p, xp.VoiceMessage, r.VoiceMessages)
		}
		c.award(p, xp.ConversationComplete, 1)

		e.recordActivity(p, c)
		e.autoComplete(p, c, t)

		ev := domain.NewEvent(domain.EventSessionCompleted, r.UserID, c.now)
		ev.TopicID = r.TopicID
		ev.Value = r.Messages
		c.emit(ev)

		out = *p.Topic(r.TopicID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// studyMinutes rounds up so a short session still counts
func studyMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}

// CheckIn awards the daily login bonus on the first call of each day. It
// reports whether the bonus was paid.
func (e *Engine) CheckIn(ctx context.Context, userID string) (bool, error) {
	var paid bool
	_, err := e.update(ctx, userID, func(p *domain.UserProgress, c *change) error {
		day := p.Day(c.now)
		if day.CheckedIn {
			paid = false
			return nil
		}
		day.CheckedIn = true
		c.award(p, xp.DailyLogin, 1)
		paid = true
		return nil
	})
	return paid, err
}

// RecordPronunciation stores a 0..100 score and pays XP for a passing attempt
func (e *Engine) RecordPronunciation(ctx context.Context, userID, topicID, phrase string, score int) error {
	if score < 0 || score > 100 {
		return domain.Invalidf("score %d outside 0..100", score)
	}
	if phrase == "" {
		return domain.Invalidf("phrase is empty")
	}
	if topicID != "" {
		if _, err := e.topic(topicID); err != nil {
			return err
		}
	}

	_, err := e.update(ctx, userID, func(p *domain.UserProgress, c *change) error {
		p.Pronunciation = append(p.Pronunciation, domain.PronunciationScore{
			Phrase:     phrase,
			Score:      score,
			TopicID:    topicID,
			RecordedAt: c.now,
		})
		if score >= PronunciationPass {
			c.award(p, xp.CorrectPronunciation, 1)
		}
		return nil
	})
	return err
}

// SetLevel places the learner on a curriculum level
func (e *Engine) SetLevel(ctx context.Context, userID string, level int) (*domain.UserProfile, error) {
	var out domain.UserProfile
	_, err := e.update(ctx, userID, func(p *domain.UserProgress, c *change) error {
		profile := p.Profile
		profile.Level = level
		if err := profile.Validate(); err != nil {
			return err
		}
		p.Profile = profile
		out = profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func ptr(t time.Time) *time.Time {
	return &t
}
