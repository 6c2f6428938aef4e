package progress

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/felixgeelhaar/lingua/internal/catalog"
	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/felixgeelhaar/lingua/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []domain.Event
}

func (r *recordingPublisher) Publish(ev domain.Event) {
	r.events = append(r.events, ev)
}

func (r *recordingPublisher) ofType(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	engine *Engine
	store  *storage.Store
	pub    *recordingPublisher
	now    time.Time
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	reg := catalog.NewRegistry(catalog.NewLoader(fstest.MapFS{
		"level-1.yaml": {Data: []byte(`level: 1
topics:
  - {id: greetings, title: Greetings, total_phrases: 10}
  - {id: family, title: Family, total_phrases: 4}
`)},
		"level-2.yaml": {Data: []byte(`level: 2
topics:
  - {id: restaurant, title: Restaurant}
`)},
	}))
	require.NoError(t, reg.Load())

	f := &fixture{
		store: storage.New(storage.NewMemoryBackend()),
		pub:   &recordingPublisher{},
		now:   time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.store.SetClock(clock)

	opts = append([]Option{WithEvents(f.pub), WithClock(clock)}, opts...)
	f.engine = NewEngine(f.store, reg, opts...)
	return f
}

func (f *fixture) progress(t *testing.T) *domain.UserProgress {
	t.Helper()
	p, err := f.store.Get(context.Background(), "ana")
	require.NoError(t, err)
	return p
}

func TestStartTopic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tp, err := f.engine.StartTopic(ctx, "ana", "greetings")
	require.NoError(t, err)
	assert.Equal(t, domain.TopicInProgress, tp.Status)
	assert.NotNil(t, tp.LastPracticed)

	_, err = f.engine.StartTopic(ctx, "ana", "greetings")
	require.NoError(t, err)

	assert.Len(t, f.pub.ofType(domain.EventTopicStarted), 1)
	assert.Equal(t, 15, f.progress(t).TotalXP)
}

func TestStartTopic_UnknownAndEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.StartTopic(ctx, "ana", "missing")
	assert.ErrorIs(t, err, domain.ErrTopicNotFound)

	_, err = f.engine.StartTopic(ctx, "ana", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.engine.StartTopic(ctx, "", "greetings")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Empty(t, f.pub.events)
}

func TestStatusNeverRegresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CompleteTopic(ctx, "ana", "family")
	require.NoError(t, err)

	tp, err := f.engine.StartTopic(ctx, "ana", "family")
	require.NoError(t, err)
	assert.Equal(t, domain.TopicCompleted, tp.Status)

	tp, err = f.engine.RecordConversationTurn(ctx, "ana", "family")
	require.NoError(t, err)
	assert.Equal(t, domain.TopicCompleted, tp.Status)
	assert.Equal(t, 1, tp.PracticeSessions, "counters still move on a completed topic")

	tp, err = f.engine.RecordPhraseLearned(ctx, "ana", "family", 1)
	require.NoError(t, err)
	assert.Equal(t, domain.TopicCompleted, tp.Status)
}

func TestRecordPhraseLearned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, n := range []int{0, -2} {
		_, err := f.engine.RecordPhraseLearned(ctx, "ana", "greetings", n)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}

	tp, err := f.engine.RecordPhraseLearned(ctx, "ana", "greetings", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, tp.PhrasesLearned)
	assert.Equal(t, domain.TopicInProgress, tp.Status)

	p := f.progress(t)
	assert.Equal(t, 30, p.TotalXP)
	assert.Equal(t, 3, p.Day(f.now).PhrasesLearned)

	pct, err := f.engine.CompletionPercentage(ctx, "ana", "greetings")
	require.NoError(t, err)
	assert.Equal(t, 30, pct)
}

func TestRecordPhraseLearned_AllPhrasesCompletesTopic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tp, err := f.engine.RecordPhraseLearned(ctx, "ana", "family", 4)
	require.NoError(t, err)
	assert.Equal(t, domain.TopicCompleted, tp.Status)
	assert.Len(t, f.pub.ofType(domain.EventTopicCompleted), 1)

	pct, err := f.engine.CompletionPercentage(ctx, "ana", "family")
	require.NoError(t, err)
	assert.Equal(t, 100, pct)
}

func TestLearnPhrase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.engine.LearnPhrase(ctx, "ana", "greetings", "hola", "hello")
	require.NoError(t, err)

	p := f.progress(t)
	require.Contains(t, p.Items, item.ID)
	assert.Equal(t, "greetings", p.Items[item.ID].TopicID)
	assert.Equal(t, 1, p.Topics["greetings"].PhrasesLearned)

	_, err = f.engine.LearnPhrase(ctx, "ana", "greetings", " ", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Len(t, f.progress(t).Items, 1)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name    string
		learned int
		total   int
		status  domain.TopicStatus
		want    int
	}{
		{"a third", 1, 3, domain.TopicInProgress, 33},
		{"two thirds", 2, 3, domain.TopicInProgress, 67},
		{"over total", 12, 10, domain.TopicInProgress, 100},
		{"no total", 5, 0, domain.TopicInProgress, 0},
		{"no total completed", 0, 0, domain.TopicCompleted, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := &domain.TopicProgress{PhrasesLearned: tt.learned, Status: tt.status}
			assert.Equal(t, tt.want, Percentage(tp, tt.total))
		})
	}
}

func TestCompleteTopic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tp, err := f.engine.CompleteTopic(ctx, "ana", "greetings")
	require.NoError(t, err)
	assert.Equal(t, domain.TopicCompleted, tp.Status)
	require.NotNil(t, tp.CompletionDate)
	first := *tp.CompletionDate

	f.advance(time.Hour)
	tp, err = f.engine.CompleteTopic(ctx, "ana", "greetings")
	require.NoError(t, err)
	assert.Equal(t, first, *tp.CompletionDate)

	p := f.progress(t)
	assert.Equal(t, 1, p.Streak.Current)
	assert.Equal(t, 100, p.TotalXP)
	assert.Len(t, f.pub.ofType(domain.EventTopicCompleted), 1)
	assert.Len(t, f.pub.ofType(domain.EventLevelUp), 1)
}

func TestCompleteTopic_LevelCompletedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CompleteTopic(ctx, "ana", "family")
	require.NoError(t, err)
	assert.Empty(t, f.pub.ofType(domain.EventLevelCompleted))

	_, err = f.engine.CompleteTopic(ctx, "ana", "greetings")
	require.NoError(t, err)

	_, err = f.engine.CompleteTopic(ctx, "ana", "greetings")
	require.NoError(t, err)
	_, err = f.engine.CompleteTopic(ctx, "ana", "family")
	require.NoError(t, err)

	levels := f.pub.ofType(domain.EventLevelCompleted)
	require.Len(t, levels, 1)
	assert.Equal(t, 1, levels[0].Level)

	p := f.progress(t)
	assert.True(t, p.HasCompletedLevel(1))
	assert.Equal(t, 2, p.Profile.Level)
}

func TestCompleteTopic_StreakMilestone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := f.engine.CompleteTopic(ctx, "ana", "greetings")
		require.NoError(t, err)
		f.advance(24 * time.Hour)
	}

	milestones := f.pub.ofType(domain.EventStreakMilestone)
	require.Len(t, milestones, 1)
	assert.Equal(t, 7, milestones[0].Value)
	assert.Equal(t, 8, f.progress(t).Streak.Current)
}

func TestRecordSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tp, err := f.engine.RecordSession(ctx, SessionResult{
		UserID:        "ana",
		TopicID:       "greetings",
		Duration:      90 * time.Second,
		Messages:      4,
		VoiceMessages: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TopicInProgress, tp.Status)
	assert.Equal(t, 1, tp.ConversationsCompleted)
	assert.Equal(t, 1, tp.PracticeSessions)

	p := f.progress(t)
	day := p.Day(f.now)
	assert.Equal(t, 2, day.StudyMinutes)
	assert.Equal(t, 4, day.Messages)
	assert.Equal(t, 1, day.VoiceMessages)
	assert.Equal(t, 4*5+8+25, p.TotalXP)
	assert.Equal(t, 1, p.Streak.Current)
	assert.Len(t, f.pub.ofType(domain.EventSessionCompleted), 1)
}

func TestRecordSession_AutoComplete(t *testing.T) {
	f := newFixture(t, WithCompletionCriteria(CompletionCriteria{MinConversations: 2, MinSessions: 2}))
	ctx := context.Background()

	res := SessionResult{UserID: "ana", TopicID: "greetings", Messages: 1}
	tp, err := f.engine.RecordSession(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, domain.TopicInProgress, tp.Status)

	tp, err = f.engine.RecordSession(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, domain.TopicCompleted, tp.Status)
}

func TestRecordSession_Invalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.RecordSession(context.Background(), SessionResult{UserID: "ana", TopicID: "greetings", Messages: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStreakBonus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CompleteTopic(ctx, "ana", "greetings")
	require.NoError(t, err)
	before := f.progress(t).TotalXP

	f.advance(24 * time.Hour)
	_, err = f.engine.CompleteTopic(ctx, "ana", "greetings")
	require.NoError(t, err)

	assert.Equal(t, before+2*20, f.progress(t).TotalXP)
}

func TestCheckIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paid, err := f.engine.CheckIn(ctx, "ana")
	require.NoError(t, err)
	assert.True(t, paid)

	paid, err = f.engine.CheckIn(ctx, "ana")
	require.NoError(t, err)
	assert.False(t, paid)

	f.advance(24 * time.Hour)
	paid, err = f.engine.CheckIn(ctx, "ana")
	require.NoError(t, err)
	assert.True(t, paid)

	assert.Equal(t, 20, f.progress(t).TotalXP)
}

func TestRecordPronunciation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.RecordPronunciation(ctx, "ana", "greetings", "hello", 85))
	require.NoError(t, f.engine.RecordPronunciation(ctx, "ana", "", "goodbye", 40))
	assert.ErrorIs(t, f.engine.RecordPronunciation(ctx, "ana", "", "x", 101), domain.ErrInvalidInput)
	assert.ErrorIs(t, f.engine.RecordPronunciation(ctx, "ana", "missing", "x", 90), domain.ErrTopicNotFound)

	p := f.progress(t)
	assert.Len(t, p.Pronunciation, 2)
	assert.Equal(t, 12, p.TotalXP)
}

func TestSetLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	profile, err := f.engine.SetLevel(ctx, "ana", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, profile.Level)

	_, err = f.engine.SetLevel(ctx, "ana", 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 3, f.progress(t).Profile.Level)
}
