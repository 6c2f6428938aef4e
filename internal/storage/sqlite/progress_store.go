package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/felixgeelhaar/lingua/internal/storage"
)

// ProgressStore implements storage.Backend on SQLite.
type ProgressStore struct {
	db *DB
}

// Ensure ProgressStore implements storage.Backend
var _ storage.Backend = (*ProgressStore)(nil)

// NewProgressStore creates a new SQLite-backed progress store.
func NewProgressStore(db *DB) *ProgressStore {
	return &ProgressStore{db: db}
}

type progressRow struct {
	UserID            string       `db:"user_id"`
	Profile           string       `db:"profile"`
	TotalXP           int          `db:"total_xp"`
	CurrentLevel      int          `db:"current_level"`
	CurrentStreak     int          `db:"current_streak"`
	LongestStreak     int          `db:"longest_streak"`
	LastActivity      sql.NullTime `db:"last_activity_date"`
	StreakStart       sql.NullTime `db:"streak_start_date"`
	EmittedMilestones string       `db:"emitted_milestones"`
	CompletedLevels   string       `db:"completed_levels"`
	Achievements      string       `db:"achievements"`
	Daily             string       `db:"daily"`
	Pronunciation     string       `db:"pronunciation"`
	CreatedAt         time.Time    `db:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at"`
}

type topicRow struct {
	UserID                 string       `db:"user_id"`
	TopicID                string       `db:"topic_id"`
	Status                 string       `db:"status"`
	PhrasesLearned         int          `db:"phrases_learned"`
	ConversationsCompleted int          `db:"conversations_completed"`
	PracticeSessions       int          `db:"practice_sessions"`
	LastPracticed          sql.NullTime `db:"last_practiced"`
	CompletionDate         sql.NullTime `db:"completion_date"`
}

type itemRow struct {
	ID           string       `db:"id"`
	UserID       string       `db:"user_id"`
	Phrase       string       `db:"phrase"`
	Translation  string       `db:"translation"`
	TopicID      string       `db:"topic_id"`
	IntervalDays int          `db:"interval_days"`
	Repetitions  int          `db:"repetitions"`
	EaseFactor   float64      `db:"ease_factor"`
	NextReview   time.Time    `db:"next_review"`
	LastReviewed sql.NullTime `db:"last_reviewed"`
	CreatedAt    time.Time    `db:"created_at"`
}

// Load reads the user's record with its topics and review items.
func (s *ProgressStore) Load(ctx context.Context, userID string) (*domain.UserProgress, error) {
	var row progressRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM user_progress WHERE user_id = ?`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get progress: %w", err)
	}

	p, err := row.toDomain()
	if err != nil {
		return nil, err
	}

	var topics []topicRow
	if err := s.db.SelectContext(ctx, &topics, `SELECT * FROM topic_progress WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("select topics: %w", err)
	}
	for _, t := range topics {
		p.Topics[t.TopicID] = t.toDomain()
	}

	var items []itemRow
	if err := s.db.SelectContext(ctx, &items, `SELECT * FROM review_items WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("select review items: %w", err)
	}
	for _, it := range items {
		p.Items[it.ID] = it.toDomain()
	}

	return p, nil
}

// Save replaces the user's record in a single transaction.
func (s *ProgressStore) Save(ctx context.Context, p *domain.UserProgress) error {
	row, err := newProgressRow(p)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO user_progress (user_id, profile, total_xp, current_level,
			current_streak, longest_streak, last_activity_date, streak_start_date,
			emitted_milestones, completed_levels, achievements, daily, pronunciation,
			created_at, updated_at)
		VALUES (:user_id, :profile, :total_xp, :current_level,
			:current_streak, :longest_streak, :last_activity_date, :streak_start_date,
			:emitted_milestones, :completed_levels, :achievements, :daily, :pronunciation,
			:created_at, :updated_at)
		ON CONFLICT(user_id) DO UPDATE SET
			profile=excluded.profile,
			total_xp=excluded.total_xp,
			current_level=excluded.current_level,
			current_streak=excluded.current_streak,
			longest_streak=excluded.longest_streak,
			last_activity_date=excluded.last_activity_date,
			streak_start_date=excluded.streak_start_date,
			emitted_milestones=excluded.emitted_milestones,
			completed_levels=excluded.completed_levels,
			achievements=excluded.achievements,
			daily=excluded.daily,
			pronunciation=excluded.pronunciation,
			updated_at=excluded.updated_at`, row)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM topic_progress WHERE user_id = ?`, p.UserID); err != nil {
		return fmt.Errorf("clear topics: %w", err)
	}
	for _, tp := range p.Topics {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO topic_progress (user_id, topic_id, status, phrases_learned,
				conversations_completed, practice_sessions, last_practiced, completion_date)
			VALUES (:user_id, :topic_id, :status, :phrases_learned,
				:conversations_completed, :practice_sessions, :last_practiced, :completion_date)`,
			newTopicRow(p.UserID, tp))
		if err != nil {
			return fmt.Errorf("insert topic %s: %w", tp.TopicID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM review_items WHERE user_id = ?`, p.UserID); err != nil {
		return fmt.Errorf("clear review items: %w", err)
	}
	for _, item := range p.Items {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO review_items (id, user_id, phrase, translation, topic_id,
				interval_days, repetitions, ease_factor, next_review, last_reviewed, created_at)
			VALUES (:id, :user_id, :phrase, :translation, :topic_id,
				:interval_days, :repetitions, :ease_factor, :next_review, :last_reviewed, :created_at)`,
			newItemRow(p.UserID, item))
		if err != nil {
			return fmt.Errorf("insert review item %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit progress: %w", err)
	}
	return nil
}

// Users returns all user ids with a record.
func (s *ProgressStore) Users(ctx context.Context) ([]string, error) {
	ids := []string{}
	if err := s.db.SelectContext(ctx, &ids, `SELECT user_id FROM user_progress ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ids, nil
}

// CountDue counts a user's review items due at now without loading the record.
func (s *ProgressStore) CountDue(ctx context.Context, userID string, now time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM review_items WHERE user_id = ? AND next_review <= ?`, userID, now)
	if err != nil {
		return 0, fmt.Errorf("count due: %w", err)
	}
	return n, nil
}

func newProgressRow(p *domain.UserProgress) (*progressRow, error) {
	row := &progressRow{
		UserID:        p.UserID,
		TotalXP:       p.TotalXP,
		CurrentLevel:  p.CurrentLevel,
		CurrentStreak: p.Streak.Current,
		LongestStreak: p.Streak.Longest,
		LastActivity:  nullTime(p.Streak.LastActivity),
		StreakStart:   nullTime(p.Streak.StreakStart),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}

	fields := []struct {
		dst  *string
		src  any
		name string
	}{
		{&row.Profile, p.Profile, "profile"},
		{&row.EmittedMilestones, nonNil(p.EmittedMilestones), "emitted_milestones"},
		{&row.CompletedLevels, nonNil(p.CompletedLevels), "completed_levels"},
		{&row.Achievements, nonNil(p.Achievements), "achievements"},
		{&row.Daily, p.Daily, "daily"},
		{&row.Pronunciation, nonNil(p.Pronunciation), "pronunciation"},
	}
	for _, f := range fields {
		data, err := json.Marshal(f.src)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", f.name, err)
		}
		*f.dst = string(data)
	}

	return row, nil
}

func (r *progressRow) toDomain() (*domain.UserProgress, error) {
	p := &domain.UserProgress{
		UserID:       r.UserID,
		TotalXP:      r.TotalXP,
		CurrentLevel: r.CurrentLevel,
		Streak: domain.StreakState{
			Current:      r.CurrentStreak,
			Longest:      r.LongestStreak,
			LastActivity: timePtr(r.LastActivity),
			StreakStart:  timePtr(r.StreakStart),
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	fields := []struct {
		src  string
		dst  any
		name string
	}{
		{r.Profile, &p.Profile, "profile"},
		{r.EmittedMilestones, &p.EmittedMilestones, "emitted_milestones"},
		{r.CompletedLevels, &p.CompletedLevels, "completed_levels"},
		{r.Achievements, &p.Achievements, "achievements"},
		{r.Daily, &p.Daily, "daily"},
		{r.Pronunciation, &p.Pronunciation, "pronunciation"},
	}
	for _, f := range fields {
		if f.src == "" {
			continue
		}
		if err := json.Unmarshal([]byte(f.src), f.dst); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", f.name, err)
		}
	}

	p.Normalize()
	return p, nil
}

func newTopicRow(userID string, tp *domain.TopicProgress) topicRow {
	return topicRow{
		UserID:                 userID,
		TopicID:                tp.TopicID,
		Status:                 string(tp.Status),
		PhrasesLearned:         tp.PhrasesLearned,
		ConversationsCompleted: tp.ConversationsCompleted,
		PracticeSessions:       tp.PracticeSessions,
		LastPracticed:          nullTime(tp.LastPracticed),
		CompletionDate:         nullTime(tp.CompletionDate),
	}
}

func (r topicRow) toDomain() *domain.TopicProgress {
	return &domain.TopicProgress{
		TopicID:                r.TopicID,
		Status:                 domain.TopicStatus(r.Status),
		PhrasesLearned:         r.PhrasesLearned,
		ConversationsCompleted: r.ConversationsCompleted,
		PracticeSessions:       r.PracticeSessions,
		LastPracticed:          timePtr(r.LastPracticed),
		CompletionDate:         timePtr(r.CompletionDate),
	}
}

func newItemRow(userID string, it *domain.ReviewItem) itemRow {
	return itemRow{
		ID:           it.ID,
		UserID:       userID,
		Phrase:       it.Phrase,
		Translation:  it.Translation,
		TopicID:      it.TopicID,
		IntervalDays: it.Interval,
		Repetitions:  it.Repetitions,
		EaseFactor:   it.EaseFactor,
		NextReview:   it.NextReview,
		LastReviewed: nullTime(it.LastReviewed),
		CreatedAt:    it.CreatedAt,
	}
}

func (r itemRow) toDomain() *domain.ReviewItem {
	return &domain.ReviewItem{
		ID:           r.ID,
		Phrase:       r.Phrase,
		Translation:  r.Translation,
		TopicID:      r.TopicID,
		Interval:     r.IntervalDays,
		Repetitions:  r.Repetitions,
		EaseFactor:   r.EaseFactor,
		NextReview:   r.NextReview,
		LastReviewed: timePtr(r.LastReviewed),
		CreatedAt:    r.CreatedAt,
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// nonNil keeps empty slices encoding as [] rather than null
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
