// Package postgres stores progress records in PostgreSQL for server deployments.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/felixgeelhaar/lingua/internal/storage"
	"github.com/felixgeelhaar/lingua/internal/storage/migrations"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

// Open connects a pgx pool and verifies the connection
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded schema through a short-lived database/sql
// connection and returns the number of migrations applied.
func Migrate(ctx context.Context, databaseURL string) (int, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return 0, fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	return migrations.Apply(ctx, db, migrations.Postgres(), migrations.PostgresDialect)
}

// ProgressStore implements storage.Backend using PostgreSQL
type ProgressStore struct {
	pool *pgxpool.Pool
}

// Ensure ProgressStore implements storage.Backend
var _ storage.Backend = (*ProgressStore)(nil)

// NewProgressStore creates a new PostgreSQL progress store
func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

// Load reads a user's record, topics and review items
func (s *ProgressStore) Load(ctx context.Context, userID string) (*domain.UserProgress, error) {
	query := `
		SELECT user_id, profile, total_xp, current_level, current_streak, longest_streak,
			last_activity_date, streak_start_date, emitted_milestones, completed_levels,
			achievements, daily, pronunciation, created_at, updated_at
		FROM user_progress WHERE user_id = $1
	`
	p, err := scanProgress(s.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT topic_id, status, phrases_learned, conversations_completed,
			practice_sessions, last_practiced, completion_date
		FROM topic_progress WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	topics, err := pgx.CollectRows(rows, scanTopic)
	if err != nil {
		return nil, fmt.Errorf("scan topics: %w", err)
	}
	for _, tp := range topics {
		p.Topics[tp.TopicID] = tp
	}

	rows, err = s.pool.Query(ctx, `
		SELECT id, phrase, translation, topic_id, interval_days, repetitions,
			ease_factor, next_review, last_reviewed, created_at
		FROM review_items WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query review items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("scan review items: %w", err)
	}
	for _, item := range items {
		p.Items[item.ID] = item
	}

	return p, nil
}

// Save replaces the user's record in one transaction
func (s *ProgressStore) Save(ctx context.Context, p *domain.UserProgress) error {
	doc, err := marshalDocuments(p)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO user_progress (user_id, profile, total_xp, current_level,
				current_streak, longest_streak, last_activity_date, streak_start_date,
				emitted_milestones, completed_levels, achievements, daily, pronunciation,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (user_id) DO UPDATE SET
				profile = EXCLUDED.profile,
				total_xp = EXCLUDED.total_xp,
				current_level = EXCLUDED.current_level,
				current_streak = EXCLUDED.current_streak,
				longest_streak = EXCLUDED.longest_streak,
				last_activity_date = EXCLUDED.last_activity_date,
				streak_start_date = EXCLUDED.streak_start_date,
				emitted_milestones = EXCLUDED.emitted_milestones,
				completed_levels = EXCLUDED.completed_levels,
				achievements = EXCLUDED.achievements,
				daily = EXCLUDED.daily,
				pronunciation = EXCLUDED.pronunciation,
				updated_at = EXCLUDED.updated_at
		`,
			p.UserID, doc.profile, p.TotalXP, p.CurrentLevel,
			p.Streak.Current, p.Streak.Longest, p.Streak.LastActivity, p.Streak.StreakStart,
			doc.milestones, doc.levels, doc.achievements, doc.daily, doc.pronunciation,
			p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert progress: %w", err)
		}

		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM topic_progress WHERE user_id = $1`, p.UserID)
		batch.Queue(`DELETE FROM review_items WHERE user_id = $1`, p.UserID)
		for _, tp := range p.Topics {
			batch.Queue(`
				INSERT INTO topic_progress (user_id, topic_id, status, phrases_learned,
					conversations_completed, practice_sessions, last_practiced, completion_date)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, p.UserID, tp.TopicID, string(tp.Status), tp.PhrasesLearned,
				tp.ConversationsCompleted, tp.PracticeSessions, tp.LastPracticed, tp.CompletionDate)
		}
		for _, it := range p.Items {
			batch.Queue(`
				INSERT INTO review_items (id, user_id, phrase, translation, topic_id,
					interval_days, repetitions, ease_factor, next_review, last_reviewed, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`, it.ID, p.UserID, it.Phrase, it.Translation, it.TopicID,
				it.Interval, it.Repetitions, it.EaseFactor, it.NextReview, it.LastReviewed, it.CreatedAt)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("write topics and items: %w", err)
		}
		return nil
	})
}

// Users lists users with a stored record
func (s *ProgressStore) Users(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM user_progress ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// CountDue counts review items due at now without loading the record
func (s *ProgressStore) CountDue(ctx context.Context, userID string, now time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM review_items WHERE user_id = $1 AND next_review <= $2`,
		userID, now,
	).Scan(&count)
	return count, err
}

type documents struct {
	profile, milestones, levels, achievements, daily, pronunciation []byte
}

func marshalDocuments(p *domain.UserProgress) (*documents, error) {
	var d documents
	fields := []struct {
		dst *[]byte
		src any
	}{
		{&d.profile, p.Profile},
		{&d.milestones, orEmpty(p.EmittedMilestones)},
		{&d.levels, orEmpty(p.CompletedLevels)},
		{&d.achievements, orEmpty(p.Achievements)},
		{&d.daily, p.Daily},
		{&d.pronunciation, orEmpty(p.Pronunciation)},
	}
	for _, f := range fields {
		data, err := json.Marshal(f.src)
		if err != nil {
			return nil, fmt.Errorf("marshal progress document: %w", err)
		}
		*f.dst = data
	}
	return &d, nil
}

func scanProgress(row pgx.Row) (*domain.UserProgress, error) {
	var p domain.UserProgress
	var d documents

	err := row.Scan(
		&p.UserID, &d.profile, &p.TotalXP, &p.CurrentLevel,
		&p.Streak.Current, &p.Streak.Longest, &p.Streak.LastActivity, &p.Streak.StreakStart,
		&d.milestones, &d.levels, &d.achievements, &d.daily, &d.pronunciation,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	targets := []struct {
		src []byte
		dst any
	}{
		{d.profile, &p.Profile},
		{d.milestones, &p.EmittedMilestones},
		{d.levels, &p.CompletedLevels},
		{d.achievements, &p.Achievements},
		{d.daily, &p.Daily},
		{d.pronunciation, &p.Pronunciation},
	}
	for _, t := range targets {
		if len(t.src) == 0 {
			continue
		}
		if err := json.Unmarshal(t.src, t.dst); err != nil {
			return nil, fmt.Errorf("unmarshal progress document: %w", err)
		}
	}

	p.Normalize()
	return &p, nil
}

func scanTopic(row pgx.CollectableRow) (*domain.TopicProgress, error) {
	var tp domain.TopicProgress
	var status string
	err := row.Scan(&tp.TopicID, &status, &tp.PhrasesLearned, &tp.ConversationsCompleted,
		&tp.PracticeSessions, &tp.LastPracticed, &tp.CompletionDate)
	tp.Status = domain.TopicStatus(status)
	return &tp, err
}

func scanItem(row pgx.CollectableRow) (*domain.ReviewItem, error) {
	var it domain.ReviewItem
	err := row.Scan(&it.ID, &it.Phrase, &it.Translation, &it.TopicID, &it.Interval,
		&it.Repetitions, &it.EaseFactor, &it.NextReview, &it.LastReviewed, &it.CreatedAt)
	return &it, err
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
