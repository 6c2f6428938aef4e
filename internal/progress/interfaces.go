package progress

import (
	"context"

	"github.com/felixgeelhaar/lingua/internal/domain"
)

// Service defines the progress operations used by the daemon handlers,
// the MCP tools and conversation teardown
type Service interface {
	StartTopic(ctx context.Context, userID, topicID string) (*domain.TopicProgress, error)
	RecordPhraseLearned(ctx context.Context, userID, topicID string, count int) (*domain.TopicProgress, error)
	LearnPhrase(ctx context.Context, userID, topicID, phrase, translation string) (*domain.ReviewItem, error)
	RecordConversationTurn(ctx context.Context, userID, topicID string) (*domain.TopicProgress, error)
	CompleteTopic(ctx context.Context, userID, topicID string) (*domain.TopicProgress, error)
	CompletionPercentage(ctx context.Context, userID, topicID string) (int, error)

	// RecordSession credits a completed conversation
	RecordSession(ctx context.Context, r SessionResult) (*domain.TopicProgress, error)

	CheckIn(ctx context.Context, userID string) (bool, error)
	RecordPronunciation(ctx context.Context, userID, topicID, phrase string, score int) error
	SetLevel(ctx context.Context, userID string, level int) (*domain.UserProfile, error)

	Summary(ctx context.Context, userID string) (*Summary, error)
	TopicProgress(ctx context.Context, userID, topicID string) (*TopicView, error)
	DailyStats(ctx context.Context, userID string, days int) ([]domain.DailyStat, error)
	Progress(ctx context.Context, userID string) (*domain.UserProgress, error)
}

// Ensure Engine implements Service
var _ Service = (*Engine)(nil)
