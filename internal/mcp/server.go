package mcp

import (
	"context"
	"errors"
	"fmt"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"
	"github.com/felixgeelhaar/lingua/internal/conversation"
	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/felixgeelhaar/lingua/internal/progress"
	"github.com/felixgeelhaar/lingua/internal/tutor"
)

// Topics lists catalog topics
type Topics interface {
	ListTopics() []*domain.Topic
	TopicsForLevel(level int) []*domain.Topic
}

// Reviews is the spaced repetition surface exposed as tools
type Reviews interface {
	Due(ctx context.Context, userID string, limit int) ([]*domain.ReviewItem, error)
	Review(ctx context.Context, userID, itemID string, quality int) (*domain.ReviewItem, error)
}

// Server wraps the MCP server with Lingua functionality
type Server struct {
	mcpServer   *server.Server
	topics      Topics
	progress    progress.Service
	reviews     Reviews
	sessions    *conversation.Manager
	translator  tutor.Translator
	user        string
	translateTo string
}

// Config contains configuration for the MCP server
type Config struct {
	Topics     Topics
	Progress   progress.Service
	Reviews    Reviews
	Sessions   *conversation.Manager
	Translator tutor.Translator // optional

	// DefaultUser is used when a tool call names no user
	DefaultUser string
	TranslateTo string
}

// NewServer creates a new MCP server for Lingua
func NewServer(cfg Config) *Server {
	s := &Server{
		topics:      cfg.Topics,
		progress:    cfg.Progress,
		reviews:     cfg.Reviews,
		sessions:    cfg.Sessions,
		translator:  cfg.Translator,
		user:        cfg.DefaultUser,
		translateTo: cfg.TranslateTo,
	}

	s.mcpServer = server.New(server.Info{
		Name:    "lingua",
		Version: "0.3.0",
	}, server.WithInstructions(`
Lingua is a conversational language tutor that tracks learning progress.

Available tools:
- lingua_topics: List topics, optionally for one level
- lingua_progress: Show XP, level, streak and topic counts
- lingua_start: Open a conversation on a topic
- lingua_say: Send a message in an open conversation
- lingua_leave: Leave a conversation (incomplete lessons need discard=true)
- lingua_due: List phrases due for review
- lingua_review: Grade a review from 0 (blackout) to 5 (perfect)
- lingua_translate: Translate a phrase
`))

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("lingua_topics").
		Description("List curriculum topics, optionally filtered by level (1-4).").
		Handler(s.handleTopics)

	s.mcpServer.Tool("lingua_progress").
		Description("Show the learner's XP, level, streak and topic progress.").
		Handler(s.handleProgress)

	s.mcpServer.Tool("lingua_start").
		Description("Start a conversation with the tutor on a topic.").
		Handler(s.handleStart)

	s.mcpServer.Tool("lingua_say").
		Description("Send a message in an open conversation and get the tutor's reply.").
		Handler(s.handleSay)

	s.mcpServer.Tool("lingua_leave").
		Description("Leave a conversation. Incomplete lessons are only left with discard=true.").
		Handler(s.handleLeave)

	s.mcpServer.Tool("lingua_due").
		Description("List phrases due for spaced repetition review.").
		Handler(s.handleDue)

	s.mcpServer.Tool("lingua_review").
		Description("Grade recall of a review item (0-5) and reschedule it.").
		Handler(s.handleReview)

	s.mcpServer.Tool("lingua_translate").
		Description("Translate text into the learner's translation language.").
		Handler(s.handleTranslate)
}

// Input/Output types for tools

type TopicsInput struct {
	Level int `json:"level,omitempty" jsonschema:"description=Curriculum level 1-4; 0 lists every topic"`
}

type TopicSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Level   int    `json:"level"`
	Phrases int    `json:"phrases"`
}

type TopicsOutput struct {
	Topics []TopicSummary `json:"topics"`
}

type UserInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"description=Learner ID (defaults to the configured user)"`
}

type ProgressOutput struct {
	UserID          string `json:"user_id"`
	XP              int    `json:"xp"`
	Level           int    `json:"level"`
	Curriculum      string `json:"curriculum"`
	Streak          int    `json:"streak"`
	TopicsStarted   int    `json:"topics_started"`
	TopicsCompleted int    `json:"topics_completed"`
	PhrasesLearned  int    `json:"phrases_learned"`
	ItemsDue        int    `json:"items_due"`
}

type StartInput struct {
	UserID  string `json:"user_id,omitempty" jsonschema:"description=Learner ID (defaults to the configured user)"`
	TopicID string `json:"topic_id" jsonschema:"description=Topic ID from lingua_topics"`
}

type StartOutput struct {
	SessionID string `json:"session_id"`
	TopicID   string `json:"topic_id"`
	LevelTag  string `json:"level_tag"`
	Greeting  string `json:"greeting"`
}

type SayInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID from lingua_start"`
	Text      string `json:"text" jsonschema:"description=What the learner says"`
}

type SayOutput struct {
	Reply       string `json:"reply,omitempty"`
	Translation string `json:"translation,omitempty"`
	Notice      string `json:"notice,omitempty"`
	Completed   bool   `json:"completed"`
	Messages    int    `json:"messages"`
}

type LeaveInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID to leave"`
	Discard   bool   `json:"discard,omitempty" jsonschema:"description=Leave an incomplete lesson without earning XP"`
}

type LeaveOutput struct {
	Left    bool   `json:"left"`
	Saved   bool   `json:"saved"`
	Message string `json:"message"`
}

type DueInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"description=Learner ID (defaults to the configured user)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Maximum items to return"`
}

type DueItem struct {
	ID          string `json:"id"`
	Phrase      string `json:"phrase"`
	Translation string `json:"translation"`
	TopicID     string `json:"topic_id"`
}

type DueOutput struct {
	Items []DueItem `json:"items"`
}

type ReviewInput struct {
	UserID  string `json:"user_id,omitempty" jsonschema:"description=Learner ID (defaults to the configured user)"`
	ItemID  string `json:"item_id" jsonschema:"description=Review item ID from lingua_due"`
	Quality int    `json:"quality" jsonschema:"description=Recall quality from 0 (blackout) to 5 (perfect)"`
}

type ReviewOutput struct {
	IntervalDays int     `json:"interval_days"`
	EaseFactor   float64 `json:"ease_factor"`
	NextReview   string  `json:"next_review"`
}

type TranslateInput struct {
	Text   string `json:"text" jsonschema:"description=Text to translate"`
	Target string `json:"target,omitempty" jsonschema:"description=Target language code"`
}

type TranslateOutput struct {
	Translation string `json:"translation"`
}

// Tool handlers

func (s *Server) handleTopics(ctx context.Context, input TopicsInput) (TopicsOutput, error) {
	topics := s.topics.ListTopics()
	if input.Level != 0 {
		topics = s.topics.TopicsForLevel(input.Level)
	}

	out := TopicsOutput{Topics: make([]TopicSummary, 0, len(topics))}
	for _, t := range topics {
		out.Topics = append(out.Topics, TopicSummary{
			ID:      t.ID,
			Title:   t.Title,
			Level:   t.Level,
			Phrases: t.TotalPhrases,
		})
	}
	return out, nil
}

func (s *Server) handleProgress(ctx context.Context, input UserInput) (ProgressOutput, error) {
	summary, err := s.progress.Summary(ctx, s.userOr(input.UserID))
	if err != nil {
		return ProgressOutput{}, fmt.Errorf("load progress: %w", err)
	}

	return ProgressOutput{
		UserID:          summary.UserID,
		XP:              summary.Level.TotalXP,
		Level:           summary.Level.Level,
		Curriculum:      summary.Profile.LevelTag(),
		Streak:          summary.Streak.Current,
		TopicsStarted:   summary.TopicsStarted,
		TopicsCompleted: summary.TopicsCompleted,
		PhrasesLearned:  summary.PhrasesLearned,
		ItemsDue:        summary.ItemsDue,
	}, nil
}

func (s *Server) handleStart(ctx context.Context, input StartInput) (StartOutput, error) {
	userID := s.userOr(input.UserID)
	p, err := s.progress.Progress(ctx, userID)
	if err != nil {
		return StartOutput{}, fmt.Errorf("load profile: %w", err)
	}

	sess, err := s.sessions.Start(ctx, userID, input.TopicID, p.Profile.LevelTag())
	if err != nil {
		return StartOutput{}, fmt.Errorf("start conversation: %w", err)
	}

	view := sess.Snapshot()
	out := StartOutput{
		SessionID: view.ID,
		TopicID:   view.TopicID,
		LevelTag:  view.LevelTag,
	}
	if len(view.Messages) > 0 {
		out.Greeting = view.Messages[len(view.Messages)-1].Text
	}
	return out, nil
}

func (s *Server) handleSay(ctx context.Context, input SayInput) (SayOutput, error) {
	sess, err := s.sessions.Get(input.SessionID)
	if err != nil {
		return SayOutput{}, err
	}

	outcome, err := sess.Send(ctx, input.Text)
	if err != nil {
		return SayOutput{}, err
	}

	out := SayOutput{
		Completed: outcome.Completed,
		Messages:  sess.MessageCount(),
	}
	if outcome.Reply != nil {
		out.Reply = outcome.Reply.Text
		out.Translation = outcome.Reply.Translation
	}
	if outcome.Notice != nil {
		out.Notice = outcome.Notice.Text
	}
	return out, nil
}

func (s *Server) handleLeave(ctx context.Context, input LeaveInput) (LeaveOutput, error) {
	decision, res, err := s.sessions.Leave(ctx, input.SessionID)
	if err != nil {
		return LeaveOutput{}, err
	}

	if decision == conversation.LeaveNeedsConfirmation {
		if !input.Discard {
			// withdraw the request so the conversation carries on
			if _, err := s.sessions.ConfirmLeave(ctx, input.SessionID, false); err != nil {
				return LeaveOutput{}, err
			}
			return LeaveOutput{Message: "The lesson is not complete yet. Leave with discard=true to end it without XP."}, nil
		}
		res, err = s.sessions.ConfirmLeave(ctx, input.SessionID, true)
		if err != nil {
			return LeaveOutput{}, err
		}
	}

	out := LeaveOutput{Left: true, Message: "Conversation ended."}
	if res != nil && res.Saved {
		out.Saved = true
		out.Message = "Lesson complete. Progress saved."
	}
	return out, nil
}

func (s *Server) handleDue(ctx context.Context, input DueInput) (DueOutput, error) {
	items, err := s.reviews.Due(ctx, s.userOr(input.UserID), input.Limit)
	if err != nil {
		return DueOutput{}, fmt.Errorf("load due reviews: %w", err)
	}

	out := DueOutput{Items: make([]DueItem, 0, len(items))}
	for _, item := range items {
		out.Items = append(out.Items, DueItem{
			ID:          item.ID,
			Phrase:      item.Phrase,
			Translation: item.Translation,
			TopicID:     item.TopicID,
		})
	}
	return out, nil
}

func (s *Server) handleReview(ctx context.Context, input ReviewInput) (ReviewOutput, error) {
	item, err := s.reviews.Review(ctx, s.userOr(input.UserID), input.ItemID, input.Quality)
	if err != nil {
		return ReviewOutput{}, err
	}

	return ReviewOutput{
		IntervalDays: item.Interval,
		EaseFactor:   item.EaseFactor,
		NextReview:   item.NextReview.Format("2006-01-02"),
	}, nil
}

func (s *Server) handleTranslate(ctx context.Context, input TranslateInput) (TranslateOutput, error) {
	if s.translator == nil {
		return TranslateOutput{}, errors.New("translation is not configured")
	}
	target := input.Target
	if target == "" {
		target = s.translateTo
	}

	text, err := s.translator.Translate(ctx, input.Text, target)
	if err != nil {
		return TranslateOutput{}, fmt.Errorf("translate: %w", err)
	}
	return TranslateOutput{Translation: text}, nil
}

func (s *Server) userOr(id string) string {
	if id != "" {
		return id
	}
	return s.user
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
