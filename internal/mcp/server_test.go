package mcp

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/felixgeelhaar/lingua/internal/catalog"
	"github.com/felixgeelhaar/lingua/internal/conversation"
	"github.com/felixgeelhaar/lingua/internal/progress"
	"github.com/felixgeelhaar/lingua/internal/srs"
	"github.com/felixgeelhaar/lingua/internal/storage"
	"github.com/felixgeelhaar/lingua/internal/tutor"
)

// scriptedChat completes the lesson when the learner says goodbye
type scriptedChat struct{}

func (scriptedChat) InitTopic(ctx context.Context, topicID, userID, levelTag string) error {
	return nil
}

func (scriptedChat) SendMessage(ctx context.Context, text string, history []tutor.Turn, meta tutor.SessionMeta) (*tutor.Reply, error) {
	return &tutor.Reply{
		Text:      "You said: " + text,
		Completed: strings.EqualFold(text, "goodbye"),
	}, nil
}

func (scriptedChat) EndSession(ctx context.Context, userID, sessionID string) error { return nil }

type upperTranslator struct{}

func (upperTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	return target + ":" + strings.ToUpper(text), nil
}

// setupTestServer creates a test MCP server backed by in-memory storage
func setupTestServer(t *testing.T) *Server {
	t.Helper()

	registry := catalog.NewRegistry(catalog.BuiltinLoader())
	if err := registry.Load(); err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	store := storage.New(storage.NewMemoryBackend())
	engine := progress.NewEngine(store, registry)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := conversation.NewManager(registry, conversation.Deps{
		Chat:     scriptedChat{},
		Progress: engine,
		Logger:   logger,
	})
	t.Cleanup(func() { sessions.Close(context.Background()) })

	return NewServer(Config{
		Topics:      registry,
		Progress:    engine,
		Reviews:     srs.NewService(store, nil),
		Sessions:    sessions,
		Translator:  upperTranslator{},
		DefaultUser: "me",
		TranslateTo: "fa",
	})
}

func TestNewServer(t *testing.T) {
	s := setupTestServer(t)
	if s.GetMCPServer() == nil {
		t.Fatal("expected non-nil MCP server")
	}
}

func TestServerConfig(t *testing.T) {
	// nil services must not panic at construction
	if NewServer(Config{}) == nil {
		t.Fatal("expected non-nil server even with empty config")
	}
}

func TestHandleTopics(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()

	all, err := s.handleTopics(ctx, TopicsInput{})
	if err != nil {
		t.Fatalf("handleTopics() error = %v", err)
	}
	levelOne, err := s.handleTopics(ctx, TopicsInput{Level: 1})
	if err != nil {
		t.Fatalf("handleTopics(level 1) error = %v", err)
	}
	if len(levelOne.Topics) == 0 || len(levelOne.Topics) >= len(all.Topics) {
		t.Errorf("level 1 topics = %d, all = %d", len(levelOne.Topics), len(all.Topics))
	}
	for _, topic := range levelOne.Topics {
		if topic.Level != 1 {
			t.Errorf("topic %s level = %d; want 1", topic.ID, topic.Level)
		}
	}
}

func TestConversationTools(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()

	started, err := s.handleStart(ctx, StartInput{TopicID: "greetings"})
	if err != nil {
		t.Fatalf("handleStart() error = %v", err)
	}
	if started.LevelTag != "beginner" || started.Greeting == "" {
		t.Errorf("start = %+v", started)
	}

	said, err := s.handleSay(ctx, SayInput{SessionID: started.SessionID, Text: "Hello"})
	if err != nil {
		t.Fatalf("handleSay() error = %v", err)
	}
	if said.Reply != "You said: Hello" || said.Completed || said.Messages != 1 {
		t.Errorf("say = %+v", said)
	}

	// incomplete lessons stay open without discard
	left, err := s.handleLeave(ctx, LeaveInput{SessionID: started.SessionID})
	if err != nil {
		t.Fatalf("handleLeave() error = %v", err)
	}
	if left.Left {
		t.Error("incomplete lesson left without discard")
	}

	said, err = s.handleSay(ctx, SayInput{SessionID: started.SessionID, Text: "goodbye"})
	if err != nil {
		t.Fatalf("handleSay() error = %v", err)
	}
	if !said.Completed {
		t.Error("lesson should be completed")
	}

	left, err = s.handleLeave(ctx, LeaveInput{SessionID: started.SessionID})
	if err != nil {
		t.Fatalf("handleLeave() error = %v", err)
	}
	if !left.Left || !left.Saved {
		t.Errorf("leave = %+v; want left and saved", left)
	}

	prog, err := s.handleProgress(ctx, UserInput{})
	if err != nil {
		t.Fatalf("handleProgress() error = %v", err)
	}
	if prog.UserID != "me" || prog.XP == 0 || prog.TopicsStarted != 1 {
		t.Errorf("progress = %+v", prog)
	}
}

func TestHandleLeave_Discard(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()

	started, err := s.handleStart(ctx, StartInput{UserID: "ana", TopicID: "family"})
	if err != nil {
		t.Fatalf("handleStart() error = %v", err)
	}

	left, err := s.handleLeave(ctx, LeaveInput{SessionID: started.SessionID, Discard: true})
	if err != nil {
		t.Fatalf("handleLeave() error = %v", err)
	}
	if !left.Left || left.Saved {
		t.Errorf("leave = %+v; want left without saving", left)
	}

	if _, err := s.handleSay(ctx, SayInput{SessionID: started.SessionID, Text: "hi"}); err == nil {
		t.Error("expected error sending to a discarded session")
	}
}

func TestHandleStart_UnknownTopic(t *testing.T) {
	s := setupTestServer(t)

	if _, err := s.handleStart(context.Background(), StartInput{TopicID: "quantum"}); err == nil {
		t.Error("expected error for unknown topic")
	}
}

func TestReviewTools(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()

	due, err := s.handleDue(ctx, DueInput{})
	if err != nil {
		t.Fatalf("handleDue() error = %v", err)
	}
	if len(due.Items) != 0 {
		t.Errorf("due items = %d; want 0 for a new learner", len(due.Items))
	}

	if _, err := s.handleReview(ctx, ReviewInput{ItemID: "missing", Quality: 4}); err == nil {
		t.Error("expected error reviewing an unknown item")
	}
}

func TestHandleTranslate(t *testing.T) {
	s := setupTestServer(t)

	out, err := s.handleTranslate(context.Background(), TranslateInput{Text: "hi"})
	if err != nil {
		t.Fatalf("handleTranslate() error = %v", err)
	}
	if out.Translation != "fa:HI" {
		t.Errorf("translation = %q; want fa:HI", out.Translation)
	}

	bare := NewServer(Config{})
	if _, err := bare.handleTranslate(context.Background(), TranslateInput{Text: "hi"}); err == nil {
		t.Error("expected error without a translator")
	}
}

func TestUserOr(t *testing.T) {
	s := &Server{user: "me"}
	if got := s.userOr(""); got != "me" {
		t.Errorf("userOr(\"\") = %q; want me", got)
	}
	if got := s.userOr("ana"); got != "ana" {
		t.Errorf("userOr(ana) = %q; want ana", got)
	}
}

