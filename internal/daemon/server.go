package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/lingua/internal/achievement"
	"github.com/felixgeelhaar/lingua/internal/catalog"
	"github.com/felixgeelhaar/lingua/internal/config"
	"github.com/felixgeelhaar/lingua/internal/conversation"
	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/felixgeelhaar/lingua/internal/llm"
	"github.com/felixgeelhaar/lingua/internal/mcp"
	"github.com/felixgeelhaar/lingua/internal/notify"
	"github.com/felixgeelhaar/lingua/internal/progress"
	"github.com/felixgeelhaar/lingua/internal/queue"
	"github.com/felixgeelhaar/lingua/internal/reminder"
	"github.com/felixgeelhaar/lingua/internal/srs"
	"github.com/felixgeelhaar/lingua/internal/storage"
	"github.com/felixgeelhaar/lingua/internal/tutor"
)

// Version is reported by /v1/status
const Version = "0.3.0"

// Server represents the Lingua daemon HTTP server
type Server struct {
	cfg     *config.LocalConfig
	server  *http.Server
	router  *http.ServeMux
	logger  *slog.Logger
	started time.Time

	// Services
	catalog      *catalog.Registry
	llmRegistry  *llm.Registry
	progress     *progress.Engine
	reviews      *srs.Service
	sessions     *conversation.Manager
	translator   tutor.Translator
	achievements *achievement.Service
	reminders    *reminder.Scheduler
	consumer     *queue.Consumer
	telegram     *notify.Telegram
	tutorMode    string

	closers []func() error
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	Config *config.LocalConfig
	// DataDir holds progress, sessions and the database; defaults to ~/.lingua
	DataDir string
	Logger  *slog.Logger

	// Collaborator overrides, used instead of the configured tutor
	Chat       tutor.Chat
	Voice      tutor.Voice
	Translator tutor.Translator
	// Notifier receives Telegram messages instead of a connected bot
	Notifier notify.Sender
}

// NewServer creates a new daemon server
func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		cfg.Config = config.DefaultLocalConfig()
	}
	if err := cfg.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DataDir == "" {
		dir, err := config.LinguaDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}

	s := &Server{
		cfg:    cfg.Config,
		router: http.NewServeMux(),
		logger: cfg.Logger,
	}

	if err := s.setup(ctx, cfg); err != nil {
		s.close()
		return nil, err
	}

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Config.Daemon.Bind, cfg.Config.Daemon.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // tutor replies can be slow
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

func (s *Server) setup(ctx context.Context, cfg ServerConfig) error {
	// Topic catalog
	loader := catalog.BuiltinLoader()
	if cfg.Config.Catalog.Dir != "" {
		loader = catalog.NewDirLoader(cfg.Config.Catalog.Dir)
	}
	s.catalog = catalog.NewRegistry(loader)
	if err := s.catalog.Load(); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	// Progress store
	backend, closeBackend, err := openBackend(ctx, cfg.Config, cfg.DataDir)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, closeBackend)
	store := storage.New(backend)

	// Events: published in-process, optionally relayed through RabbitMQ
	events := domain.NewEventDispatcher()
	s.achievements = achievement.NewService(store, s.logger)
	if cfg.Config.Queue.Enabled {
		if err := s.setupQueue(events); err != nil {
			return err
		}
	} else {
		s.achievements.Subscribe(events)
	}

	s.progress = progress.NewEngine(store, s.catalog,
		progress.WithEvents(events),
		progress.WithLogger(s.logger),
	)
	s.reviews = srs.NewService(store, events)

	// Tutor collaborators
	chat, voice, translator, err := s.setupTutor(cfg)
	if err != nil {
		return err
	}
	s.translator = translator

	archive, err := conversation.NewFileArchive(filepath.Join(cfg.DataDir, "sessions"))
	if err != nil {
		return fmt.Errorf("create session archive: %w", err)
	}
	s.sessions = conversation.NewManager(s.catalog, conversation.Deps{
		Chat:     chat,
		Voice:    voice,
		Progress: s.progress,
		Archive:  archive,
		Logger:   s.logger,
	})

	if err := s.setupNotify(cfg, events); err != nil {
		return err
	}

	if err := s.setupNotify(cfg, events); err != nil {
		return err
	}

	if cfg.Config.Reminders.Enabled {
		s.reminders = reminder.New(store, s.reviews, events, reminder.Config{
			StartHour: cfg.Config.Reminders.StartHour,
			EndHour:   cfg.Config.Reminders.EndHour,
			MaxCount:  cfg.Config.Reminders.MaxCount,
		}, s.logger)
	}

	return nil
}

// setupQueue forwards local events to the exchange and feeds achievements
// from the queue, so other consumers see the same stream.
func (s *Server) setupQueue(events *domain.EventDispatcher) error {
	conn, err := queue.Dial(s.cfg.Queue.URL)
	if err != nil {
		return fmt.Errorf("connect queue: %w", err)
	}
	s.closers = append(s.closers, conn.Close)

	queue.NewPublisher(conn, queue.DefaultPublisherConfig(), s.logger).Forward(events)

	delivered := domain.NewEventDispatcher()
	s.achievements.Subscribe(delivered)

	consumerCfg := queue.DefaultConsumerConfig()
	if s.cfg.Queue.Queue != "" {
		consumerCfg.Queue = s.cfg.Queue.Queue
	}
	s.consumer = queue.NewConsumer(conn, queue.Dispatch(delivered), consumerCfg, s.logger)
	return nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)
	s.router.HandleFunc("GET /v1/config", s.handleGetConfig)

	// Catalog
	s.router.HandleFunc("GET /v1/topics", s.handleListTopics)
	s.router.HandleFunc("POST /v1/catalog/import", s.handleImportPhrases)

	// Progress
	s.router.HandleFunc("GET /v1/users/{user}/progress", s.handleGetProgress)
	s.router.HandleFunc("GET /v1/users/{user}/stats", s.handleDailyStats)
	s.router.HandleFunc("GET /v1/users/{user}/achievements", s.handleAchievements)
	s.router.HandleFunc("POST /v1/users/{user}/checkin", s.handleCheckIn)
	s.router.HandleFunc("PUT /v1/users/{user}/level", s.handleSetLevel)
	s.router.HandleFunc("POST /v1/users/{user}/pronunciation", s.handlePronunciation)
	s.router.HandleFunc("GET /v1/users/{user}/topics/{topic}", s.handleGetTopicProgress)
	s.router.HandleFunc("POST /v1/users/{user}/topics/{topic}/start", s.handleStartTopic)
	s.router.HandleFunc("POST /v1/users/{user}/topics/{topic}/phrases", s.handlePhrasesLearned)
	s.router.HandleFunc("POST /v1/users/{user}/topics/{topic}/complete", s.handleCompleteTopic)

	// Reviews
	s.router.HandleFunc("GET /v1/users/{user}/reviews/due", s.handleDueReviews)
	s.router.HandleFunc("POST /v1/users/{user}/reviews", s.handleAddReview)
	s.router.HandleFunc("POST /v1/users/{user}/reviews/{item}", s.handleReview)

	// Conversations
	s.router.HandleFunc("POST /v1/users/{user}/sessions", s.handleStartSession)
	s.router.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.router.HandleFunc("POST /v1/sessions/{id}/messages", s.handleSendMessage)
	s.router.HandleFunc("POST /v1/sessions/{id}/recording/start", s.handleStartRecording)
	s.router.HandleFunc("POST /v1/sessions/{id}/recording/stop", s.handleStopRecording)
	s.router.HandleFunc("POST /v1/sessions/{id}/leave", s.handleLeave)
	s.router.HandleFunc("POST /v1/sessions/{id}/leave/confirm", s.handleConfirmLeave)

	// Translation
	s.router.HandleFunc("POST /v1/translate", s.handleTranslate)
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	return recoveryMiddleware(s.logger, correlationIDMiddleware(loggingMiddleware(s.logger, s.router)))
}

// MCP returns an MCP server over this daemon's services. It can be served
// without calling Start.
func (s *Server) MCP() *mcp.Server {
	return mcp.NewServer(mcp.Config{
		Topics:      s.catalog,
		Progress:    s.progress,
		Reviews:     s.reviews,
		Sessions:    s.sessions,
		Translator:  s.translator,
		DefaultUser: s.cfg.User.ID,
		TranslateTo: s.cfg.Tutor.TranslateTo,
	})
}

// Start starts background jobs and the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.started = time.Now()

	if s.consumer != nil {
		if err := s.consumer.Start(ctx); err != nil {
			return fmt.Errorf("start event consumer: %w", err)
		}
	}
	if s.reminders != nil {
		if err := s.reminders.Start(); err != nil {
			return err
		}
	}
	if s.telegram != nil {
		s.telegram.Start(ctx)
	}

	s.logger.Info("starting lingua daemon",
		"addr", s.server.Addr,
		"tutor", s.tutorMode,
		"llm_providers", s.llmRegistry.List(),
		"topics", s.catalog.Stats().TopicCount,
	)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down daemon...")

	err := s.server.Shutdown(ctx)

	if s.reminders != nil {
		s.reminders.Stop()
	}
	// open conversations end as abandoned
	s.sessions.Close(ctx)
	if s.consumer != nil {
		s.consumer.Stop()
	}
	if s.telegram != nil {
		s.telegram.Stop()
	}
	s.close()

	return err
}

func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("close failed", "error", err)
		}
	}
	s.closers = nil
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	resp := map[string]any{
		"error": message,
	}
	if err != nil {
		resp["details"] = err.Error()
	}
	s.jsonResponse(w, status, resp)
}

// writeError maps an error kind to its status code
func (s *Server) writeError(w http.ResponseWriter, message string, err error) {
	s.jsonError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), conversation.IsLocalError(err):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
