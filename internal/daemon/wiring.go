package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/lingua/internal/config"
	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/felixgeelhaar/lingua/internal/llm"
	"github.com/felixgeelhaar/lingua/internal/notify"
	"github.com/felixgeelhaar/lingua/internal/storage"
	"github.com/felixgeelhaar/lingua/internal/storage/local"
	"github.com/felixgeelhaar/lingua/internal/storage/postgres"
	"github.com/felixgeelhaar/lingua/internal/storage/sqlite"
	"github.com/felixgeelhaar/lingua/internal/tutor"
)

func noClose() error { return nil }

// openBackend opens the configured progress backend. The returned func
// releases it.
func openBackend(ctx context.Context, cfg *config.LocalConfig, dataDir string) (storage.Backend, func() error, error) {
	path := cfg.StoragePath(dataDir)

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return storage.NewMemoryBackend(), noClose, nil

	case config.DriverLocal:
		store, err := local.NewStore(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open local store: %w", err)
		}
		return store, noClose, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		applied, err := db.Migrate(ctx)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		if applied > 0 {
			slog.Info("sqlite migrations applied", "count", applied, "path", path)
		}
		return sqlite.NewProgressStore(db), db.Close, nil

	case config.DriverPostgres:
		if _, err := postgres.Migrate(ctx, cfg.Storage.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		pool, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewProgressStore(pool), func() error { pool.Close(); return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// setupLLMProviders initializes configured LLM providers
func (s *Server) setupLLMProviders(registry *llm.Registry) error {
	for name, providerCfg := range s.cfg.LLM.Providers {
		if !providerCfg.Enabled {
			continue
		}

		switch name {
		case "claude":
			if providerCfg.APIKey == "" {
				s.logger.Debug("Claude provider enabled but no API key set")
				continue
			}
			registry.Register("claude", llm.NewClaudeProvider(llm.ClaudeConfig{
				APIKey: providerCfg.APIKey,
				Model:  providerCfg.Model,
			}))

		case "openai":
			if providerCfg.APIKey == "" {
				s.logger.Debug("OpenAI provider enabled but no API key set")
				continue
			}
			registry.Register("openai", llm.NewOpenAIProvider(llm.OpenAIConfig{
				APIKey: providerCfg.APIKey,
				Model:  providerCfg.Model,
			}))

		case "ollama":
			registry.Register("ollama", llm.NewOllamaProvider(llm.OllamaConfig{
				BaseURL: providerCfg.URL,
				Model:   providerCfg.Model,
			}))

		default:
			continue
		}
		s.logger.Info("registered LLM provider", "name", name, "model", providerCfg.Model)
	}

	if def := s.cfg.LLM.DefaultProvider; def != "" && len(registry.List()) > 0 {
		if err := registry.SetDefault(def); err != nil {
			return err
		}
	}
	return nil
}

// setupTutor builds the chat, voice and translation collaborators, each
// behind its own resilience guard. Voice is only available from the remote
// tutor backend.
func (s *Server) setupTutor(cfg ServerConfig) (tutor.Chat, tutor.Voice, tutor.Translator, error) {
	s.llmRegistry = llm.NewRegistry()
	if err := s.setupLLMProviders(s.llmRegistry); err != nil {
		return nil, nil, nil, fmt.Errorf("setup llm providers: %w", err)
	}

	if cfg.Chat != nil {
		s.tutorMode = "custom"
		return cfg.Chat, cfg.Voice, cfg.Translator, nil
	}

	tc := s.cfg.Tutor
	rc := tutor.DefaultResilienceConfig()
	rc.Logger = s.logger
	if tc.TimeoutSeconds > 0 {
		rc.Timeout = time.Duration(tc.TimeoutSeconds) * time.Second
	}
	if tc.FailureThreshold > 0 {
		rc.FailureThreshold = tc.FailureThreshold
	}
	if tc.MaxConcurrent > 0 {
		rc.MaxConcurrent = tc.MaxConcurrent
	}
	if tc.RatePerSecond > 0 {
		rc.RatePerSecond = tc.RatePerSecond
	}

	mode := tc.Mode
	var provider llm.Provider
	if mode == "llm" {
		p, err := s.llmRegistry.Default()
		if err != nil {
			s.logger.Warn("no LLM provider configured, using the remote tutor", "url", tc.URL)
			mode = "remote"
		} else {
			provider = p
		}
	}
	s.tutorMode = mode

	var (
		chat       tutor.Chat
		voice      tutor.Voice
		translator tutor.Translator
	)
	switch mode {
	case "llm":
		rt := tutor.NewResilientTranslator(tutor.NewLLMTranslator(provider), rc)
		rchat := tutor.NewResilientChat(
			tutor.NewLLMChat(provider, s.catalog, s.logger).WithTranslation(rt, tc.TranslateTo), rc)
		chat, translator = rchat, rt
		s.closers = append(s.closers, rt.Close, rchat.Close)

	default:
		remote := tutor.NewRemoteClient(tc.URL)
		rchat := tutor.NewResilientChat(remote, rc)
		rvoice := tutor.NewResilientVoice(remote, rc)
		rt := tutor.NewResilientTranslator(remote, rc)
		chat, voice, translator = rchat, rvoice, rt
		s.closers = append(s.closers, rchat.Close, rvoice.Close, rt.Close)
	}

	return chat, voice, translator, nil
}

// setupNotify relays events to Telegram when a chat is configured. An
// injected Notifier stands in for the bot connection.
func (s *Server) setupNotify(cfg ServerConfig, events *domain.EventDispatcher) error {
	tg := cfg.Config.Notify.Telegram
	if !tg.Enabled {
		return nil
	}

	sender := cfg.Notifier
	if sender == nil {
		if tg.Token == "" {
			s.logger.Warn("telegram enabled without a token, notifications disabled")
			return nil
		}
		bot, err := notify.NewTelegramBot(tg.Token)
		if err != nil {
			return err
		}
		sender = bot
	}

	s.telegram = notify.NewTelegram(sender, tg.ChatID, s.logger)
	s.telegram.Subscribe(events)
	return nil
}
