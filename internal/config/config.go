package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverLocal    = "local"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds environment configuration for server deployments
type Config struct {
	// Server
	Port     int
	Debug    bool
	LogLevel string

	// Storage
	StorageDriver string
	DatabaseURL   string
	DataDir       string

	// RabbitMQ; empty disables event delivery
	RabbitMQURL string

	// Tutor backend; empty uses the LLM tutor
	TutorURL            string
	TutorTimeoutSeconds int
	TranslateTo         string

	// LLM
	LLMProvider string // claude, openai, ollama
	LLMAPIKey   string
	LLMModel    string
	OllamaURL   string

	// Reminders
	ReminderStartHour int
	ReminderEndHour   int

	// Telegram notifications; empty token disables them
	TelegramToken  string
	TelegramChatID int64

	// Topic catalog directory; empty uses the built-in catalog
	CatalogDir string
}

// Load reads configuration from the environment. Variables in the given
// .env files (default ".env") are applied first and never override values
// already set in the process environment; missing files are skipped.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Port:                getEnvInt("PORT", 8080),
		Debug:               getEnvBool("DEBUG", false),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		StorageDriver:       getEnv("STORAGE_DRIVER", DriverSQLite),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DataDir:             getEnv("DATA_DIR", "./data"),
		RabbitMQURL:         getEnv("RABBITMQ_URL", ""),
		TutorURL:            getEnv("TUTOR_URL", ""),
		TutorTimeoutSeconds: getEnvInt("TUTOR_TIMEOUT", 30),
		TranslateTo:         getEnv("TRANSLATE_TO", "fa"),
		LLMProvider:         getEnv("LLM_PROVIDER", "claude"),
		LLMAPIKey:           getEnv("LLM_API_KEY", ""),
		LLMModel:            getEnv("LLM_MODEL", ""),
		OllamaURL:           getEnv("OLLAMA_URL", "http://localhost:11434"),
		ReminderStartHour:   getEnvInt("REMINDER_START_HOUR", 8),
		ReminderEndHour:     getEnvInt("REMINDER_END_HOUR", 21),
		TelegramToken:       getEnv("TELEGRAM_TOKEN", ""),
		TelegramChatID:      getEnvInt64("TELEGRAM_CHAT_ID", 0),
		CatalogDir:          getEnv("CATALOG_DIR", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late at startup
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	if err := validateDriver(c.StorageDriver, c.DatabaseURL); err != nil {
		return err
	}
	if err := validateHours(c.ReminderStartHour, c.ReminderEndHour); err != nil {
		return err
	}
	if c.TutorTimeoutSeconds <= 0 {
		return fmt.Errorf("TUTOR_TIMEOUT must be positive")
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required with TELEGRAM_TOKEN")
	}
	return nil
}

// Apply overlays the environment settings onto a local config, for running
// the daemon as a shared service rather than on a learner's machine.
func (c *Config) Apply(lc *LocalConfig) {
	lc.Daemon.Port = c.Port
	lc.Daemon.Bind = "0.0.0.0"
	lc.Daemon.LogLevel = c.LogLevel
	if c.Debug {
		lc.Daemon.LogLevel = "debug"
	}

	lc.Storage.Driver = c.StorageDriver
	lc.Storage.DatabaseURL = c.DatabaseURL
	lc.Catalog.Dir = c.CatalogDir

	if c.RabbitMQURL != "" {
		lc.Queue.Enabled = true
		lc.Queue.URL = c.RabbitMQURL
	}

	lc.Tutor.TimeoutSeconds = c.TutorTimeoutSeconds
	lc.Tutor.TranslateTo = c.TranslateTo
	if c.TutorURL != "" {
		lc.Tutor.Mode = "remote"
		lc.Tutor.URL = c.TutorURL
	}

	if p, ok := lc.LLM.Providers[c.LLMProvider]; ok {
		lc.LLM.DefaultProvider = c.LLMProvider
		p.Enabled = true
		if c.LLMAPIKey != "" {
			p.APIKey = c.LLMAPIKey
		}
		if c.LLMModel != "" {
			p.Model = c.LLMModel
		}
	}
	if ollama, ok := lc.LLM.Providers["ollama"]; ok {
		ollama.URL = c.OllamaURL
	}

	lc.Reminders.StartHour = c.ReminderStartHour
	lc.Reminders.EndHour = c.ReminderEndHour

	if c.TelegramToken != "" {
		lc.Notify.Telegram = TelegramConfig{Enabled: true, ChatID: c.TelegramChatID, Token: c.TelegramToken}
	}
}

func validateDriver(driver, databaseURL string) error {
	switch driver {
	case DriverMemory, DriverLocal, DriverSQLite:
		return nil
	case DriverPostgres:
		if databaseURL == "" {
			return fmt.Errorf("postgres storage requires DATABASE_URL")
		}
		return nil
	default:
		return fmt.Errorf("unknown storage driver %q", driver)
	}
}

func validateHours(start, end int) error {
	if start < 0 || start > 23 || end < 0 || end > 23 {
		return fmt.Errorf("reminder hours must be within 0-23, got %d-%d", start, end)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
