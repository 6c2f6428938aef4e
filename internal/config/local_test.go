package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestLinguaDir(t *testing.T) {
	dir, err := LinguaDir()
	if err != nil {
		t.Fatalf("LinguaDir() error = %v", err)
	}
	if filepath.Base(dir) != ".lingua" {
		t.Errorf("LinguaDir() = %q, want ending with .lingua", dir)
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("LinguaDir() = %q, want absolute path", dir)
	}
}

func TestEnsureLinguaDir(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	dir, err := EnsureLinguaDir()
	if err != nil {
		t.Fatalf("EnsureLinguaDir() error = %v", err)
	}

	if want := filepath.Join(tmpHome, ".lingua"); dir != want {
		t.Errorf("EnsureLinguaDir() = %q, want %q", dir, want)
	}

	for _, subdir := range []string{"logs", "progress", "sessions", "catalog"} {
		if _, err := os.Stat(filepath.Join(dir, subdir)); os.IsNotExist(err) {
			t.Errorf("EnsureLinguaDir() should create %s", subdir)
		}
	}
}

func TestDefaultLocalConfig(t *testing.T) {
	cfg := DefaultLocalConfig()

	if cfg.Daemon.Port != 7433 || cfg.Daemon.Bind != "127.0.0.1" {
		t.Errorf("Daemon = %+v", cfg.Daemon)
	}
	if cfg.User.ID != "me" || cfg.User.Level != 1 {
		t.Errorf("User = %+v", cfg.User)
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Tutor.Mode != "llm" || cfg.Tutor.TranslateTo != "fa" {
		t.Errorf("Tutor = %+v", cfg.Tutor)
	}
	if cfg.LLM.DefaultProvider != "auto" || len(cfg.LLM.Providers) != 3 {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if !cfg.Reminders.Enabled || cfg.Reminders.StartHour != 8 || cfg.Reminders.EndHour != 21 {
		t.Errorf("Reminders = %+v", cfg.Reminders)
	}
	if cfg.Queue.Enabled {
		t.Error("queue should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLocalConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *LocalConfig)
	}{
		{"bad port", func(c *LocalConfig) { c.Daemon.Port = 0 }},
		{"level zero", func(c *LocalConfig) { c.User.Level = 0 }},
		{"unknown driver", func(c *LocalConfig) { c.Storage.Driver = "dynamo" }},
		{"postgres without url", func(c *LocalConfig) { c.Storage.Driver = DriverPostgres }},
		{"unknown tutor mode", func(c *LocalConfig) { c.Tutor.Mode = "carrier-pigeon" }},
		{"remote without url", func(c *LocalConfig) { c.Tutor.Mode = "remote"; c.Tutor.URL = "" }},
		{"reminder hour", func(c *LocalConfig) { c.Reminders.EndHour = 25 }},
		{"queue without url", func(c *LocalConfig) { c.Queue.Enabled = true; c.Queue.URL = "" }},
		{"telegram without chat", func(c *LocalConfig) { c.Notify.Telegram.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultLocalConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}

	cfg := DefaultLocalConfig()
	cfg.Reminders.Enabled = false
	cfg.Reminders.EndHour = 99
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled reminders should not be validated: %v", err)
	}
}

func TestLoadSecrets(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DefaultLocalConfig()

	secretsContent := `providers:
  claude:
    api_key: sk-claude-test-key
  openai:
    api_key: sk-openai-test-key
  unknown_provider:
    api_key: ignored
telegram:
  token: "123:abc"
`
	if err := os.WriteFile(filepath.Join(tmpDir, "secrets.yaml"), []byte(secretsContent), 0600); err != nil {
		t.Fatalf("write secrets: %v", err)
	}

	if err := loadSecrets(tmpDir, cfg); err != nil {
		t.Fatalf("loadSecrets() error = %v", err)
	}

	if got := cfg.LLM.Providers["claude"].APIKey; got != "sk-claude-test-key" {
		t.Errorf("claude APIKey = %q", got)
	}
	if got := cfg.LLM.Providers["openai"].APIKey; got != "sk-openai-test-key" {
		t.Errorf("openai APIKey = %q", got)
	}
	if got := cfg.LLM.Providers["ollama"].APIKey; got != "" {
		t.Errorf("ollama APIKey = %q, want empty", got)
	}
	if got := cfg.Notify.Telegram.Token; got != "123:abc" {
		t.Errorf("telegram token = %q", got)
	}
}

func TestLoadSecrets_Missing(t *testing.T) {
	if err := loadSecrets(t.TempDir(), DefaultLocalConfig()); err != nil {
		t.Errorf("loadSecrets() should not error when secrets file is missing: %v", err)
	}
}

func TestLoadSecrets_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "secrets.yaml"), []byte("invalid: yaml: content:"), 0600); err != nil {
		t.Fatalf("write secrets: %v", err)
	}
	if err := loadSecrets(tmpDir, DefaultLocalConfig()); err == nil {
		t.Error("loadSecrets() should error on invalid YAML")
	}
}

func TestLoadLocalConfigFrom_Defaults(t *testing.T) {
	cfg, err := LoadLocalConfigFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadLocalConfigFrom() error = %v", err)
	}
	if cfg.Daemon.Port != 7433 {
		t.Errorf("Daemon.Port = %d, want default 7433", cfg.Daemon.Port)
	}
}

func TestLoadLocalConfigFrom_File(t *testing.T) {
	dir := t.TempDir()
	content := `daemon:
  port: 9999
user:
  id: ana
  level: 2
storage:
  driver: local
tutor:
  mode: remote
  url: http://tutor.local:5000
reminders:
  enabled: true
  start_hour: 9
  end_hour: 20
queue:
  enabled: true
  url: amqp://rabbit:5672/
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	secrets := "providers:\n  claude:\n    api_key: sk-file\n"
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), []byte(secrets), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadLocalConfigFrom(dir)
	if err != nil {
		t.Fatalf("LoadLocalConfigFrom() error = %v", err)
	}

	if cfg.Daemon.Port != 9999 {
		t.Errorf("Daemon.Port = %d, want 9999", cfg.Daemon.Port)
	}
	// unspecified fields keep their defaults
	if cfg.Daemon.Bind != "127.0.0.1" {
		t.Errorf("Daemon.Bind = %q, want default", cfg.Daemon.Bind)
	}
	if cfg.User.ID != "ana" || cfg.User.Level != 2 {
		t.Errorf("User = %+v", cfg.User)
	}
	if cfg.Tutor.Mode != "remote" || cfg.Tutor.URL != "http://tutor.local:5000" || cfg.Tutor.TimeoutSeconds != 30 {
		t.Errorf("Tutor = %+v", cfg.Tutor)
	}
	if !cfg.Queue.Enabled || cfg.Queue.URL != "amqp://rabbit:5672/" {
		t.Errorf("Queue = %+v", cfg.Queue)
	}
	if cfg.LLM.Providers["claude"].APIKey != "sk-file" {
		t.Error("secrets not applied")
	}
	if got := cfg.StoragePath(dir); got != filepath.Join(dir, "progress") {
		t.Errorf("StoragePath() = %q", got)
	}
}

func TestLoadLocalConfigFrom_SecretsWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	secrets := "providers:\n  openai:\n    api_key: sk-only\n"
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), []byte(secrets), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadLocalConfigFrom(dir)
	if err != nil {
		t.Fatalf("LoadLocalConfigFrom() error = %v", err)
	}
	if cfg.LLM.Providers["openai"].APIKey != "sk-only" {
		t.Error("secrets should load even without config.yaml")
	}
}

func TestLoadLocalConfigFrom_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("daemon: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadLocalConfigFrom(dir); err == nil {
		t.Error("LoadLocalConfigFrom() should error on invalid YAML")
	}
}

func TestSaveLocalConfig(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	cfg := DefaultLocalConfig()
	cfg.User.ID = "ana"
	cfg.LLM.Providers["claude"].APIKey = "must-not-be-written"

	if err := SaveLocalConfig(cfg); err != nil {
		t.Fatalf("SaveLocalConfig() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpHome, ".lingua", "config.yaml"))
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}

	var saved LocalConfig
	if err := yaml.Unmarshal(data, &saved); err != nil {
		t.Fatalf("parse saved config: %v", err)
	}
	if saved.User.ID != "ana" {
		t.Errorf("saved User.ID = %q", saved.User.ID)
	}
	if saved.LLM.Providers["claude"].APIKey != "" {
		t.Error("API key leaked into config.yaml")
	}

	loaded, err := LoadLocalConfig()
	if err != nil {
		t.Fatalf("LoadLocalConfig() error = %v", err)
	}
	if loaded.User.ID != "ana" {
		t.Errorf("loaded User.ID = %q", loaded.User.ID)
	}
}

func TestSaveSecrets(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	if err := SaveSecrets(map[string]string{"claude": "sk-saved"}); err != nil {
		t.Fatalf("SaveSecrets() error = %v", err)
	}

	path := filepath.Join(tmpHome, ".lingua", "secrets.yaml")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat secrets: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("secrets permissions = %o, want 600", perm)
	}

	cfg, err := LoadLocalConfig()
	if err != nil {
		t.Fatalf("LoadLocalConfig() error = %v", err)
	}
	if cfg.LLM.Providers["claude"].APIKey != "sk-saved" {
		t.Errorf("claude APIKey = %q", cfg.LLM.Providers["claude"].APIKey)
	}
}
