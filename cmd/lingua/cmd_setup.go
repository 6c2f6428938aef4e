package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/lingua/internal/config"
)

// cmdInit initializes Lingua for first-time use
func cmdInit() error {
	fmt.Println("Lingua - First-Time Setup")
	fmt.Println("=========================")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Creating ~/.lingua directory structure... ")
	linguaDir, err := config.EnsureLinguaDir()
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	fmt.Println("✓")

	configPath := filepath.Join(linguaDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Configuration already exists ✓")
	} else {
		cfg := config.DefaultLocalConfig()

		fmt.Printf("Your name or learner ID [%s]: ", cfg.User.ID)
		if id := readLine(reader); id != "" {
			cfg.User.ID = id
		}

		fmt.Print("Starting level 1-4 (1 = beginner) [1]: ")
		if raw := readLine(reader); raw != "" {
			level, err := strconv.Atoi(raw)
			if err != nil || level < 1 || level > 4 {
				fmt.Println("  ⚠ Invalid level, using 1")
			} else {
				cfg.User.Level = level
			}
		}

		fmt.Print("Creating default configuration... ")
		if err := config.SaveLocalConfig(cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println("✓")
	}

	fmt.Println()
	fmt.Println("Tutor Setup")
	fmt.Println("-----------")
	fmt.Println("The tutor runs on Claude (Anthropic), OpenAI or a local Ollama model.")
	fmt.Println()

	cfg, _ := config.LoadLocalConfig()
	if cfg != nil && cfg.LLM.Providers["claude"] != nil && cfg.LLM.Providers["claude"].APIKey != "" {
		fmt.Println("Claude API key: already configured ✓")
	} else {
		fmt.Print("Enter Claude API key (or press Enter to skip): ")
		if key := readLine(reader); key != "" {
			if err := config.SaveSecrets(map[string]string{"claude": key}); err != nil {
				fmt.Printf("  ⚠ Failed to save: %v\n", err)
			} else {
				fmt.Println("  ✓ Saved")
			}
		}
	}

	fmt.Println()
	fmt.Print("Checking Ollama... ")
	if err := checkOllama(""); err != nil {
		fmt.Println("⚠ Not available")
	} else {
		fmt.Println("✓")
	}

	fmt.Println()
	fmt.Println("Setup Complete!")
	fmt.Println("===============")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. lingua start             # Start the daemon")
	fmt.Println("  2. lingua topics 1          # See beginner topics")
	fmt.Println("  3. lingua chat greetings    # Have your first conversation")

	return nil
}

func readLine(r *bufio.Reader) string {
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

// cmdDoctor checks the directory, configuration, tutor and daemon
func cmdDoctor() error {
	fmt.Println("Checking setup...")

	allGood := true

	fmt.Print("Directory: ")
	linguaDir, err := config.LinguaDir()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else if _, err := os.Stat(linguaDir); os.IsNotExist(err) {
		fmt.Println("✗ not created (run 'lingua init')")
		allGood = false
	} else {
		fmt.Printf("✓ %s\n", linguaDir)
	}

	fmt.Print("Config:    ")
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else if err := cfg.Validate(); err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else {
		fmt.Println("✓ loaded")

		fmt.Printf("Tutor:     %s", cfg.Tutor.Mode)
		if cfg.Tutor.Mode == "remote" {
			if err := checkReachable(cfg.Tutor.URL); err != nil {
				fmt.Printf(" ✗ %v\n", err)
				allGood = false
			} else {
				fmt.Printf(" ✓ %s\n", cfg.Tutor.URL)
			}
		} else {
			fmt.Println()
		}

		fmt.Println("\nLLM Providers:")
		ready := 0
		for _, name := range providerNames(cfg) {
			provider := cfg.LLM.Providers[name]
			if !provider.Enabled {
				continue
			}
			fmt.Printf("  %s: ", name)
			switch {
			case name == "ollama":
				if err := checkOllama(provider.URL); err != nil {
					fmt.Printf("✗ %v\n", err)
				} else {
					fmt.Printf("✓ available (model: %s)\n", provider.Model)
					ready++
				}
			case provider.APIKey != "":
				fmt.Printf("✓ configured (model: %s)\n", provider.Model)
				ready++
			default:
				fmt.Printf("✗ no API key (add it to ~/.lingua/secrets.yaml)\n")
			}
		}
		if cfg.Tutor.Mode == "llm" && ready == 0 {
			fmt.Println("  ⚠ no provider ready; the daemon will fall back to the remote tutor")
			allGood = false
		}

		if tg := cfg.Notify.Telegram; tg.Enabled {
			fmt.Print("\nTelegram:  ")
			if tg.Token == "" {
				fmt.Println("✗ no token (add telegram.token to ~/.lingua/secrets.yaml)")
				allGood = false
			} else {
				fmt.Printf("✓ chat %d\n", tg.ChatID)
			}
		}
	}

	fmt.Print("\nDaemon:    ")
	if isRunning() {
		fmt.Println("✓ running")
	} else {
		fmt.Println("✗ not running (run 'lingua start')")
	}

	fmt.Println()
	if allGood {
		fmt.Println("All checks passed! ✓")
	} else {
		fmt.Println("Some checks failed. Please fix the issues above.")
	}
	return nil
}

// cmdConfig shows current configuration
func cmdConfig() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Println("Lingua Configuration")

	fmt.Println("Daemon:")
	fmt.Printf("  bind: %s:%d\n", cfg.Daemon.Bind, cfg.Daemon.Port)
	fmt.Printf("  log_level: %s\n", cfg.Daemon.LogLevel)

	fmt.Println("\nLearner:")
	fmt.Printf("  id: %s\n", cfg.User.ID)
	fmt.Printf("  level: %d\n", cfg.User.Level)

	fmt.Println("\nStorage:")
	fmt.Printf("  driver: %s\n", cfg.Storage.Driver)

	fmt.Println("\nTutor:")
	fmt.Printf("  mode: %s\n", cfg.Tutor.Mode)
	if cfg.Tutor.Mode == "remote" {
		fmt.Printf("  url: %s\n", cfg.Tutor.URL)
	}
	fmt.Printf("  translate_to: %s\n", cfg.Tutor.TranslateTo)
	fmt.Printf("  timeout: %ds\n", cfg.Tutor.TimeoutSeconds)

	fmt.Println("\nLLM:")
	fmt.Printf("  default_provider: %s\n", cfg.LLM.DefaultProvider)
	for _, name := range providerNames(cfg) {
		provider := cfg.LLM.Providers[name]
		if !provider.Enabled {
			continue
		}
		keyStatus := "✗"
		if provider.APIKey != "" || name == "ollama" {
			keyStatus = "✓"
		}
		fmt.Printf("  %s: model=%s key=%s\n", name, provider.Model, keyStatus)
	}

	fmt.Println("\nReminders:")
	if cfg.Reminders.Enabled {
		fmt.Printf("  between %02d:00 and %02d:00\n", cfg.Reminders.StartHour, cfg.Reminders.EndHour)
	} else {
		fmt.Println("  off")
	}

	linguaDir, _ := config.LinguaDir()
	fmt.Printf("\nConfig path: %s/config.yaml\n", linguaDir)
	return nil
}

func providerNames(cfg *config.LocalConfig) []string {
	names := make([]string, 0, len(cfg.LLM.Providers))
	for name := range cfg.LLM.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkOllama(url string) error {
	if url == "" {
		url = "http://localhost:11434"
	}
	return checkReachable(url + "/api/tags")
}

func checkReachable(url string) error {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("not reachable at %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
