package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/felixgeelhaar/lingua/internal/config"
	"github.com/felixgeelhaar/lingua/internal/daemon"
)

// cmdMCP serves the learning tools over stdio. Logs go to
// ~/.lingua/logs/mcp.log since stdout carries the protocol.
func cmdMCP() error {
	linguaDir, err := config.EnsureLinguaDir()
	if err != nil {
		return fmt.Errorf("ensure lingua dir: %w", err)
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// the daemon owns reminders, notifications and queue delivery
	cfg.Reminders.Enabled = false
	cfg.Queue.Enabled = false
	cfg.Notify.Telegram.Enabled = false

	logFile, err := os.OpenFile(filepath.Join(linguaDir, "logs", "mcp.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewJSONHandler(logFile, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := daemon.NewServer(ctx, daemon.ServerConfig{
		Config:  cfg,
		DataDir: linguaDir,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("create services: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	return srv.MCP().ServeStdio(ctx)
}
