package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/felixgeelhaar/lingua/internal/config"
)

// cmdStart starts the daemon in the background
func cmdStart() error {
	if isRunning() {
		fmt.Println("✓ Daemon is already running")
		return nil
	}

	linguaDir, err := config.EnsureLinguaDir()
	if err != nil {
		return fmt.Errorf("setup lingua directory: %w", err)
	}

	daemonPath, err := findDaemonBinary()
	if err != nil {
		return fmt.Errorf("find daemon binary: %w", err)
	}

	cmd := exec.Command(daemonPath)
	cmd.Dir = linguaDir
	detachDaemon(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Print("Starting daemon...")
	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if isRunning() {
			fmt.Println(" ✓")
			fmt.Printf("Daemon running at %s\n", daemonAddr())
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(" ✗")
	return fmt.Errorf("daemon failed to start (check logs with 'lingua logs')")
}

// cmdStop sends SIGTERM to the daemon named in the PID file
func cmdStop() error {
	if !isRunning() {
		fmt.Println("Daemon is not running")
		return nil
	}

	linguaDir, err := config.LinguaDir()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(linguaDir, pidFile))
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("parse PID: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	fmt.Print("Stopping daemon...")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isRunning() {
			fmt.Println(" ✓")
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(" ✗")
	return fmt.Errorf("daemon did not stop gracefully")
}

// cmdStatus shows daemon status
func cmdStatus() error {
	if !isRunning() {
		fmt.Println("Status: stopped")
		return nil
	}

	var status struct {
		Status         string   `json:"status"`
		Version        string   `json:"version"`
		Uptime         string   `json:"uptime"`
		Tutor          string   `json:"tutor"`
		LLMProviders   []string `json:"llm_providers"`
		Storage        string   `json:"storage"`
		Topics         int      `json:"topics"`
		Phrases        int      `json:"phrases"`
		ActiveSessions int      `json:"active_sessions"`
		Queue          bool     `json:"queue"`
		Reminders      bool     `json:"reminders"`
	}
	if err := getJSON("/v1/status", &status); err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	fmt.Printf("Status:    %s (up %s)\n", status.Status, status.Uptime)
	fmt.Printf("Version:   %s\n", status.Version)
	fmt.Printf("Tutor:     %s\n", status.Tutor)
	fmt.Printf("Providers: %s\n", strings.Join(status.LLMProviders, ", "))
	fmt.Printf("Storage:   %s\n", status.Storage)
	fmt.Printf("Catalog:   %d topics, %d phrases\n", status.Topics, status.Phrases)
	fmt.Printf("Sessions:  %d active\n", status.ActiveSessions)
	fmt.Printf("Reminders: %s\n", onOff(status.Reminders))
	fmt.Printf("Queue:     %s\n", onOff(status.Queue))
	fmt.Printf("Address:   %s\n", daemonAddr())

	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// cmdLogs prints the tail of the daemon log
func cmdLogs() error {
	linguaDir, err := config.LinguaDir()
	if err != nil {
		return err
	}

	file, err := os.Open(filepath.Join(linguaDir, "logs", "linguad.log"))
	if os.IsNotExist(err) {
		fmt.Println("No log file found. Start the daemon first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	offset := max(info.Size()-4096, 0)
	if _, err := file.Seek(offset, 0); err != nil {
		return err
	}

	reader := bufio.NewReader(file)
	if offset > 0 {
		// drop the partial first line
		_, _ = reader.ReadString('\n')
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}
	return scanner.Err()
}

// isRunning checks if the daemon is running by calling the health endpoint
func isRunning() bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(daemonAddr() + "/v1/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// findDaemonBinary locates the linguad binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("linguad"); err == nil {
		return path, nil
	}

	if self, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(self), "linguad")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, path := range []string{"/usr/local/bin/linguad", "./linguad", "./cmd/linguad/linguad"} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("linguad binary not found (build with 'go build ./cmd/linguad')")
}
