package main

import (
	"fmt"
	"os"
	"strings"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	defaultDaemonAddr = "http://127.0.0.1:7433"
	pidFile           = "linguad.pid"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit()
	case "start":
		err = cmdStart()
	case "stop":
		err = cmdStop()
	case "status":
		err = cmdStatus()
	case "logs":
		err = cmdLogs()
	case "doctor":
		err = cmdDoctor()
	case "config":
		err = cmdConfig()
	case "topics":
		err = cmdTopics(os.Args[2:])
	case "progress":
		err = cmdProgress()
	case "checkin":
		err = cmdCheckIn()
	case "review":
		err = cmdReview(os.Args[2:])
	case "chat":
		err = cmdChat(os.Args[2:])
	case "translate":
		err = cmdTranslate(os.Args[2:])
	case "import":
		err = cmdImport(os.Args[2:])
	case "mcp":
		err = cmdMCP()
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("lingua %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Lingua - Conversational Language Tutor

Usage:
  lingua <command> [arguments]

Setup Commands:
  init            Initialize Lingua (first-time setup)
  doctor          Check the tutor, providers and daemon
  config          Show current configuration

Daemon Commands:
  start           Start the Lingua daemon
  stop            Stop the Lingua daemon
  status          Show daemon status
  logs            View daemon logs

Learning Commands:
  topics [level]  List topics, optionally for one level
  chat <topic>    Practise a topic with the tutor
  review          Review phrases that are due
  progress        Show XP, level and streak
  checkin         Claim the daily login bonus
  translate       Translate a phrase

Catalog Commands:
  import <file>   Import phrases from an .xlsx or .csv file

Integration Commands:
  mcp             Start MCP server (stdio)

Other:
  help            Show this help message
  version         Show version information

Examples:
  lingua start                  # Start daemon
  lingua topics 1               # Beginner topics
  lingua chat greetings         # Talk about greetings
  lingua import phrases.xlsx    # Add phrases from a spreadsheet`)
}

// daemonAddr honours LINGUA_ADDR so the CLI can talk to a shared daemon
func daemonAddr() string {
	if addr := os.Getenv("LINGUA_ADDR"); addr != "" {
		return strings.TrimRight(addr, "/")
	}
	return defaultDaemonAddr
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
