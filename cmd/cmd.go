// Package cmd provides CLI commands for iyya.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - sync: index module documents into the vector store
//   - status: show per-module index state
//   - ask: one-shot question from the terminal
//
// Signal handling and graceful shutdown are implemented
// for all commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/iyya/iyya/internal/log"
)

// Execute is the main entry point for the iyya CLI application.
func Execute() error {
	logger := log.NewWithWriter(os.Stderr, log.Config{Level: logLevel()})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(os.Args[2:], logger)
	case "sync":
		return runSync(os.Args[2:], logger)
	case "status":
		return runStatus(os.Args[2:], logger)
	case "ask":
		return runAsk(os.Args[2:], logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// logLevel is controlled by the DEBUG environment variable.
func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("iyya - Assistant documentaire juridique et fiscal marocain")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  iyya serve [-addr host:port]        Start the HTTP API server")
	fmt.Println("  iyya sync -module <id> [-clear]     Index one module's documents")
	fmt.Println("  iyya sync -all [-clear]             Index every enabled module")
	fmt.Println("  iyya sync -module <id> -file <path> Re-index a single file")
	fmt.Println("  iyya status [-module <id>]          Show index state")
	fmt.Println("  iyya ask -module <id> <question>    Ask a one-shot question")
	fmt.Println("  iyya --version                      Show version information")
	fmt.Println("  iyya --help                         Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Required: Gemini API key")
	fmt.Println("  DATABASE_URL       Optional: PostgreSQL connection URL")
	fmt.Println("  DEBUG              Optional: Enable debug logging")
	fmt.Println()
	fmt.Println("Configuration file: ~/.iyya/config.yaml")
}
