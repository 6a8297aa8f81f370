package fleetsim

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/tkhorram/convoytrack/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "fleetsim_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the fleet simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Convoytrack Fleet Simulator
===========================

Drives a simulated convoy mission against a running tracker instance and
verifies the resulting leaderboard.

Usage:
  go run cmd/fleetsim/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -units int
        Number of units in the simulated convoy (default 20)
  -engagements int
        Number of engagements to generate and submit (default 2000)
  -ticks int
        Telemetry samples per unit (default 10)
  -top int
        Number of leaderboard entries to fetch (default 50)
  -workers int
        Number of concurrent submitters (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -settle duration
        Wait between submission and verification (default 2s)
  -log string
        Log file for run output (default: fleetsim_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run cmd/fleetsim/main.go

  # Heavier run against a remote instance
  go run cmd/fleetsim/main.go -engagements 50000 -workers 16 -url http://tracker:9080
`)
}
