// Package loadgen drives synthetic assessment traffic against a running
// engine and sanity-checks the derived views afterwards.
package loadgen

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/calibrate/pkg/logger"
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
		logFile = "loadgen_" + timestamp + ".log"
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

// ShowHelp prints usage information for the load generator.
func ShowHelp() {
	os.Stdout.WriteString(`Calibrate Load Generator
========================

Generates synthetic assessment snapshots, submits them concurrently,
and probes the derived views (baselines, multi-coach roster, consensus).

Usage:
  go run cmd/loadgen/main.go [options]

Options:
  -url string
        Base URL of the engine (default "http://localhost:9080")
  -snapshots int
        Number of snapshots to generate and submit (default 5000)
  -players int
        Size of the synthetic player roster (default 200)
  -coaches int
        Size of the synthetic coach roster (default 20)
  -workers int
        Number of concurrent submitters (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Output file for generated snapshots (default: generated_snapshots_TIMESTAMP.json)
  -log string
        Log file for run output (default: loadgen_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Run with default settings
  go run cmd/loadgen/main.go

  # Heavier run against a remote engine
  go run cmd/loadgen/main.go -snapshots 50000 -workers 16 -url http://calibrate:9080

  # Small verbose run
  go run cmd/loadgen/main.go -verbose -snapshots 500 -players 20 -coaches 5
`)
}
