package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/calibrate/internal/loadgen"
)

// Default configuration constants.
const (
	defaultNumSnapshots = 5000
	defaultPlayers      = 200
	defaultCoaches      = 20
	workerMultiplier    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 30 * time.Second
	defaultRunTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL      = flag.String("url", "http://localhost:9080", "Base URL of the engine")
		numSnapshots = flag.Int("snapshots", defaultNumSnapshots, "Number of snapshots to generate and submit")
		players      = flag.Int("players", defaultPlayers, "Size of the synthetic player roster")
		coaches      = flag.Int("coaches", defaultCoaches, "Size of the synthetic coach roster")
		workers      = flag.Int("workers", runtime.NumCPU()*workerMultiplier, "Number of concurrent submitters")
		timeout      = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile   = flag.String("output", "", "Output file for generated snapshots")
		logFile      = flag.String("log", "", "Log file for run output")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp()
		return
	}

	if err := loadgen.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &loadgen.Config{
		BaseURL:      *baseURL,
		NumSnapshots: *numSnapshots,
		Players:      *players,
		Coaches:      *coaches,
		Workers:      *workers,
		Timeout:      *timeout,
		OutputFile:   *outputFile,
		LogFile:      *logFile,
		Verbose:      *verbose,
	}

	if err := loadgen.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Load run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
