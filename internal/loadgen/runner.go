package loadgen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/calibrate/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete load run: generate, submit, verify.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting calibrate load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("snapshots", config.NumSnapshots),
		logger.Int("players", config.Players),
		logger.Int("coaches", config.Coaches),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Any("verbose", config.Verbose))

	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	snapshots, err := generateSnapshots(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("snapshot generation failed: %w", err)
	}

	if err := submitSnapshots(ctx, config, snapshots, stats); err != nil {
		return fmt.Errorf("snapshot submission failed: %w", err)
	}

	// Let the background recalibration workers settle before probing.
	logger.Get().Info(ctx, "waiting for recalibration to settle")
	time.Sleep(ProcessingSettleDelay)

	if err := verifyResults(ctx, config, snapshots, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	if err := saveSnapshotsToFile(ctx, config, snapshots); err != nil {
		logger.Get().Warn(ctx, "failed to save snapshots to file", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "load run completed successfully")
	return nil
}

// checkServiceHealth verifies the engine is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveSnapshotsToFile writes the generated snapshots as a JSON array.
func saveSnapshotsToFile(ctx context.Context, config *Config, snapshots []SnapshotRequest) error {
	if len(snapshots) == 0 {
		return fmt.Errorf("no snapshots to save")
	}

	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "generated_snapshots_" + timestamp + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	if _, err := file.WriteString("[\n"); err != nil {
		return fmt.Errorf("failed to write opening bracket: %w", err)
	}
	for i, snap := range snapshots {
		jsonData, err := marshalJSON(snap)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot %d: %w", i, err)
		}
		if _, err := file.Write(jsonData); err != nil {
			return fmt.Errorf("failed to write snapshot %d: %w", i, err)
		}
		if i < len(snapshots)-1 {
			if _, err := file.WriteString(","); err != nil {
				return fmt.Errorf("failed to write comma: %w", err)
			}
		}
		_, _ = file.WriteString("\n")
	}
	if _, err := file.WriteString("]\n"); err != nil {
		return fmt.Errorf("failed to write closing bracket: %w", err)
	}

	logger.Get().Info(ctx, "snapshots saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final run statistics.
func displayFinalStats(stats *Stats) {
	var successRate, snapshotsPerSecond float64

	if stats.SnapshotsSubmitted > 0 {
		successRate = float64(stats.SnapshotsSuccessful) / float64(stats.SnapshotsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		snapshotsPerSecond = float64(stats.SnapshotsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("snapshotsGenerated", stats.SnapshotsGenerated),
		logger.Int("snapshotsSubmitted", stats.SnapshotsSubmitted),
		logger.Int("snapshotsSuccessful", stats.SnapshotsSuccessful),
		logger.Int("snapshotsRejected", stats.SnapshotsRejected),
		logger.Int("snapshotsFailed", stats.SnapshotsFailed),
		logger.Int("baselinesProbed", stats.BaselinesProbed),
		logger.Int("consensusProbed", stats.ConsensusProbed),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("snapshotsPerSecond", snapshotsPerSecond))
}
