package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/okian/calibrate/pkg/logger"
)

// verifyResults probes the engine's derived views after the load run:
// per-metric baselines, the multi-coach roster, and one consensus
// record for a player with enough distinct raters.
func verifyResults(ctx context.Context, config *Config, snapshots []SnapshotRequest, stats *Stats) error {
	logger.Get().Info(ctx, "verifying derived views")

	client := newHTTPClient(config.Timeout)

	// Tally expected per-metric rating counts from what we submitted.
	expected := make(map[string]int)
	for _, snap := range snapshots {
		for _, v := range snap.Values {
			expected[v.Key]++
		}
	}

	for _, key := range metricPool {
		baseline, err := fetchBaseline(ctx, client, config.BaseURL, key)
		if err != nil {
			logger.Get().Warn(ctx, "baseline probe failed",
				logger.String("metric", key), logger.Error(err))
			continue
		}
		stats.BaselinesProbed++

		// The unfiltered partition aggregates every rating of the
		// metric, so the count must match what we submitted when the
		// run started against an empty ledger.
		if baseline.Count < expected[key] {
			logger.Get().Warn(ctx, "baseline count below submitted ratings",
				logger.String("metric", key),
				logger.Int("expected", expected[key]),
				logger.Int("got", baseline.Count))
		} else if config.Verbose {
			logger.Get().Info(ctx, "baseline verified",
				logger.String("metric", key),
				logger.Int("count", baseline.Count),
				logger.Float64("mean", baseline.Mean),
				logger.Float64("stdDev", baseline.StdDev))
		}
	}

	players, err := fetchMultiCoachPlayers(ctx, client, config.BaseURL)
	if err != nil {
		return fmt.Errorf("multi-coach probe failed: %w", err)
	}
	logger.Get().Info(ctx, "multi-coach roster retrieved", logger.Int("players", len(players)))

	if len(players) > 0 {
		summary, err := fetchConsensus(ctx, client, config.BaseURL, players[0], "TECHNICAL")
		if err != nil {
			logger.Get().Warn(ctx, "consensus probe failed",
				logger.String("player", players[0]), logger.Error(err))
		} else {
			stats.ConsensusProbed++
			logger.Get().Info(ctx, "consensus verified",
				logger.String("player", summary.PlayerID),
				logger.Int("coachCount", summary.CoachCount),
				logger.Float64("value", summary.Value),
				logger.Float64("spread", summary.Spread))
		}
	}

	logger.Get().Info(ctx, "verification completed")
	return nil
}

// fetchBaseline retrieves the unfiltered baseline for one metric.
func fetchBaseline(ctx context.Context, client *HTTPClient, baseURL, metricKey string) (BaselineStats, error) {
	resp, err := client.Get(ctx, baseURL+"/api/v1/baselines/"+url.PathEscape(metricKey))
	if err != nil {
		return BaselineStats{}, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return BaselineStats{}, err
	}
	if resp.StatusCode != StatusOK {
		return BaselineStats{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var stats BaselineStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return BaselineStats{}, fmt.Errorf("failed to decode baseline: %w", err)
	}
	return stats, nil
}

// fetchMultiCoachPlayers retrieves players rated by enough coaches.
func fetchMultiCoachPlayers(ctx context.Context, client *HTTPClient, baseURL string) ([]string, error) {
	resp, err := client.Get(ctx, baseURL+"/api/v1/players/multi-coach")
	if err != nil {
		return nil, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Players []string `json:"players"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode players: %w", err)
	}
	return payload.Players, nil
}

// fetchConsensus retrieves the anonymized consensus for one subject.
func fetchConsensus(ctx context.Context, client *HTTPClient, baseURL, playerID, subject string) (ConsensusSummary, error) {
	resp, err := client.Get(ctx,
		baseURL+"/api/v1/players/"+url.PathEscape(playerID)+"/consensus/"+url.PathEscape(subject))
	if err != nil {
		return ConsensusSummary{}, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return ConsensusSummary{}, err
	}
	if resp.StatusCode != StatusOK {
		return ConsensusSummary{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var summary ConsensusSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return ConsensusSummary{}, fmt.Errorf("failed to decode consensus: %w", err)
	}
	return summary, nil
}
