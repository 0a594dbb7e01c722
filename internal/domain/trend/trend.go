// Package trend classifies a player's metric trajectory and ranks their
// positional suitability. Pure read functions over the ledger; cheap
// enough that no caching is involved.
package trend

import (
	"context"
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/okian/calibrate/internal/adapters/repository"
	"github.com/okian/calibrate/internal/domain/model"
)

// Default trend configuration constants.
const (
	// DefaultWindow is the trailing number of assessments the slope fits.
	DefaultWindow = 5
	// DefaultDeadband is the symmetric slope band (rating points per
	// assessment) treated as a plateau, so noise does not flap the
	// classification across a single zero-crossing.
	DefaultDeadband = 0.75
	// minPoints is the fewest observations a slope can be fit on.
	minPoints = 2
)

// Direction classifies a metric trajectory.
type Direction string

// Trend directions.
const (
	Improving Direction = "improving"
	Plateau   Direction = "plateau"
	Declining Direction = "declining"
)

// Trend is the classification result for one player and metric.
type Trend struct {
	PlayerID  string    `json:"player_id"`
	MetricKey string    `json:"metric_key"`
	Direction Direction `json:"direction"`
	// Slope is in rating points per assessment over the window.
	Slope  float64 `json:"slope"`
	Window int     `json:"window"`
	Points int     `json:"points"`
}

// Analyzer reads the ledger directly.
type Analyzer struct {
	store    repository.Store
	window   int
	deadband float64
}

// Option applies a configuration option to the Analyzer.
type Option func(*Analyzer)

// WithWindow sets the default trailing window.
func WithWindow(n int) Option {
	return func(a *Analyzer) {
		if n >= minPoints {
			a.window = n
		}
	}
}

// WithDeadband sets the plateau slope band.
func WithDeadband(d float64) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.deadband = d
		}
	}
}

// NewAnalyzer wires an analyzer to the ledger.
func NewAnalyzer(store repository.Store, opts ...Option) *Analyzer {
	a := &Analyzer{
		store:    store,
		window:   DefaultWindow,
		deadband: DefaultDeadband,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ClassifyTrend fits a slope over the trailing window of the player's
// chronological values for metricKey and classifies it against the
// symmetric dead-band. window <= 0 uses the analyzer default. Fewer than
// two observations cannot carry a trend and yield ErrInsufficientData.
func (a *Analyzer) ClassifyTrend(ctx context.Context, playerID, metricKey string, window int) (Trend, error) {
	if window < minPoints {
		window = a.window
	}

	snaps, err := a.store.ByPlayer(ctx, playerID, repository.Filter{
		MetricKey: metricKey,
		Limit:     window,
	})
	if err != nil {
		return Trend{}, fmt.Errorf("trend history for player %s: %w", playerID, err)
	}

	series := make(stats.Series, 0, len(snaps))
	for i, s := range snaps {
		if v, ok := s.Value(metricKey); ok {
			series = append(series, stats.Coordinate{X: float64(i), Y: v})
		}
	}
	if len(series) < minPoints {
		return Trend{}, fmt.Errorf("%w: %d of %d required assessments for %s", ErrInsufficientData, len(series), minPoints, metricKey)
	}

	fitted, err := stats.LinearRegression(series)
	if err != nil {
		return Trend{}, fmt.Errorf("fitting trend for %s: %w", metricKey, err)
	}
	span := fitted[len(fitted)-1].X - fitted[0].X
	slope := (fitted[len(fitted)-1].Y - fitted[0].Y) / span

	dir := Plateau
	switch {
	case slope > a.deadband:
		dir = Improving
	case slope < -a.deadband:
		dir = Declining
	}

	return Trend{
		PlayerID:  playerID,
		MetricKey: metricKey,
		Direction: dir,
		Slope:     slope,
		Window:    window,
		Points:    len(series),
	}, nil
}

// RankPositions sorts the latest snapshot's positional suitability
// entries descending, stable on ties by position name.
func (a *Analyzer) RankPositions(ctx context.Context, playerID string) ([]model.PositionRating, error) {
	snaps, err := a.store.ByPlayer(ctx, playerID, repository.Filter{})
	if err != nil {
		return nil, fmt.Errorf("positions for player %s: %w", playerID, err)
	}

	// Walk back to the most recent snapshot carrying positional data.
	for i := len(snaps) - 1; i >= 0; i-- {
		if len(snaps[i].Positions) == 0 {
			continue
		}
		out := make([]model.PositionRating, len(snaps[i].Positions))
		copy(out, snaps[i].Positions)
		sort.SliceStable(out, func(a, b int) bool {
			if out[a].Suitability != out[b].Suitability {
				return out[a].Suitability > out[b].Suitability
			}
			return out[a].Position < out[b].Position
		})
		return out, nil
	}
	return nil, fmt.Errorf("%w: no positional assessments for player %s", ErrInsufficientData, playerID)
}
