// Package hint surfaces real-time calibration guidance while a coach is
// scoring: how the in-progress rating compares to the peer baseline and
// to the coach's own historical pattern.
package hint

import (
	"context"
	"fmt"

	"github.com/okian/calibrate/internal/domain/baseline"
	"github.com/okian/calibrate/internal/domain/metric"
	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/internal/domain/profile"
)

// Default hint thresholds, in units of baseline dispersion.
const (
	// DefaultMinBaselineSamples is the observation floor below which no
	// hint is produced; fabricating guidance from thin data is worse
	// than none.
	DefaultMinBaselineSamples = 3
	defaultNoticeSigma        = 0.5
	defaultStrongSigma        = 1.5
	// sigmaFloor keeps the thresholds meaningful when the baseline has
	// near-zero dispersion.
	sigmaFloor = 2.0
)

// Flag qualifies how a rating sits against the coach's usual pattern.
type Flag string

// Hint flags, ordered from low to high.
const (
	FlagWellBelow Flag = "well_below_usual"
	FlagBelow     Flag = "below_usual"
	FlagInLine    Flag = "in_line"
	FlagAbove     Flag = "above_usual"
	FlagWellAbove Flag = "well_above_usual"
)

// Payload is a natural-language-ready calibration hint.
type Payload struct {
	MetricKey string  `json:"metric_key"`
	RawValue  float64 `json:"raw_value"`
	// DeltaFromPeers is rawValue minus the contextual baseline mean.
	DeltaFromPeers float64 `json:"delta_from_peers"`
	// DeltaFromOwnPattern is rawValue minus (baseline mean + coach bias):
	// the deviation from what this coach would typically award here.
	DeltaFromOwnPattern float64 `json:"delta_from_own_pattern"`
	Flag                Flag   `json:"flag"`
	Message             string `json:"message"`
	BaselineCount       int    `json:"baseline_count"`
}

// BaselineSource resolves contextual baselines.
type BaselineSource interface {
	Baseline(ctx context.Context, metricKey string, partition model.Context) (baseline.Stats, error)
}

// ProfileSource resolves coach calibration profiles.
type ProfileSource interface {
	Profile(ctx context.Context, coachID string, force bool) (profile.Profile, error)
}

// Generator produces hints from baselines and coach profiles. Stateless:
// no caches, no side effects of its own.
type Generator struct {
	baselines BaselineSource
	profiles  ProfileSource
	registry  *metric.Registry

	minSamples  int
	noticeSigma float64
	strongSigma float64
}

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithMinBaselineSamples sets the observation floor for producing hints.
func WithMinBaselineSamples(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.minSamples = n
		}
	}
}

// WithSigmaThresholds sets the notice/strong cutoffs in dispersion units.
func WithSigmaThresholds(notice, strong float64) Option {
	return func(g *Generator) {
		if notice > 0 && strong > notice {
			g.noticeSigma = notice
			g.strongSigma = strong
		}
	}
}

// NewGenerator wires a hint generator to its collaborators.
func NewGenerator(baselines BaselineSource, profiles ProfileSource, registry *metric.Registry, opts ...Option) *Generator {
	g := &Generator{
		baselines:   baselines,
		profiles:    profiles,
		registry:    registry,
		minSamples:  DefaultMinBaselineSamples,
		noticeSigma: defaultNoticeSigma,
		strongSigma: defaultStrongSigma,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Hints compares an in-progress rating to the contextual baseline and the
// coach's calibration. Returns ErrInsufficientData when the baseline has
// fewer than the minimum observations.
func (g *Generator) Hints(ctx context.Context, metricKey string, rawValue float64, partition model.Context, coachID string) (Payload, error) {
	def, err := g.registry.Lookup(metricKey)
	if err != nil {
		return Payload{}, err
	}
	if rawValue < def.Min || rawValue > def.Max {
		return Payload{}, fmt.Errorf("%w: %s=%v outside [%v,%v]", metric.ErrRangeViolation, metricKey, rawValue, def.Min, def.Max)
	}

	stats, err := g.baselines.Baseline(ctx, metricKey, partition)
	if err != nil {
		return Payload{}, err
	}
	if stats.Count < g.minSamples {
		return Payload{}, fmt.Errorf("%w: %d of %d required observations for %s", ErrInsufficientData, stats.Count, g.minSamples, metricKey)
	}

	prof, err := g.profiles.Profile(ctx, coachID, false)
	if err != nil {
		return Payload{}, err
	}
	bias := prof.Category(def.Category).Bias

	expected := stats.Mean + bias
	ownDelta := rawValue - expected

	sigma := stats.StdDev
	if sigma < sigmaFloor {
		sigma = sigmaFloor
	}

	flag := classify(ownDelta, sigma*g.noticeSigma, sigma*g.strongSigma)
	return Payload{
		MetricKey:           metricKey,
		RawValue:            rawValue,
		DeltaFromPeers:      rawValue - stats.Mean,
		DeltaFromOwnPattern: ownDelta,
		Flag:                flag,
		Message:             message(def.DisplayName, flag, rawValue-stats.Mean, ownDelta),
		BaselineCount:       stats.Count,
	}, nil
}

func classify(delta, notice, strong float64) Flag {
	switch {
	case delta >= strong:
		return FlagWellAbove
	case delta >= notice:
		return FlagAbove
	case delta <= -strong:
		return FlagWellBelow
	case delta <= -notice:
		return FlagBelow
	default:
		return FlagInLine
	}
}

func message(name string, f Flag, peerDelta, ownDelta float64) string {
	switch f {
	case FlagWellAbove:
		return fmt.Sprintf("%s is notably higher than your usual rating for this context (%+.1f vs your pattern, %+.1f vs peers)", name, ownDelta, peerDelta)
	case FlagAbove:
		return fmt.Sprintf("%s is a bit above your usual rating for this context (%+.1f vs your pattern)", name, ownDelta)
	case FlagWellBelow:
		return fmt.Sprintf("%s is notably lower than your usual rating for this context (%+.1f vs your pattern, %+.1f vs peers)", name, ownDelta, peerDelta)
	case FlagBelow:
		return fmt.Sprintf("%s is a bit below your usual rating for this context (%+.1f vs your pattern)", name, ownDelta)
	default:
		return fmt.Sprintf("%s is in line with your usual rating for this context", name)
	}
}
