// Package profile derives per-coach calibration profiles: how far a
// coach's ratings sit from contextual baselines (bias) and how consistent
// their ratings are (confidence). Profiles make ratings from lenient and
// strict coaches comparable.
package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/calibrate/internal/adapters/cache"
	"github.com/okian/calibrate/internal/adapters/repository"
	"github.com/okian/calibrate/internal/domain/baseline"
	"github.com/okian/calibrate/internal/domain/metric"
	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/pkg/logger"
	"github.com/okian/calibrate/pkg/metrics"
)

// Default profile model constants. These are the product-tuned knobs; the
// formula itself lives in computeCategory and nowhere else.
const (
	// DefaultMinSamples is the per-category snapshot floor below which a
	// coach gets the neutral profile instead of an unstable estimate.
	DefaultMinSamples = 5
	// DefaultConfidenceFloor is the lowest confidence ever reported,
	// also assigned to constant-rating and under-sampled coaches.
	DefaultConfidenceFloor = 0.2
	// DefaultConfidenceScale is the dispersion (rating points) at which
	// confidence has decayed halfway to the floor.
	DefaultConfidenceScale = 10.0
	// minInformativeDispersion guards the constant-rater case: a coach
	// whose ratings never move carries no calibration signal.
	minInformativeDispersion = 1e-3
)

// CategoryProfile is a coach's calibration for one metric category.
type CategoryProfile struct {
	// Bias is the signed average deviation from contextual baselines.
	// Positive means the coach rates above their peers.
	Bias float64 `json:"bias"`
	// Confidence in [floor,1]: inverse of the coach's own rating
	// dispersion, bounded.
	Confidence float64 `json:"confidence"`
	// SampleCount is the number of ratings behind this estimate.
	SampleCount int `json:"sample_count"`
	// Neutral marks a low-evidence placeholder rather than a measurement.
	Neutral bool `json:"neutral"`
}

// Profile is a coach's full calibration profile.
type Profile struct {
	CoachID        string                            `json:"coach_id"`
	PerCategory    map[metric.Category]CategoryProfile `json:"per_category"`
	TotalSnapshots int                               `json:"total_snapshots"`
	LastComputedAt time.Time                         `json:"last_computed_at"`
}

// Category returns the calibration for a category, falling back to the
// neutral profile when the coach has no estimate there.
func (p Profile) Category(c metric.Category) CategoryProfile {
	if cp, ok := p.PerCategory[c]; ok {
		return cp
	}
	return CategoryProfile{Confidence: DefaultConfidenceFloor, Neutral: true}
}

// BaselineSource resolves contextual baselines. Satisfied by
// baseline.Calculator; tests substitute a deterministic stub.
type BaselineSource interface {
	Baseline(ctx context.Context, metricKey string, partition model.Context) (baseline.Stats, error)
}

// Builder computes and caches coach profiles. Recomputation for one coach
// is single-flighted through the cache: concurrent refreshers collapse
// onto one computation and all observe its result.
type Builder struct {
	store     repository.Store
	baselines BaselineSource
	registry  *metric.Registry
	cache     cache.Loader[Profile]

	minSamples      int
	confidenceFloor float64
	confidenceScale float64
	clock           cache.Clock
	log             logger.Logger
}

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithMinSamples sets the per-category sample floor.
func WithMinSamples(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.minSamples = n
		}
	}
}

// WithConfidenceBounds sets the confidence floor and decay scale.
func WithConfidenceBounds(floor, scale float64) Option {
	return func(b *Builder) {
		if floor > 0 && floor < 1 {
			b.confidenceFloor = floor
		}
		if scale > 0 {
			b.confidenceScale = scale
		}
	}
}

// WithClock sets the timestamp source for LastComputedAt.
func WithClock(clock cache.Clock) Option {
	return func(b *Builder) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the builder.
func WithLogger(log logger.Logger) Option {
	return func(b *Builder) {
		if log != nil {
			b.log = log
		}
	}
}

// NewBuilder wires a profile builder to its collaborators.
func NewBuilder(store repository.Store, baselines BaselineSource, registry *metric.Registry, c cache.Loader[Profile], opts ...Option) *Builder {
	b := &Builder{
		store:           store,
		baselines:       baselines,
		registry:        registry,
		cache:           c,
		minSamples:      DefaultMinSamples,
		confidenceFloor: DefaultConfidenceFloor,
		confidenceScale: DefaultConfidenceScale,
		clock:           time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Profile returns the coach's calibration profile. A fresh cached profile
// is served as-is unless force is set. On recompute failure the previous
// profile (when one exists) is returned alongside the error; the cache
// entry is never evicted by a failure.
func (b *Builder) Profile(ctx context.Context, coachID string, force bool) (Profile, error) {
	recomputed := false
	p, err := b.cache.Get(ctx, coachID, force, func(ctx context.Context) (Profile, error) {
		recomputed = true
		return b.compute(ctx, coachID)
	})
	if recomputed {
		metrics.RecordProfileCacheMiss()
	} else {
		metrics.RecordProfileCacheHit()
	}
	return p, err
}

// compute derives the profile from the coach's full snapshot history.
// Idempotent given the same snapshot set.
func (b *Builder) compute(ctx context.Context, coachID string) (Profile, error) {
	start := time.Now()
	defer func() {
		metrics.RecordProfileRecompute()
		metrics.RecordRecomputeLatency(float64(time.Since(start).Milliseconds()))
	}()

	snaps, err := b.store.ByCoach(ctx, coachID, repository.Filter{})
	if err != nil {
		return Profile{}, fmt.Errorf("profile history for coach %s: %w", coachID, err)
	}

	// Per-category raw values and per-category signed deviations from
	// the baseline matching each snapshot's own context.
	values := make(map[metric.Category]*baseline.Accumulator)
	deviations := make(map[metric.Category]*baseline.Accumulator)

	for _, snap := range snaps {
		for _, mv := range snap.Values {
			cat, err := b.registry.CategoryOf(mv.Key)
			if err != nil {
				// Historical values for retired metrics carry no signal.
				continue
			}
			if values[cat] == nil {
				values[cat] = &baseline.Accumulator{}
				deviations[cat] = &baseline.Accumulator{}
			}
			values[cat].Add(mv.Value)

			stats, err := b.baselines.Baseline(ctx, mv.Key, snap.Context)
			if err != nil {
				return Profile{}, fmt.Errorf("baseline for %s: %w", mv.Key, err)
			}
			if stats.Defined() {
				deviations[cat].Add(mv.Value - stats.Mean)
			}
		}
	}

	p := Profile{
		CoachID:        coachID,
		PerCategory:    make(map[metric.Category]CategoryProfile, len(values)),
		TotalSnapshots: len(snaps),
		LastComputedAt: b.clock(),
	}
	for cat, acc := range values {
		p.PerCategory[cat] = b.computeCategory(acc.Stats(), deviations[cat].Stats())
	}

	if b.log != nil {
		b.log.Debug(ctx, "recomputed coach profile",
			logger.String("coachID", coachID),
			logger.Int("snapshots", len(snaps)),
			logger.Int("categories", len(p.PerCategory)),
		)
	}
	return p, nil
}

// computeCategory is the single, versioned home of the bias/confidence
// formula.
//
//	bias       = mean(value - contextual baseline mean)
//	confidence = clamp(1 / (1 + sd/scale), floor, 1)
//
// Under-sampled categories get the neutral profile; constant raters hit
// the confidence floor rather than dividing by a vanishing dispersion.
func (b *Builder) computeCategory(vals, devs baseline.Stats) CategoryProfile {
	if vals.Count < b.minSamples {
		return CategoryProfile{
			Confidence:  b.confidenceFloor,
			SampleCount: vals.Count,
			Neutral:     true,
		}
	}

	confidence := b.confidenceFloor
	if vals.StdDev >= minInformativeDispersion {
		confidence = 1.0 / (1.0 + vals.StdDev/b.confidenceScale)
		if confidence < b.confidenceFloor {
			confidence = b.confidenceFloor
		}
		if confidence > 1 {
			confidence = 1
		}
	}

	var bias float64
	if devs.Defined() {
		bias = devs.Mean
	}
	return CategoryProfile{
		Bias:        bias,
		Confidence:  confidence,
		SampleCount: vals.Count,
	}
}
