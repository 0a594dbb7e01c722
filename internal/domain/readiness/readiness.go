// Package readiness composes a single explainable 0-100 Readiness Index
// from one snapshot: five category sub-scores, a fixed-weight overall,
// and the metric keys driving it up or down.
package readiness

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/okian/calibrate/internal/domain/metric"
	"github.com/okian/calibrate/internal/domain/model"
)

// NeutralScore fills sub-scores for categories the snapshot never rated,
// so incomplete assessments are not penalized toward zero.
const NeutralScore = 50.0

// DefaultExplanationSize bounds the strengths/focus lists.
const DefaultExplanationSize = 3

// Weights is the fixed combination of sub-scores into the overall index.
// Invalid weight sets fail at construction, not at compose time.
type Weights struct {
	Technical   float64 `json:"technical" koanf:"technical"`
	Physical    float64 `json:"physical" koanf:"physical"`
	Mental      float64 `json:"mental" koanf:"mental"`
	Attitude    float64 `json:"attitude" koanf:"attitude"`
	TacticalFit float64 `json:"tactical_fit" koanf:"tactical_fit"`
}

// DefaultWeights is the product-tuned combination.
func DefaultWeights() Weights {
	return Weights{
		Technical:   0.30,
		Physical:    0.25,
		Mental:      0.20,
		Attitude:    0.10,
		TacticalFit: 0.15,
	}
}

const weightTolerance = 1e-9

// Validate requires non-negative weights summing to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"technical": w.Technical, "physical": w.Physical, "mental": w.Mental,
		"attitude": w.Attitude, "tactical_fit": w.TacticalFit,
	} {
		if v < 0 {
			return fmt.Errorf("%w: negative weight %s", ErrInvalidWeights, name)
		}
	}
	sum := w.Technical + w.Physical + w.Mental + w.Attitude + w.TacticalFit
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidWeights, sum)
	}
	return nil
}

// SubScores are the five readiness axes, each in [0,100].
type SubScores struct {
	Technical   float64 `json:"technical"`
	Physical    float64 `json:"physical"`
	Mental      float64 `json:"mental"`
	Attitude    float64 `json:"attitude"`
	TacticalFit float64 `json:"tactical_fit"`
}

// Index is the composed readiness result for one snapshot.
type Index struct {
	SnapshotID string    `json:"snapshot_id"`
	PlayerID   string    `json:"player_id"`
	Sub        SubScores `json:"sub_scores"`
	Overall    float64   `json:"overall"`
	// TopStrengths are the metric keys furthest above their category
	// mean within this snapshot; RecommendedFocus the furthest below.
	TopStrengths     []string `json:"top_strengths"`
	RecommendedFocus []string `json:"recommended_focus"`
}

// Composer computes readiness indexes. Pure per-snapshot computation; no
// state beyond configuration.
type Composer struct {
	registry        *metric.Registry
	weights         Weights
	explanationSize int
}

// Option applies a configuration option to the Composer.
type Option func(*Composer)

// WithExplanationSize bounds the strengths/focus lists.
func WithExplanationSize(n int) Option {
	return func(c *Composer) {
		if n > 0 {
			c.explanationSize = n
		}
	}
}

// NewComposer builds a composer; invalid weights fail here.
func NewComposer(registry *metric.Registry, w Weights, opts ...Option) (*Composer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	c := &Composer{
		registry:        registry,
		weights:         w,
		explanationSize: DefaultExplanationSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Compose derives the readiness index from one snapshot. Deterministic:
// same snapshot, same index; ties in the explanation break by lexical
// metric key order. All outputs are clamped to [0,100].
func (c *Composer) Compose(snap model.Snapshot) (Index, error) {
	if len(snap.Values) == 0 && len(snap.Positions) == 0 {
		return Index{}, fmt.Errorf("%w: snapshot %s has nothing to score", ErrEmptySnapshot, snap.ID)
	}

	byCategory := make(map[metric.Category][]float64)
	for _, v := range snap.Values {
		cat, err := c.registry.CategoryOf(v.Key)
		if err != nil {
			return Index{}, err
		}
		byCategory[cat] = append(byCategory[cat], v.Value)
	}

	sub := SubScores{
		Technical:   categoryScore(byCategory, metric.Technical, metric.Goalkeeping),
		Physical:    categoryScore(byCategory, metric.Physical),
		Mental:      categoryScore(byCategory, metric.Mental),
		Attitude:    categoryScore(byCategory, metric.Attitude),
		TacticalFit: tacticalFit(snap.Positions),
	}

	overall := clamp(sub.Technical*c.weights.Technical +
		sub.Physical*c.weights.Physical +
		sub.Mental*c.weights.Mental +
		sub.Attitude*c.weights.Attitude +
		sub.TacticalFit*c.weights.TacticalFit)

	strengths, focus := c.explain(snap)

	return Index{
		SnapshotID:       snap.ID,
		PlayerID:         snap.PlayerID,
		Sub:              sub,
		Overall:          overall,
		TopStrengths:     strengths,
		RecommendedFocus: focus,
	}, nil
}

// categoryScore means the snapshot's values across the given categories,
// defaulting to the neutral midpoint when none were rated. Goalkeeping
// ratings fold into the technical axis.
func categoryScore(byCategory map[metric.Category][]float64, cats ...metric.Category) float64 {
	var vals []float64
	for _, c := range cats {
		vals = append(vals, byCategory[c]...)
	}
	if len(vals) == 0 {
		return NeutralScore
	}
	m, err := stats.Mean(vals)
	if err != nil {
		return NeutralScore
	}
	return clamp(m)
}

// tacticalFit scores how well the player projects onto actual positions.
func tacticalFit(positions []model.PositionRating) float64 {
	if len(positions) == 0 {
		return NeutralScore
	}
	vals := make([]float64, len(positions))
	for i, p := range positions {
		vals[i] = p.Suitability
	}
	m, err := stats.Mean(vals)
	if err != nil {
		return NeutralScore
	}
	return clamp(m)
}

// explain ranks metric keys by signed deviation from their own category
// mean inside the snapshot.
func (c *Composer) explain(snap model.Snapshot) (strengths, focus []string) {
	type deviation struct {
		key   string
		delta float64
	}

	// Category means within this snapshot only.
	sums := make(map[metric.Category]struct {
		sum float64
		n   int
	})
	cats := make(map[string]metric.Category, len(snap.Values))
	for _, v := range snap.Values {
		cat, err := c.registry.CategoryOf(v.Key)
		if err != nil {
			continue
		}
		cats[v.Key] = cat
		agg := sums[cat]
		agg.sum += v.Value
		agg.n++
		sums[cat] = agg
	}

	devs := make([]deviation, 0, len(snap.Values))
	for _, v := range snap.Values {
		cat, ok := cats[v.Key]
		if !ok {
			continue
		}
		agg := sums[cat]
		devs = append(devs, deviation{key: v.Key, delta: v.Value - agg.sum/float64(agg.n)})
	}

	descending := make([]deviation, len(devs))
	copy(descending, devs)
	sort.Slice(descending, func(i, j int) bool {
		if descending[i].delta != descending[j].delta {
			return descending[i].delta > descending[j].delta
		}
		return descending[i].key < descending[j].key
	})
	ascending := make([]deviation, len(devs))
	copy(ascending, devs)
	sort.Slice(ascending, func(i, j int) bool {
		if ascending[i].delta != ascending[j].delta {
			return ascending[i].delta < ascending[j].delta
		}
		return ascending[i].key < ascending[j].key
	})

	n := c.explanationSize
	if n > len(devs) {
		n = len(devs)
	}
	for i := 0; i < n; i++ {
		strengths = append(strengths, descending[i].key)
		focus = append(focus, ascending[i].key)
	}
	return strengths, focus
}

func clamp(v float64) float64 {
	return math.Max(metric.MinValue, math.Min(metric.MaxValue, v))
}
