// Package baseline computes contextual rating baselines: the mean and
// dispersion of raw values for one metric within a context partition
// (center/position/age-group/season). Baselines are the calibration
// reference everything else measures against.
package baseline

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/calibrate/internal/adapters/cache"
	"github.com/okian/calibrate/internal/adapters/repository"
	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/pkg/metrics"
)

// Stats is the aggregate for one (metric, context) partition. Mean and
// StdDev are meaningless when Count is zero; callers branch on Count.
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Defined reports whether the stats carry any observations.
func (s Stats) Defined() bool { return s.Count > 0 }

// Accumulator is a commutative, mergeable running aggregate (Welford's
// method). Feeding the same values in any order yields identical stats,
// and partitioned accumulators merge without revisiting raw data, so
// baselines can refresh incrementally.
type Accumulator struct {
	n    int
	mean float64
	m2   float64
}

// Add folds one observation into the aggregate.
func (a *Accumulator) Add(v float64) {
	a.n++
	delta := v - a.mean
	a.mean += delta / float64(a.n)
	a.m2 += delta * (v - a.mean)
}

// Merge folds another accumulator into this one (Chan et al. parallel
// variance combination).
func (a *Accumulator) Merge(b Accumulator) {
	if b.n == 0 {
		return
	}
	if a.n == 0 {
		*a = b
		return
	}
	n := a.n + b.n
	delta := b.mean - a.mean
	a.m2 += b.m2 + delta*delta*float64(a.n)*float64(b.n)/float64(n)
	a.mean += delta * float64(b.n) / float64(n)
	a.n = n
}

// Stats finalizes the aggregate. StdDev is the population deviation.
func (a Accumulator) Stats() Stats {
	if a.n == 0 {
		return Stats{}
	}
	return Stats{
		Count:  a.n,
		Mean:   a.mean,
		StdDev: math.Sqrt(a.m2 / float64(a.n)),
	}
}

// Calculator resolves baselines from the ledger, memoized through the
// engine cache with single-flight recomputation per partition key.
type Calculator struct {
	store repository.Store
	cache cache.Loader[Stats]
}

// NewCalculator wires a calculator to its ledger and cache.
func NewCalculator(store repository.Store, c cache.Loader[Stats]) *Calculator {
	return &Calculator{store: store, cache: c}
}

// Baseline returns the aggregate for metricKey within ctx's partition.
// Unspecified tuple fields widen the partition ("all"). Zero matching
// snapshots yield Stats{Count: 0}, not an error.
func (c *Calculator) Baseline(ctx context.Context, metricKey string, partition model.Context) (Stats, error) {
	key := Key(metricKey, partition)
	return c.cache.Get(ctx, key, false, func(ctx context.Context) (Stats, error) {
		return c.compute(ctx, metricKey, partition)
	})
}

// Refresh recomputes the partition's baseline regardless of freshness.
func (c *Calculator) Refresh(ctx context.Context, metricKey string, partition model.Context) (Stats, error) {
	return c.cache.Get(ctx, Key(metricKey, partition), true, func(ctx context.Context) (Stats, error) {
		return c.compute(ctx, metricKey, partition)
	})
}

// compute queries only the matching snapshot set; cost scales with the
// partition, never the whole ledger.
func (c *Calculator) compute(ctx context.Context, metricKey string, partition model.Context) (Stats, error) {
	start := time.Now()
	defer func() {
		metrics.RecordBaselineRecompute()
		metrics.RecordRecomputeLatency(float64(time.Since(start).Milliseconds()))
	}()

	snaps, err := c.store.Query(ctx, repository.Filter{
		Context:   partition,
		MetricKey: metricKey,
	})
	if err != nil {
		return Stats{}, fmt.Errorf("baseline query for %s: %w", metricKey, err)
	}

	var acc Accumulator
	for _, s := range snaps {
		if v, ok := s.Value(metricKey); ok {
			acc.Add(v)
		}
	}
	return acc.Stats(), nil
}

// Key derives the cache key for a (metric, partition) pair.
func Key(metricKey string, partition model.Context) string {
	return strings.Join([]string{
		metricKey,
		partition.Center,
		partition.Position,
		partition.AgeGroup,
		partition.Season,
		partition.Source,
	}, "|")
}
