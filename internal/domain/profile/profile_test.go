package profile_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/calibrate/internal/adapters/cache"
	"github.com/okian/calibrate/internal/adapters/repository"
	"github.com/okian/calibrate/internal/domain/baseline"
	"github.com/okian/calibrate/internal/domain/metric"
	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/internal/domain/profile"
	. "github.com/smartystreets/goconvey/convey"
)

// stubBaselines returns one fixed aggregate for every partition and
// counts calls so tests can assert recomputation collapsed.
type stubBaselines struct {
	stats baseline.Stats
	calls atomic.Int32
}

func (s *stubBaselines) Baseline(_ context.Context, _ string, _ model.Context) (baseline.Stats, error) {
	s.calls.Add(1)
	return s.stats, nil
}

func seedCoach(store *repository.MemoryStore, coachID, key string, values []float64) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, v := range values {
		_, err := store.Append(context.Background(), model.Snapshot{
			PlayerID:  "p1",
			CoachID:   coachID,
			CreatedAt: at.Add(time.Duration(i) * time.Hour),
			Context:   model.Context{Center: "north", AgeGroup: "U15"},
			Values:    []model.MetricValue{{Key: key, Value: v}},
		})
		So(err, ShouldBeNil)
	}
}

func TestBuilder_Profile(t *testing.T) {
	Convey("Given a lenient coach rating against a baseline of 60", t, func() {
		store := repository.NewMemoryStore()
		baselines := &stubBaselines{stats: baseline.Stats{Count: 15, Mean: 60, StdDev: 8}}
		reg := metric.NewRegistry()
		b := profile.NewBuilder(store, baselines, reg, cache.NewMemory[profile.Profile]())

		// Five technical ratings averaging 72 against a peer mean of 60.
		seedCoach(store, "coach-a", "passing", []float64{70, 75, 72, 73, 70})

		Convey("When computing the profile", func() {
			p, err := b.Profile(context.Background(), "coach-a", false)

			Convey("Then the technical bias should be plus twelve", func() {
				So(err, ShouldBeNil)
				So(p.CoachID, ShouldEqual, "coach-a")
				So(p.TotalSnapshots, ShouldEqual, 5)

				cp := p.Category(metric.Technical)
				So(cp.Neutral, ShouldBeFalse)
				So(cp.SampleCount, ShouldEqual, 5)
				So(cp.Bias, ShouldAlmostEqual, 12.0, 1e-9)
			})

			Convey("And confidence should follow the dispersion formula", func() {
				cp := p.Category(metric.Technical)
				// sd of {70,75,72,73,70} is sqrt(3.6); 1/(1+sd/10).
				So(cp.Confidence, ShouldAlmostEqual, 0.8405, 1e-4)
			})

			Convey("And an unrated category should fall back to neutral", func() {
				cp := p.Category(metric.Goalkeeping)
				So(cp.Neutral, ShouldBeTrue)
				So(cp.Bias, ShouldEqual, 0)
				So(cp.Confidence, ShouldEqual, profile.DefaultConfidenceFloor)
			})
		})
	})

	Convey("Given a coach below the sample floor", t, func() {
		store := repository.NewMemoryStore()
		baselines := &stubBaselines{stats: baseline.Stats{Count: 15, Mean: 60, StdDev: 8}}
		b := profile.NewBuilder(store, baselines, metric.NewRegistry(), cache.NewMemory[profile.Profile]())

		seedCoach(store, "coach-new", "passing", []float64{90, 95, 93})

		Convey("When computing the profile", func() {
			p, err := b.Profile(context.Background(), "coach-new", false)

			Convey("Then the category should be neutral despite the extreme ratings", func() {
				So(err, ShouldBeNil)
				cp := p.Category(metric.Technical)
				So(cp.Neutral, ShouldBeTrue)
				So(cp.Bias, ShouldEqual, 0)
				So(cp.Confidence, ShouldEqual, profile.DefaultConfidenceFloor)
				So(cp.SampleCount, ShouldEqual, 3)
			})
		})
	})

	Convey("Given a coach who rates every player identically", t, func() {
		store := repository.NewMemoryStore()
		baselines := &stubBaselines{stats: baseline.Stats{Count: 15, Mean: 60, StdDev: 8}}
		b := profile.NewBuilder(store, baselines, metric.NewRegistry(), cache.NewMemory[profile.Profile]())

		seedCoach(store, "coach-flat", "passing", []float64{65, 65, 65, 65, 65, 65})

		Convey("When computing the profile", func() {
			p, err := b.Profile(context.Background(), "coach-flat", false)

			Convey("Then confidence should be pinned to the floor, not inflated", func() {
				So(err, ShouldBeNil)
				cp := p.Category(metric.Technical)
				So(cp.Neutral, ShouldBeFalse)
				So(cp.Confidence, ShouldEqual, profile.DefaultConfidenceFloor)
				So(cp.Bias, ShouldAlmostEqual, 5.0, 1e-9)
			})
		})
	})

	Convey("Given custom sample and confidence bounds", t, func() {
		store := repository.NewMemoryStore()
		baselines := &stubBaselines{stats: baseline.Stats{Count: 15, Mean: 60, StdDev: 8}}
		b := profile.NewBuilder(store, baselines, metric.NewRegistry(), cache.NewMemory[profile.Profile](),
			profile.WithMinSamples(2),
			profile.WithConfidenceBounds(0.5, 10),
		)

		seedCoach(store, "coach-a", "passing", []float64{70, 74})

		Convey("When computing the profile", func() {
			p, err := b.Profile(context.Background(), "coach-a", false)

			Convey("Then the options should override the defaults", func() {
				So(err, ShouldBeNil)
				cp := p.Category(metric.Technical)
				So(cp.Neutral, ShouldBeFalse)
				So(cp.Confidence, ShouldBeGreaterThanOrEqualTo, 0.5)
			})
		})
	})
}

func TestBuilder_Caching(t *testing.T) {
	Convey("Given a builder over a deterministic clock", t, func() {
		store := repository.NewMemoryStore()
		baselines := &stubBaselines{stats: baseline.Stats{Count: 15, Mean: 60, StdDev: 8}}
		now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
		b := profile.NewBuilder(store, baselines, metric.NewRegistry(), cache.NewMemory[profile.Profile](),
			profile.WithClock(func() time.Time { return now }),
		)

		seedCoach(store, "coach-a", "passing", []float64{70, 75, 72, 73, 70})

		Convey("When many goroutines request a cold profile at once", func() {
			const n = 16
			var wg sync.WaitGroup
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = b.Profile(context.Background(), "coach-a", false)
				}(i)
			}
			wg.Wait()

			Convey("Then the recomputation should collapse to a single pass", func() {
				for i := 0; i < n; i++ {
					So(errs[i], ShouldBeNil)
				}
				// One compute pass resolves one baseline per rating.
				So(baselines.calls.Load(), ShouldEqual, 5)
			})
		})

		Convey("When serving from cache after the first computation", func() {
			first, err := b.Profile(context.Background(), "coach-a", false)
			So(err, ShouldBeNil)
			calls := baselines.calls.Load()

			second, err := b.Profile(context.Background(), "coach-a", false)

			Convey("Then no recomputation should happen", func() {
				So(err, ShouldBeNil)
				So(baselines.calls.Load(), ShouldEqual, calls)
				So(second.LastComputedAt.Equal(first.LastComputedAt), ShouldBeTrue)
			})
		})

		Convey("When forcing a refresh after new snapshots arrive", func() {
			first, err := b.Profile(context.Background(), "coach-a", false)
			So(err, ShouldBeNil)
			So(first.TotalSnapshots, ShouldEqual, 5)

			seedCoach(store, "coach-a", "stamina", []float64{50})
			refreshed, err := b.Profile(context.Background(), "coach-a", true)

			Convey("Then the profile should reflect the new ledger state", func() {
				So(err, ShouldBeNil)
				So(refreshed.TotalSnapshots, ShouldEqual, 6)
			})
		})
	})
}
