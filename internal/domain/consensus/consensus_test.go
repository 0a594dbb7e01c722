package consensus_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/calibrate/internal/adapters/repository"
	"github.com/okian/calibrate/internal/domain/consensus"
	"github.com/okian/calibrate/internal/domain/metric"
	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/internal/domain/profile"
	. "github.com/smartystreets/goconvey/convey"
)

// stubProfiles hands out exact per-coach biases so consensus arithmetic
// can be asserted to the digit.
type stubProfiles struct {
	byCoach map[string]profile.CategoryProfile
}

func (s stubProfiles) Profile(_ context.Context, coachID string, _ bool) (profile.Profile, error) {
	cp, ok := s.byCoach[coachID]
	if !ok {
		cp = profile.CategoryProfile{Confidence: profile.DefaultConfidenceFloor, Neutral: true}
	}
	return profile.Profile{
		CoachID: coachID,
		PerCategory: map[metric.Category]profile.CategoryProfile{
			metric.Technical: cp,
		},
	}, nil
}

func appendSnap(store *repository.MemoryStore, id, player, coach string, at time.Time, values ...model.MetricValue) {
	_, err := store.Append(context.Background(), model.Snapshot{
		ID:        id,
		PlayerID:  player,
		CoachID:   coach,
		CreatedAt: at,
		Context:   model.Context{Center: "north", AgeGroup: "U15"},
		Values:    values,
	})
	So(err, ShouldBeNil)
}

func TestEngine_Consensus(t *testing.T) {
	Convey("Given two calibrated coaches who rated the same player", t, func() {
		store := repository.NewMemoryStore()
		profiles := stubProfiles{byCoach: map[string]profile.CategoryProfile{
			"coach-a": {Bias: 12, Confidence: 0.8},
			"coach-b": {Bias: -8, Confidence: 0.8},
		}}
		eng := consensus.NewEngine(store, profiles, metric.NewRegistry())
		base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

		// Raw 80 and 60 converge to the same corrected value of 68.
		appendSnap(store, "s1", "p1", "coach-a", base, model.MetricValue{Key: "passing", Value: 80})
		appendSnap(store, "s2", "p1", "coach-b", base.Add(time.Hour), model.MetricValue{Key: "passing", Value: 60})

		Convey("When computing the metric consensus", func() {
			rec, err := eng.Consensus(context.Background(), "p1", "passing", 0)

			Convey("Then bias correction should converge the opposed raters", func() {
				So(err, ShouldBeNil)
				So(rec.SubjectKind, ShouldEqual, consensus.SubjectMetric)
				So(rec.CoachCount, ShouldEqual, 2)
				So(rec.Value, ShouldAlmostEqual, 68, 1e-9)
				So(rec.Spread, ShouldAlmostEqual, 0, 1e-9)
			})

			Convey("And votes should be ordered by coach ID with full detail", func() {
				So(len(rec.Votes), ShouldEqual, 2)
				So(rec.Votes[0].CoachID, ShouldEqual, "coach-a")
				So(rec.Votes[0].RawValue, ShouldEqual, 80)
				So(rec.Votes[0].Corrected, ShouldAlmostEqual, 68, 1e-9)
				So(rec.Votes[1].CoachID, ShouldEqual, "coach-b")
				So(rec.Votes[1].Corrected, ShouldAlmostEqual, 68, 1e-9)
			})
		})

		Convey("When a coach rates the player again", func() {
			appendSnap(store, "s3", "p1", "coach-a", base.Add(2*time.Hour), model.MetricValue{Key: "passing", Value: 90})

			rec, err := eng.Consensus(context.Background(), "p1", "passing", 0)

			Convey("Then only their latest snapshot should count", func() {
				So(err, ShouldBeNil)
				So(rec.CoachCount, ShouldEqual, 2)
				for _, v := range rec.Votes {
					if v.CoachID == "coach-a" {
						So(v.SnapshotID, ShouldEqual, "s3")
						So(v.RawValue, ShouldEqual, 90)
					}
				}
			})
		})

		Convey("When asking for a category subject", func() {
			rec, err := eng.Consensus(context.Background(), "p1", string(metric.Technical), 0)

			Convey("Then the snapshot means over the category should feed the votes", func() {
				So(err, ShouldBeNil)
				So(rec.SubjectKind, ShouldEqual, consensus.SubjectCategory)
				So(rec.CoachCount, ShouldEqual, 2)
			})
		})

		Convey("When the subject is neither metric nor category", func() {
			_, err := eng.Consensus(context.Background(), "p1", "swagger", 0)

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, metric.ErrInvalidMetricKey), ShouldBeTrue)
			})
		})
	})

	Convey("Given a player rated by a single coach", t, func() {
		store := repository.NewMemoryStore()
		eng := consensus.NewEngine(store, stubProfiles{}, metric.NewRegistry())
		appendSnap(store, "s1", "p1", "coach-a", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
			model.MetricValue{Key: "passing", Value: 80})

		Convey("When computing consensus", func() {
			_, err := eng.Consensus(context.Background(), "p1", "passing", 0)

			Convey("Then it should refuse rather than degrade", func() {
				So(errors.Is(err, consensus.ErrInsufficientRaters), ShouldBeTrue)
			})
		})
	})

	Convey("Given three coaches and a raised rater floor", t, func() {
		store := repository.NewMemoryStore()
		profiles := stubProfiles{byCoach: map[string]profile.CategoryProfile{
			"coach-a": {Bias: 0, Confidence: 0.9},
			"coach-b": {Bias: 0, Confidence: 0.9},
			"coach-c": {Bias: 0, Confidence: 0.9},
		}}
		eng := consensus.NewEngine(store, profiles, metric.NewRegistry())
		base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		appendSnap(store, "s1", "p1", "coach-a", base, model.MetricValue{Key: "passing", Value: 70})
		appendSnap(store, "s2", "p1", "coach-b", base.Add(time.Hour), model.MetricValue{Key: "passing", Value: 80})

		Convey("When requiring three distinct raters", func() {
			_, err := eng.Consensus(context.Background(), "p1", "passing", 3)

			Convey("Then two should not be enough", func() {
				So(errors.Is(err, consensus.ErrInsufficientRaters), ShouldBeTrue)
			})

			Convey("And a third rater should unlock it", func() {
				appendSnap(store, "s3", "p1", "coach-c", base.Add(2*time.Hour), model.MetricValue{Key: "passing", Value: 90})
				rec, err := eng.Consensus(context.Background(), "p1", "passing", 3)
				So(err, ShouldBeNil)
				So(rec.CoachCount, ShouldEqual, 3)
				So(rec.Value, ShouldAlmostEqual, 80, 1e-9)
			})
		})
	})
}

func TestRecord_Public(t *testing.T) {
	Convey("Given a full consensus record", t, func() {
		rec := consensus.Record{
			PlayerID:    "p1",
			Subject:     "passing",
			SubjectKind: consensus.SubjectMetric,
			CoachCount:  2,
			Value:       68,
			Spread:      0.5,
			Votes: []consensus.Vote{
				{CoachID: "coach-a", SnapshotID: "s1", RawValue: 80, Corrected: 68},
			},
		}

		Convey("When projecting the anonymized view", func() {
			pub := rec.Public()
			raw, err := json.Marshal(pub)

			Convey("Then the aggregate should survive", func() {
				So(err, ShouldBeNil)
				So(pub.Value, ShouldEqual, 68)
				So(pub.CoachCount, ShouldEqual, 2)
			})

			Convey("And no coach identity or raw vote should serialize", func() {
				So(err, ShouldBeNil)
				So(string(raw), ShouldNotContainSubstring, "coach-a")
				So(string(raw), ShouldNotContainSubstring, "coach_id")
				So(string(raw), ShouldNotContainSubstring, "votes")
				So(string(raw), ShouldNotContainSubstring, "raw_value")
			})
		})
	})
}

func TestEngine_MultiCoachPlayers(t *testing.T) {
	Convey("Given players with varying rater counts", t, func() {
		store := repository.NewMemoryStore()
		eng := consensus.NewEngine(store, stubProfiles{}, metric.NewRegistry())
		base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

		appendSnap(store, "s1", "solo", "coach-a", base, model.MetricValue{Key: "passing", Value: 70})
		appendSnap(store, "s2", "solo", "coach-a", base.Add(time.Hour), model.MetricValue{Key: "passing", Value: 72})
		appendSnap(store, "s3", "duo", "coach-a", base, model.MetricValue{Key: "passing", Value: 70})
		appendSnap(store, "s4", "duo", "coach-b", base.Add(time.Hour), model.MetricValue{Key: "stamina", Value: 60})

		Convey("When listing multi-coach players", func() {
			players, err := eng.MultiCoachPlayers(context.Background(), 2)

			Convey("Then repeat ratings by one coach should not qualify", func() {
				So(err, ShouldBeNil)
				So(players, ShouldResemble, []string{"duo"})
			})
		})
	})
}
