package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/calibrate/internal/adapters/repository"
	"github.com/okian/calibrate/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func snap(id, player, coach string, at time.Time, ctxt model.Context, values ...model.MetricValue) model.Snapshot {
	return model.Snapshot{
		ID:        id,
		PlayerID:  player,
		CoachID:   coach,
		CreatedAt: at,
		Context:   ctxt,
		Values:    values,
	}
}

func TestMemoryStore_Append(t *testing.T) {
	Convey("Given an empty ledger", t, func() {
		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		store := repository.NewMemoryStore(repository.WithClock(func() time.Time { return now }))
		ctx := context.Background()

		Convey("When appending a snapshot without ID or timestamp", func() {
			stored, err := store.Append(ctx, snap("", "p1", "c1", time.Time{}, model.Context{},
				model.MetricValue{Key: "passing", Value: 70}))

			Convey("Then the store should assign both", func() {
				So(err, ShouldBeNil)
				So(stored.ID, ShouldNotBeEmpty)
				So(stored.CreatedAt.Equal(now), ShouldBeTrue)
				So(store.Count(ctx), ShouldEqual, 1)
			})
		})

		Convey("When appending the same ID twice", func() {
			_, err := store.Append(ctx, snap("dup", "p1", "c1", now, model.Context{},
				model.MetricValue{Key: "passing", Value: 70}))
			So(err, ShouldBeNil)

			_, err = store.Append(ctx, snap("dup", "p1", "c1", now, model.Context{},
				model.MetricValue{Key: "passing", Value: 80}))

			Convey("Then the second append should violate the ledger", func() {
				So(errors.Is(err, repository.ErrImmutableLedger), ShouldBeTrue)
				So(store.Count(ctx), ShouldEqual, 1)
			})
		})

		Convey("When mutating a returned snapshot", func() {
			stored, err := store.Append(ctx, snap("s1", "p1", "c1", now, model.Context{},
				model.MetricValue{Key: "passing", Value: 70}))
			So(err, ShouldBeNil)
			stored.Values[0].Value = 5

			got, err := store.ByPlayer(ctx, "p1", repository.Filter{})

			Convey("Then the ledger copy should be untouched", func() {
				So(err, ShouldBeNil)
				So(got[0].Values[0].Value, ShouldEqual, 70)
			})
		})
	})
}

func TestMemoryStore_Reads(t *testing.T) {
	Convey("Given a ledger with snapshots from two coaches", t, func() {
		store := repository.NewMemoryStore()
		ctx := context.Background()
		base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		north := model.Context{Center: "north", AgeGroup: "U15"}
		south := model.Context{Center: "south", AgeGroup: "U15"}

		// Appended out of chronological order on purpose.
		fixtures := []model.Snapshot{
			snap("s3", "p1", "c1", base.Add(2*time.Hour), north, model.MetricValue{Key: "passing", Value: 75}),
			snap("s1", "p1", "c1", base, north, model.MetricValue{Key: "passing", Value: 70}),
			snap("s2", "p1", "c2", base.Add(time.Hour), south, model.MetricValue{Key: "stamina", Value: 60}),
			snap("s4", "p2", "c2", base.Add(3*time.Hour), north, model.MetricValue{Key: "passing", Value: 55}),
		}
		for _, f := range fixtures {
			_, err := store.Append(ctx, f)
			So(err, ShouldBeNil)
		}

		Convey("When reading a player's history", func() {
			got, err := store.ByPlayer(ctx, "p1", repository.Filter{})

			Convey("Then it should come back oldest first", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 3)
				So(got[0].ID, ShouldEqual, "s1")
				So(got[1].ID, ShouldEqual, "s2")
				So(got[2].ID, ShouldEqual, "s3")
			})
		})

		Convey("When filtering by context", func() {
			got, err := store.Query(ctx, repository.Filter{Context: model.Context{Center: "north"}})

			Convey("Then only matching snapshots should remain", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 3)
				for _, s := range got {
					So(s.Context.Center, ShouldEqual, "north")
				}
			})
		})

		Convey("When filtering by metric key", func() {
			got, err := store.Query(ctx, repository.Filter{MetricKey: "stamina"})

			Convey("Then only snapshots rating that metric should remain", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 1)
				So(got[0].ID, ShouldEqual, "s2")
			})
		})

		Convey("When limiting the result", func() {
			got, err := store.ByPlayer(ctx, "p1", repository.Filter{Limit: 2})

			Convey("Then the limit should keep the most recent snapshots, still oldest first", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[0].ID, ShouldEqual, "s2")
				So(got[1].ID, ShouldEqual, "s3")
			})
		})

		Convey("When reading a coach's history", func() {
			got, err := store.ByCoach(ctx, "c2", repository.Filter{})

			Convey("Then both of their snapshots should come back", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[0].ID, ShouldEqual, "s2")
				So(got[1].ID, ShouldEqual, "s4")
			})
		})

		Convey("When listing players", func() {
			players, err := store.Players(ctx)

			Convey("Then distinct IDs should come back lexically ordered", func() {
				So(err, ShouldBeNil)
				So(players, ShouldResemble, []string{"p1", "p2"})
			})
		})

		Convey("When reading an unknown player", func() {
			got, err := store.ByPlayer(ctx, "ghost", repository.Filter{})

			Convey("Then the result should be empty, not an error", func() {
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)
			})
		})
	})
}
