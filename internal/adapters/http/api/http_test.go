package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/calibrate/internal/adapters/http/api"
	"github.com/okian/calibrate/internal/adapters/repository"
	service "github.com/okian/calibrate/internal/app"
	"github.com/okian/calibrate/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func newTestRouter() (*mux.Router, *service.Service) {
	svc := service.New(service.WithStore(repository.NewMemoryStore()))
	So(svc.Start(context.Background()), ShouldBeNil)

	r := mux.NewRouter()
	api.NewServer(svc, svc).Register(context.Background(), r)
	return r, svc
}

func doJSON(r *mux.Router, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		So(json.NewEncoder(&buf).Encode(body), ShouldBeNil)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func snapshotBody(player, coach string, at time.Time, key string, value float64) map[string]any {
	return map[string]any{
		"player_id":  player,
		"coach_id":   coach,
		"created_at": at.Format(time.RFC3339),
		"context":    map[string]string{"center": "north", "age_group": "U15"},
		"values":     []map[string]any{{"key": key, "value": value}},
	}
}

func seedRatings(r *mux.Router) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, v := range []float64{70, 75, 72, 73, 70} {
		rec := doJSON(r, http.MethodPost, "/api/v1/snapshots",
			snapshotBody("p1", "coach-a", base.Add(time.Duration(i)*time.Hour), "passing", v))
		So(rec.Code, ShouldEqual, http.StatusCreated)
	}
	for i, v := range []float64{54, 56, 55, 54, 56} {
		rec := doJSON(r, http.MethodPost, "/api/v1/snapshots",
			snapshotBody("p1", "coach-b", base.Add(time.Duration(i+8)*time.Hour), "passing", v))
		So(rec.Code, ShouldEqual, http.StatusCreated)
	}
}

func TestSnapshotRoutes(t *testing.T) {
	Convey("Given the engine behind its router", t, func() {
		r, _ := newTestRouter()
		at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

		Convey("When posting a valid snapshot", func() {
			rec := doJSON(r, http.MethodPost, "/api/v1/snapshots", snapshotBody("p1", "c1", at, "passing", 72))

			Convey("Then it should be created with a readiness view", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)

				var resp struct {
					Snapshot struct {
						ID string `json:"id"`
					} `json:"snapshot"`
					Readiness struct {
						Overall float64 `json:"overall"`
					} `json:"readiness"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Snapshot.ID, ShouldNotBeEmpty)
				So(resp.Readiness.Overall, ShouldBeBetweenOrEqual, 0, 100)
			})
		})

		Convey("When posting malformed JSON", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/snapshots", bytes.NewBufferString("{nope"))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			Convey("Then it should be a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When posting an out-of-range rating", func() {
			rec := doJSON(r, http.MethodPost, "/api/v1/snapshots", snapshotBody("p1", "c1", at, "passing", 140))

			Convey("Then it should be unprocessable", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(rec.Body.String(), ShouldContainSubstring, "range_violation")
			})
		})

		Convey("When posting an unknown metric", func() {
			rec := doJSON(r, http.MethodPost, "/api/v1/snapshots", snapshotBody("p1", "c1", at, "charisma", 50))

			Convey("Then it should be a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(rec.Body.String(), ShouldContainSubstring, "invalid_metric_key")
			})
		})

		Convey("When composing readiness without ingesting", func() {
			rec := doJSON(r, http.MethodPost, "/api/v1/readiness", snapshotBody("p1", "c1", at, "passing", 90))

			Convey("Then it should return the index", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "sub_scores")
			})
		})

		Convey("When the timestamp is not RFC3339", func() {
			body := snapshotBody("p1", "c1", at, "passing", 72)
			body["created_at"] = "yesterday"
			rec := doJSON(r, http.MethodPost, "/api/v1/snapshots", body)

			Convey("Then it should be a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(rec.Body.String(), ShouldContainSubstring, "invalid_timestamp")
			})
		})
	})
}

func TestCalibrationRoutes(t *testing.T) {
	Convey("Given a seeded engine behind its router", t, func() {
		r, _ := newTestRouter()
		seedRatings(r)

		Convey("When fetching a baseline", func() {
			rec := doJSON(r, http.MethodGet, "/api/v1/baselines/passing?center=north", nil)

			Convey("Then the aggregate should come back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var stats struct {
					Count int     `json:"count"`
					Mean  float64 `json:"mean"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &stats), ShouldBeNil)
				So(stats.Count, ShouldEqual, 10)
			})
		})

		Convey("When fetching a baseline for an unknown metric", func() {
			rec := doJSON(r, http.MethodGet, "/api/v1/baselines/charisma", nil)

			Convey("Then it should be a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When fetching a coach profile", func() {
			rec := doJSON(r, http.MethodGet, "/api/v1/coaches/coach-a/profile", nil)

			Convey("Then the per-category calibration should come back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "per_category")
				So(rec.Body.String(), ShouldContainSubstring, "TECHNICAL")
			})
		})

		Convey("When asking for a hint with enough context", func() {
			rec := doJSON(r, http.MethodGet, "/api/v1/hints/passing?value=72&coach=coach-a&center=north&age_group=U15", nil)

			Convey("Then the hint payload should come back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "flag")
				So(rec.Body.String(), ShouldContainSubstring, "delta_from_peers")
			})
		})

		Convey("When asking for a hint in an unseen partition", func() {
			rec := doJSON(r, http.MethodGet, "/api/v1/hints/passing?value=72&coach=coach-a&center=nowhere", nil)

			Convey("Then it should be an informative 200, not an error", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var resp struct {
					Status string `json:"status"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Status, ShouldEqual, "insufficient_data")
			})
		})

		Convey("When the hint request lacks the coach parameter", func() {
			rec := doJSON(r, http.MethodGet, "/api/v1/hints/passing?value=72", nil)

			Convey("Then it should be a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestConsensusRoutes(t *testing.T) {
	Convey("Given a seeded engine behind its router", t, func() {
		r, _ := newTestRouter()
		seedRatings(r)

		Convey("When fetching the default consensus view", func() {
			rec := doJSON(r, http.MethodGet, "/api/v1/players/p1/consensus/passing", nil)

			Convey("Then the response should be anonymized", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "coach_count")
				So(rec.Body.String(), ShouldNotContainSubstring, "coach-a")
				So(rec.Body.String(), ShouldNotContainSubstring, "coach_id")
				So(rec.Body.String(), ShouldNotContainSubstring, "votes")
			})
		})

		Convey("When explicitly requesting the full breakdown", func() {
			rec := doJSON(r, http.MethodGet, "/api/v1/players/p1/consensus/passing?anonymize=false", nil)

			Convey("Then the per-coach votes should serialize", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "votes")
				So(rec.Body.String(), ShouldContainSubstring, "coach-a")
			})
		})

		Convey("When the player has a single rater", func() {
			base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
			created := doJSON(r, http.MethodPost, "/api/v1/snapshots", snapshotBody("p-solo", "coach-a", base, "passing", 70))
			So(created.Code, ShouldEqual, http.StatusCreated)

			rec := doJSON(r, http.MethodGet, "/api/v1/players/p-solo/consensus/passing", nil)

			Convey("Then it should be an informative 200", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var resp struct {
					Status string `json:"status"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Status, ShouldEqual, "insufficient_raters")
			})
		})

		Convey("When the subject is unknown", func() {
			rec := doJSON(r, http.MethodGet, "/api/v1/players/p1/consensus/swagger", nil)

			Convey("Then it should be a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When listing multi-coach players", func() {
			rec := doJSON(r, http.MethodGet, "/api/v1/players/multi-coach", nil)

			Convey("Then only multi-rated players should appear", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var resp struct {
					Players []string `json:"players"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Players, ShouldResemble, []string{"p1"})
			})
		})

		Convey("When min_coaches is not a number", func() {
			rec := doJSON(r, http.MethodGet, "/api/v1/players/multi-coach?min_coaches=lots", nil)

			Convey("Then it should be a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestTrendRoutes(t *testing.T) {
	Convey("Given a seeded engine behind its router", t, func() {
		r, _ := newTestRouter()
		base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		for i, v := range []float64{40, 45, 50, 55, 60} {
			rec := doJSON(r, http.MethodPost, "/api/v1/snapshots",
				snapshotBody("p1", "coach-a", base.Add(time.Duration(i)*24*time.Hour), "passing", v))
			So(rec.Code, ShouldEqual, http.StatusCreated)
		}

		Convey("When classifying the trend", func() {
			rec := doJSON(r, http.MethodGet, "/api/v1/players/p1/trend/passing", nil)

			Convey("Then the direction should come back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var tr struct {
					Direction string `json:"direction"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &tr), ShouldBeNil)
				So(tr.Direction, ShouldEqual, "improving")
			})
		})

		Convey("When the window parameter is too small", func() {
			rec := doJSON(r, http.MethodGet, "/api/v1/players/p1/trend/passing?window=1", nil)

			Convey("Then it should be a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the player has too little history", func() {
			created := doJSON(r, http.MethodPost, "/api/v1/snapshots",
				snapshotBody("p-new", "coach-a", base, "passing", 60))
			So(created.Code, ShouldEqual, http.StatusCreated)

			rec := doJSON(r, http.MethodGet, "/api/v1/players/p-new/trend/passing", nil)

			Convey("Then it should be an informative 200", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "insufficient_data")
			})
		})

		Convey("When ranking positions without positional data", func() {
			rec := doJSON(r, http.MethodGet, "/api/v1/players/p1/positions", nil)

			Convey("Then it should be an informative 200", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "insufficient_data")
			})
		})

		Convey("When ranking positions with positional data", func() {
			body := snapshotBody("p1", "coach-a", base.Add(10*24*time.Hour), "passing", 62)
			body["positions"] = []map[string]any{
				{"position": "CM", "suitability": 80},
				{"position": "ST", "suitability": 90},
			}
			created := doJSON(r, http.MethodPost, "/api/v1/snapshots", body)
			So(created.Code, ShouldEqual, http.StatusCreated)

			rec := doJSON(r, http.MethodGet, "/api/v1/players/p1/positions", nil)

			Convey("Then the best fit should lead", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var resp struct {
					Positions []struct {
						Position string `json:"position"`
					} `json:"positions"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(len(resp.Positions), ShouldEqual, 2)
				So(resp.Positions[0].Position, ShouldEqual, "ST")
			})
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given the engine behind its router", t, func() {
		r, _ := newTestRouter()

		Convey("When probing health", func() {
			rec := doJSON(r, http.MethodGet, "/healthz", nil)

			Convey("Then it should report ok", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "ok")
			})
		})

		Convey("When reading stats", func() {
			rec := doJSON(r, http.MethodGet, "/stats", nil)

			Convey("Then engine state should come back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "started")
			})
		})

		Convey("When scraping metrics", func() {
			rec := doJSON(r, http.MethodGet, "/metrics", nil)

			Convey("Then the exposition format should come back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "calibrate_")
			})
		})
	})
}
