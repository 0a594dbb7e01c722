// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/calibrate/internal/adapters/repository"
	"github.com/okian/calibrate/internal/domain/baseline"
	"github.com/okian/calibrate/internal/domain/consensus"
	"github.com/okian/calibrate/internal/domain/hint"
	"github.com/okian/calibrate/internal/domain/metric"
	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/internal/domain/profile"
	"github.com/okian/calibrate/internal/domain/readiness"
	"github.com/okian/calibrate/internal/domain/trend"
)

// Dependencies required by HTTP handlers. The interface bundle keeps the
// handler layer loosely coupled to the service assembly.
type Dependencies interface {
	Ingest(ctx context.Context, snap model.Snapshot) (model.Snapshot, readiness.Index, error)
	Baseline(ctx context.Context, metricKey string, partition model.Context) (baseline.Stats, error)
	CoachProfile(ctx context.Context, coachID string, refresh bool) (profile.Profile, error)
	Hints(ctx context.Context, metricKey string, rawValue float64, partition model.Context, coachID string) (hint.Payload, error)
	ComposeReadiness(snap model.Snapshot) (readiness.Index, error)
	Consensus(ctx context.Context, playerID, subject string, minCoaches int) (consensus.Record, error)
	MultiCoachPlayers(ctx context.Context, minCoaches int) ([]string, error)
	ClassifyTrend(ctx context.Context, playerID, metricKey string, window int) (trend.Trend, error)
	RankPositions(ctx context.Context, playerID string) ([]model.PositionRating, error)
}

// Server wires HTTP routes for the engine API.
type Server struct {
	deps  Dependencies
	stats StatsProvider
}

// NewServer creates a new API server over the engine dependencies.
func NewServer(deps Dependencies, stats StatsProvider) *Server {
	return &Server{deps: deps, stats: stats}
}

// Register attaches all HTTP routes to the router.
func (s *Server) Register(ctx context.Context, r *mux.Router) {
	r.HandleFunc("/healthz", MetricsMiddleware(s.handleHealth, "healthz")).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.handleStats, "stats")).Methods(http.MethodGet)
	r.Handle("/metrics", metricsHandler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/snapshots", MetricsMiddleware(s.handlePostSnapshot, "snapshots")).Methods(http.MethodPost)
	v1.HandleFunc("/readiness", MetricsMiddleware(s.handleReadiness, "readiness")).Methods(http.MethodPost)
	v1.HandleFunc("/baselines/{metric}", MetricsMiddleware(s.handleBaseline, "baselines")).Methods(http.MethodGet)
	v1.HandleFunc("/coaches/{id}/profile", MetricsMiddleware(s.handleCoachProfile, "coach_profile")).Methods(http.MethodGet)
	v1.HandleFunc("/hints/{metric}", MetricsMiddleware(s.handleHints, "hints")).Methods(http.MethodGet)
	v1.HandleFunc("/players/multi-coach", MetricsMiddleware(s.handleMultiCoach, "multi_coach")).Methods(http.MethodGet)
	v1.HandleFunc("/players/{id}/consensus/{subject}", MetricsMiddleware(s.handleConsensus, "consensus")).Methods(http.MethodGet)
	v1.HandleFunc("/players/{id}/trend/{metric}", MetricsMiddleware(s.handleTrend, "trend")).Methods(http.MethodGet)
	v1.HandleFunc("/players/{id}/positions", MetricsMiddleware(s.handlePositions, "positions")).Methods(http.MethodGet)
}

// insufficientResponse is the "not enough data yet" payload. The product
// surfaces these as informative states, never generic errors.
type insufficientResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps engine error kinds onto the HTTP surface. Typed
// not-enough-data results are 200s with a status discriminator.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hint.ErrInsufficientData),
		errors.Is(err, trend.ErrInsufficientData):
		writeJSON(w, http.StatusOK, insufficientResponse{Status: "insufficient_data", Message: err.Error()})
	case errors.Is(err, consensus.ErrInsufficientRaters):
		writeJSON(w, http.StatusOK, insufficientResponse{Status: "insufficient_raters", Message: err.Error()})
	case errors.Is(err, metric.ErrInvalidMetricKey):
		writeError(w, http.StatusBadRequest, "invalid_metric_key", err)
	case errors.Is(err, metric.ErrRangeViolation):
		writeError(w, http.StatusUnprocessableEntity, "range_violation", err)
	case errors.Is(err, model.ErrInvalidSnapshot):
		writeError(w, http.StatusBadRequest, "invalid_snapshot", err)
	case errors.Is(err, repository.ErrImmutableLedger):
		writeError(w, http.StatusConflict, "duplicate_snapshot", err)
	case errors.Is(err, repository.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// contextFromQuery reads the partition tuple from query parameters.
// Missing parameters widen the partition.
func contextFromQuery(r *http.Request) model.Context {
	q := r.URL.Query()
	return model.Context{
		Center:   q.Get("center"),
		Position: q.Get("position"),
		AgeGroup: q.Get("age_group"),
		Season:   q.Get("season"),
		Source:   q.Get("source"),
	}
}
