// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// handleBaseline handles GET /api/v1/baselines/{metric}.
// Context filters arrive as query parameters; absent filters mean "all".
func (s *Server) handleBaseline(w http.ResponseWriter, r *http.Request) {
	metricKey := mux.Vars(r)["metric"]

	stats, err := s.deps.Baseline(r.Context(), metricKey, contextFromQuery(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleCoachProfile handles GET /api/v1/coaches/{id}/profile?refresh=.
func (s *Server) handleCoachProfile(w http.ResponseWriter, r *http.Request) {
	coachID := mux.Vars(r)["id"]
	if strings.TrimSpace(coachID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingParameter)
		return
	}
	refresh := r.URL.Query().Get("refresh") == "true"

	prof, err := s.deps.CoachProfile(r.Context(), coachID, refresh)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

// handleHints handles GET /api/v1/hints/{metric}?value=&coach=&...context.
func (s *Server) handleHints(w http.ResponseWriter, r *http.Request) {
	metricKey := mux.Vars(r)["metric"]
	q := r.URL.Query()

	coachID := q.Get("coach")
	if strings.TrimSpace(coachID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingParameter)
		return
	}
	rawValue, err := strconv.ParseFloat(q.Get("value"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	payload, err := s.deps.Hints(r.Context(), metricKey, rawValue, contextFromQuery(r), coachID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
