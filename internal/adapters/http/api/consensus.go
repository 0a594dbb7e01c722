// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// handleConsensus handles
// GET /api/v1/players/{id}/consensus/{subject}?anonymize=&min_coaches=.
//
// anonymize defaults to true; the full per-coach breakdown is serialized
// only when the caller explicitly passes anonymize=false. Authorization
// for that flag is the caller's concern, not the engine's.
func (s *Server) handleConsensus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	playerID, subject := vars["id"], vars["subject"]
	q := r.URL.Query()

	minCoaches := 0
	if raw := q.Get("min_coaches"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrMissingParameter)
			return
		}
		minCoaches = n
	}

	rec, err := s.deps.Consensus(r.Context(), playerID, subject, minCoaches)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Projection applied last, after the full computation.
	if q.Get("anonymize") == "false" {
		writeJSON(w, http.StatusOK, rec)
		return
	}
	writeJSON(w, http.StatusOK, rec.Public())
}

// handleMultiCoach handles GET /api/v1/players/multi-coach?min_coaches=.
func (s *Server) handleMultiCoach(w http.ResponseWriter, r *http.Request) {
	minCoaches := 0
	if raw := r.URL.Query().Get("min_coaches"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrMissingParameter)
			return
		}
		minCoaches = n
	}

	players, err := s.deps.MultiCoachPlayers(r.Context(), minCoaches)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": players})
}
