// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// handleTrend handles GET /api/v1/players/{id}/trend/{metric}?window=.
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	playerID, metricKey := vars["id"], vars["metric"]

	window := 0
	if raw := r.URL.Query().Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 2 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrMissingParameter)
			return
		}
		window = n
	}

	t, err := s.deps.ClassifyTrend(r.Context(), playerID, metricKey, window)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handlePositions handles GET /api/v1/players/{id}/positions.
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	playerID := mux.Vars(r)["id"]

	positions, err := s.deps.RankPositions(r.Context(), playerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"player_id": playerID, "positions": positions})
}
