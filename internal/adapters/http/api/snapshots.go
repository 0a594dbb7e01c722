// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/internal/domain/readiness"
)

// snapshotRequest mirrors the ingestion schema for POST /api/v1/snapshots.
type snapshotRequest struct {
	PlayerID  string                  `json:"player_id"`
	CoachID   string                  `json:"coach_id"`
	CreatedAt string                  `json:"created_at,omitempty"`
	Context   model.Context           `json:"context"`
	Values    []model.MetricValue     `json:"values"`
	Positions []model.PositionRating  `json:"positions,omitempty"`
	Traits    map[string]float64      `json:"traits,omitempty"`
	Note      string                  `json:"note,omitempty"`
}

func (req snapshotRequest) toModel() (model.Snapshot, error) {
	snap := model.Snapshot{
		PlayerID:  req.PlayerID,
		CoachID:   req.CoachID,
		Context:   req.Context,
		Values:    req.Values,
		Positions: req.Positions,
		Traits:    req.Traits,
		Note:      req.Note,
	}
	if req.CreatedAt != "" {
		ts, err := time.Parse(time.RFC3339, req.CreatedAt)
		if err != nil {
			return model.Snapshot{}, err
		}
		snap.CreatedAt = ts
	}
	return snap, nil
}

// snapshotResponse acknowledges ingestion with the derived readiness view.
type snapshotResponse struct {
	Snapshot  model.Snapshot  `json:"snapshot"`
	Readiness readiness.Index `json:"readiness"`
}

// handlePostSnapshot handles POST /api/v1/snapshots.
func (s *Server) handlePostSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	snap, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_timestamp", err)
		return
	}

	stored, idx, err := s.deps.Ingest(r.Context(), snap)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshotResponse{Snapshot: stored, Readiness: idx})
}

// handleReadiness handles POST /api/v1/readiness: composing the index for
// an ad-hoc snapshot body without touching the ledger.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	snap, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_timestamp", err)
		return
	}

	idx, err := s.deps.ComposeReadiness(snap)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idx)
}
