// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/calibrate/internal/domain/metric"
)

// Context is the partition tuple for baselines: the setting a rating was
// given in. Empty fields mean "unspecified".
type Context struct {
	Center   string `json:"center,omitempty"`
	Position string `json:"position,omitempty"`
	AgeGroup string `json:"age_group,omitempty"`
	Season   string `json:"season,omitempty"`
	// Source tags the assessment event, e.g. "match", "training", "trial".
	Source string `json:"source,omitempty"`
}

// MetricValue is one rating inside a snapshot.
type MetricValue struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	// Confidence is the coach's self-reported certainty in [0,100], optional.
	Confidence *float64 `json:"confidence,omitempty"`
	Comment    string   `json:"comment,omitempty"`
}

// PositionRating scores how well a player suits a position.
type PositionRating struct {
	Position    string  `json:"position"`
	Suitability float64 `json:"suitability"`
}

// Snapshot is one immutable assessment event: a coach rating a player at a
// point in time. Corrections are new snapshots; the ledger is append-only
// and the engine never mutates a snapshot after creation.
type Snapshot struct {
	ID        string             `json:"id"`
	PlayerID  string             `json:"player_id"`
	CoachID   string             `json:"coach_id"`
	CreatedAt time.Time          `json:"created_at"`
	Context   Context            `json:"context"`
	Values    []MetricValue      `json:"values"`
	Positions []PositionRating   `json:"positions,omitempty"`
	Traits    map[string]float64 `json:"traits,omitempty"`
	Note      string             `json:"note,omitempty"`
}

// Validate checks a snapshot against the metric catalogue before it may
// enter the ledger. Unknown keys and out-of-range values are rejected,
// never clamped.
func (s Snapshot) Validate(reg *metric.Registry) error {
	switch {
	case strings.TrimSpace(s.PlayerID) == "":
		return fmt.Errorf("%w: missing player_id", ErrInvalidSnapshot)
	case strings.TrimSpace(s.CoachID) == "":
		return fmt.Errorf("%w: missing coach_id", ErrInvalidSnapshot)
	case len(s.Values) == 0:
		return fmt.Errorf("%w: no metric values", ErrInvalidSnapshot)
	}

	seen := make(map[string]struct{}, len(s.Values))
	for _, v := range s.Values {
		if _, dup := seen[v.Key]; dup {
			return fmt.Errorf("%w: duplicate metric %q", ErrInvalidSnapshot, v.Key)
		}
		seen[v.Key] = struct{}{}
		if err := reg.ValidateValue(v.Key, v.Value); err != nil {
			return err
		}
		if v.Confidence != nil && (*v.Confidence < metric.MinValue || *v.Confidence > metric.MaxValue) {
			return fmt.Errorf("%w: confidence for %s outside [0,100]", metric.ErrRangeViolation, v.Key)
		}
	}

	for _, p := range s.Positions {
		if strings.TrimSpace(p.Position) == "" {
			return fmt.Errorf("%w: positional entry without position", ErrInvalidSnapshot)
		}
		if p.Suitability < metric.MinValue || p.Suitability > metric.MaxValue {
			return fmt.Errorf("%w: suitability for %s outside [0,100]", metric.ErrRangeViolation, p.Position)
		}
	}
	return nil
}

// Value returns the rating for a metric key, if present.
func (s Snapshot) Value(key string) (float64, bool) {
	for _, v := range s.Values {
		if v.Key == key {
			return v.Value, true
		}
	}
	return 0, false
}
