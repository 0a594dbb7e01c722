// Package consensus combines several coaches' assessments of one player
// into a bias-corrected, confidence-weighted agreement summary.
//
// One vote per coach: only each coach's latest qualifying snapshot
// counts, so an opinionated repeat rater cannot dominate. Anonymization
// is a projection applied after the full computation, through a type that
// structurally cannot carry coach identifiers.
package consensus

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/calibrate/internal/adapters/repository"
	"github.com/okian/calibrate/internal/domain/metric"
	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/internal/domain/profile"
)

// DefaultMinCoaches is the distinct-rater floor below which no consensus
// is produced.
const DefaultMinCoaches = 2

// SubjectKind tells whether a consensus subject named a metric key or a
// whole category.
type SubjectKind string

// Subject kinds.
const (
	SubjectMetric   SubjectKind = "metric"
	SubjectCategory SubjectKind = "category"
)

// Vote is one coach's corrected contribution. Present only on the full
// record, for callers explicitly requesting the non-anonymized view.
type Vote struct {
	CoachID    string    `json:"coach_id"`
	SnapshotID string    `json:"snapshot_id"`
	RatedAt    time.Time `json:"rated_at"`
	RawValue   float64   `json:"raw_value"`
	// Corrected is RawValue minus the coach's category bias.
	Corrected  float64 `json:"corrected"`
	Bias       float64 `json:"bias"`
	Confidence float64 `json:"confidence"`
}

// Record is the full consensus result including the per-coach breakdown.
type Record struct {
	PlayerID    string      `json:"player_id"`
	Subject     string      `json:"subject"`
	SubjectKind SubjectKind `json:"subject_kind"`
	CoachCount  int         `json:"coach_count"`
	// Value is the confidence-weighted mean of bias-corrected votes.
	Value float64 `json:"value"`
	// Spread is the weighted standard deviation of corrected votes; low
	// spread means the coaches agree.
	Spread float64 `json:"spread"`
	Votes  []Vote  `json:"votes"`
}

// PublicRecord is the anonymized projection: aggregate and count only.
// It has no field that could hold a coach identifier or raw value.
type PublicRecord struct {
	PlayerID    string      `json:"player_id"`
	Subject     string      `json:"subject"`
	SubjectKind SubjectKind `json:"subject_kind"`
	CoachCount  int         `json:"coach_count"`
	Value       float64     `json:"value"`
	Spread      float64     `json:"spread"`
}

// Public maps the record to its anonymized view. Always applied last,
// after the full computation, so no anonymized path can accidentally
// retain per-coach data.
func (r Record) Public() PublicRecord {
	return PublicRecord{
		PlayerID:    r.PlayerID,
		Subject:     r.Subject,
		SubjectKind: r.SubjectKind,
		CoachCount:  r.CoachCount,
		Value:       r.Value,
		Spread:      r.Spread,
	}
}

// ProfileSource resolves coach calibration profiles. Satisfied by
// profile.Builder; tests substitute a stub with exact biases.
type ProfileSource interface {
	Profile(ctx context.Context, coachID string, force bool) (profile.Profile, error)
}

// Engine computes consensus records from the ledger and coach profiles.
type Engine struct {
	store      repository.Store
	profiles   ProfileSource
	registry   *metric.Registry
	minCoaches int
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithMinCoaches sets the default distinct-rater floor.
func WithMinCoaches(n int) Option {
	return func(e *Engine) {
		if n >= DefaultMinCoaches {
			e.minCoaches = n
		}
	}
}

// NewEngine wires a consensus engine to its collaborators.
func NewEngine(store repository.Store, profiles ProfileSource, registry *metric.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		profiles:   profiles,
		registry:   registry,
		minCoaches: DefaultMinCoaches,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Consensus computes the full record for a player and subject (metric key
// or category name). minCoaches <= 0 falls back to the engine default.
// Below the floor the result is ErrInsufficientRaters, never a degraded
// value. Callers wanting the anonymized view project through Public().
func (e *Engine) Consensus(ctx context.Context, playerID, subject string, minCoaches int) (Record, error) {
	if minCoaches < DefaultMinCoaches {
		minCoaches = e.minCoaches
	}

	kind, category, err := e.resolveSubject(subject)
	if err != nil {
		return Record{}, err
	}

	snaps, err := e.store.ByPlayer(ctx, playerID, repository.Filter{})
	if err != nil {
		return Record{}, fmt.Errorf("consensus history for player %s: %w", playerID, err)
	}

	// Latest qualifying snapshot per distinct coach. Snapshots arrive in
	// chronological order, so later entries overwrite earlier ones.
	latest := make(map[string]model.Snapshot)
	for _, s := range snaps {
		if _, ok := e.subjectValue(s, kind, subject, category); ok {
			latest[s.CoachID] = s
		}
	}

	if len(latest) < minCoaches {
		return Record{}, fmt.Errorf("%w: %d of %d required coaches for player %s", ErrInsufficientRaters, len(latest), minCoaches, playerID)
	}

	votes := make([]Vote, 0, len(latest))
	for coachID, snap := range latest {
		raw, _ := e.subjectValue(snap, kind, subject, category)

		prof, err := e.profiles.Profile(ctx, coachID, false)
		if err != nil {
			return Record{}, fmt.Errorf("profile for coach %s: %w", coachID, err)
		}
		cp := prof.Category(category)

		votes = append(votes, Vote{
			CoachID:    coachID,
			SnapshotID: snap.ID,
			RatedAt:    snap.CreatedAt,
			RawValue:   raw,
			Corrected:  raw - cp.Bias,
			Bias:       cp.Bias,
			Confidence: cp.Confidence,
		})
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].CoachID < votes[j].CoachID })

	value, spread := weightedConsensus(votes)
	return Record{
		PlayerID:    playerID,
		Subject:     subject,
		SubjectKind: kind,
		CoachCount:  len(votes),
		Value:       value,
		Spread:      spread,
		Votes:       votes,
	}, nil
}

// MultiCoachPlayers enumerates players assessed by at least minCoaches
// distinct coaches. Computed from rater counts alone; no per-coach data
// is examined beyond distinctness, so players failing the threshold leak
// nothing.
func (e *Engine) MultiCoachPlayers(ctx context.Context, minCoaches int) ([]string, error) {
	if minCoaches < DefaultMinCoaches {
		minCoaches = e.minCoaches
	}

	players, err := e.store.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating players: %w", err)
	}

	out := make([]string, 0, len(players))
	for _, p := range players {
		snaps, err := e.store.ByPlayer(ctx, p, repository.Filter{})
		if err != nil {
			return nil, fmt.Errorf("history for player %s: %w", p, err)
		}
		coaches := make(map[string]struct{})
		for _, s := range snaps {
			coaches[s.CoachID] = struct{}{}
		}
		if len(coaches) >= minCoaches {
			out = append(out, p)
		}
	}
	return out, nil
}

// resolveSubject classifies the subject and settles the category whose
// bias correction applies.
func (e *Engine) resolveSubject(subject string) (SubjectKind, metric.Category, error) {
	if e.registry.Known(subject) {
		cat, err := e.registry.CategoryOf(subject)
		if err != nil {
			return "", "", err
		}
		return SubjectMetric, cat, nil
	}
	if cat := metric.Category(subject); cat.Valid() {
		return SubjectCategory, cat, nil
	}
	return "", "", fmt.Errorf("%w: %q is neither a metric nor a category", metric.ErrInvalidMetricKey, subject)
}

// subjectValue extracts the subject's value from a snapshot: the metric
// value directly, or the snapshot's mean over the category.
func (e *Engine) subjectValue(s model.Snapshot, kind SubjectKind, subject string, category metric.Category) (float64, bool) {
	if kind == SubjectMetric {
		return s.Value(subject)
	}
	var sum float64
	var n int
	for _, v := range s.Values {
		if cat, err := e.registry.CategoryOf(v.Key); err == nil && cat == category {
			sum += v.Value
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// weightedConsensus computes the confidence-weighted mean and weighted
// standard deviation of corrected votes.
func weightedConsensus(votes []Vote) (value, spread float64) {
	var wsum, vsum float64
	for _, v := range votes {
		wsum += v.Confidence
		vsum += v.Confidence * v.Corrected
	}
	if wsum == 0 {
		// All-floor confidences still carry equal weight.
		for _, v := range votes {
			vsum += v.Corrected
		}
		value = vsum / float64(len(votes))
		var ss float64
		for _, v := range votes {
			d := v.Corrected - value
			ss += d * d
		}
		return value, math.Sqrt(ss / float64(len(votes)))
	}

	value = vsum / wsum
	var ss float64
	for _, v := range votes {
		d := v.Corrected - value
		ss += v.Confidence * d * d
	}
	return value, math.Sqrt(ss / wsum)
}
