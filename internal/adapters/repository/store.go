// Package repository defines the snapshot ledger interface and errors.
//
// The ledger is append-only: snapshots are created once per assessment
// event and never edited or deleted. Corrections are new snapshots.
package repository

import (
	"context"

	"github.com/okian/calibrate/internal/domain/model"
)

// Filter narrows ledger queries. Zero-value fields mean "all".
type Filter struct {
	// Context tuple: center/position/age-group/season/source.
	Context model.Context
	// MetricKey keeps only snapshots containing a value for this key.
	MetricKey string
	// Limit caps the number of returned snapshots; 0 means unlimited.
	// Applied to the most recent snapshots when set.
	Limit int
}

// Matches reports whether a snapshot satisfies the filter's context and
// metric constraints. Ordering and limit are the store's concern.
func (f Filter) Matches(s model.Snapshot) bool {
	c := f.Context
	switch {
	case c.Center != "" && c.Center != s.Context.Center:
		return false
	case c.Position != "" && c.Position != s.Context.Position:
		return false
	case c.AgeGroup != "" && c.AgeGroup != s.Context.AgeGroup:
		return false
	case c.Season != "" && c.Season != s.Context.Season:
		return false
	case c.Source != "" && c.Source != s.Context.Source:
		return false
	}
	if f.MetricKey != "" {
		if _, ok := s.Value(f.MetricKey); !ok {
			return false
		}
	}
	return true
}

// Store provides append and read access to the assessment ledger.
// There are deliberately no update or delete methods.
type Store interface {
	// Append adds a snapshot to the ledger. An empty ID is assigned by
	// the store; appending an ID already in the ledger fails with
	// ErrImmutableLedger. Returns the stored snapshot.
	Append(ctx context.Context, s model.Snapshot) (model.Snapshot, error)

	// ByPlayer returns a player's snapshots matching the filter, ordered
	// chronologically (oldest first).
	ByPlayer(ctx context.Context, playerID string, f Filter) ([]model.Snapshot, error)

	// ByCoach returns a coach's snapshots matching the filter, ordered
	// chronologically (oldest first).
	ByCoach(ctx context.Context, coachID string, f Filter) ([]model.Snapshot, error)

	// Query returns all snapshots matching the filter, ordered
	// chronologically. Used for baseline aggregation.
	Query(ctx context.Context, f Filter) ([]model.Snapshot, error)

	// Players lists the distinct player IDs present in the ledger.
	Players(ctx context.Context) ([]string, error)

	// Count returns the number of snapshots in the ledger.
	Count(ctx context.Context) int
}
