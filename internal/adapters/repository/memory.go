package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/calibrate/internal/domain/model"
)

// MemoryStore implements Store with an in-process append-only ledger.
// Per-player and per-coach indexes keep reads proportional to the
// matching snapshot set rather than the whole ledger.
type MemoryStore struct {
	mu       sync.RWMutex
	all      []model.Snapshot
	ids      map[string]struct{}
	byPlayer map[string][]int
	byCoach  map[string][]int

	clock func() time.Time
}

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the timestamp source used when a snapshot arrives
// without CreatedAt. Tests inject a deterministic clock.
func WithClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		ids:      make(map[string]struct{}),
		byPlayer: make(map[string][]int),
		byCoach:  make(map[string][]int),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds a snapshot to the ledger, assigning an ID and timestamp
// when absent. Re-appending an existing ID fails.
func (s *MemoryStore) Append(_ context.Context, snap model.Snapshot) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if _, exists := s.ids[snap.ID]; exists {
		return model.Snapshot{}, fmt.Errorf("%w: snapshot %s already recorded", ErrImmutableLedger, snap.ID)
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.clock()
	}

	idx := len(s.all)
	s.all = append(s.all, snap)
	s.ids[snap.ID] = struct{}{}
	s.byPlayer[snap.PlayerID] = append(s.byPlayer[snap.PlayerID], idx)
	s.byCoach[snap.CoachID] = append(s.byCoach[snap.CoachID], idx)
	return snap, nil
}

// ByPlayer returns a player's snapshots matching the filter, oldest first.
func (s *MemoryStore) ByPlayer(_ context.Context, playerID string, f Filter) ([]model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byPlayer[playerID], f), nil
}

// ByCoach returns a coach's snapshots matching the filter, oldest first.
func (s *MemoryStore) ByCoach(_ context.Context, coachID string, f Filter) ([]model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byCoach[coachID], f), nil
}

// Query returns all snapshots matching the filter, oldest first.
func (s *MemoryStore) Query(_ context.Context, f Filter) ([]model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idxs := make([]int, len(s.all))
	for i := range s.all {
		idxs[i] = i
	}
	return s.collect(idxs, f), nil
}

// Players lists distinct player IDs, lexically ordered.
func (s *MemoryStore) Players(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.byPlayer))
	for p := range s.byPlayer {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// Count returns the number of snapshots in the ledger.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.all)
}

// collect filters, orders chronologically, applies the limit to the tail,
// and returns defensive copies. Callers must hold at least a read lock.
func (s *MemoryStore) collect(idxs []int, f Filter) []model.Snapshot {
	out := make([]model.Snapshot, 0, len(idxs))
	for _, i := range idxs {
		if f.Matches(s.all[i]) {
			out = append(out, copySnapshot(s.all[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// copySnapshot deep-copies slices and maps so callers cannot reach the
// ledger's backing arrays.
func copySnapshot(s model.Snapshot) model.Snapshot {
	cp := s
	cp.Values = make([]model.MetricValue, len(s.Values))
	copy(cp.Values, s.Values)
	for i, v := range s.Values {
		if v.Confidence != nil {
			c := *v.Confidence
			cp.Values[i].Confidence = &c
		}
	}
	if s.Positions != nil {
		cp.Positions = make([]model.PositionRating, len(s.Positions))
		copy(cp.Positions, s.Positions)
	}
	if s.Traits != nil {
		cp.Traits = make(map[string]float64, len(s.Traits))
		for k, v := range s.Traits {
			cp.Traits[k] = v
		}
	}
	return cp
}
