package loadgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	"github.com/okian/calibrate/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	archetypeDivisor   = 6
)

// Rating archetypes on the 0-100 scale. Most ratings cluster in the
// middle band so baselines develop realistic dispersion.
const (
	averageMin   = 40.0
	averageRange = 30.0
	strongMin    = 70.0
	strongRange  = 20.0
	weakMin      = 15.0
	weakRange    = 25.0
	eliteMin     = 88.0
	eliteRange   = 12.0
	strayMin     = 1.0
	strayRange   = 14.0
	wideMin      = 5.0
	wideRange    = 90.0
)

// Archetype cases.
const (
	caseAverage = 0
	caseStrong  = 1
	caseWeak    = 2
	caseElite   = 3
	caseStray   = 4
	caseWide    = 5
)

// The roster dimensions every generated snapshot draws from.
var (
	centers   = []string{"north", "south", "east", "west"}
	ageGroups = []string{"U13", "U15", "U17"}
	sources   = []string{"match", "training", "trial"}
	positions = []string{"GK", "CB", "FB", "CM", "CAM", "W", "ST"}

	// metricPool covers every catalogue category except goalkeeping,
	// which is rated only for snapshots carrying the GK position.
	metricPool = []string{
		"passing", "dribbling", "shooting", "first_touch", "tackling",
		"sprint_speed", "stamina", "agility",
		"composure", "decision_making", "vision",
		"coachability", "work_rate", "teamwork",
	}
	gkMetrics = []string{"reflexes", "handling", "distribution"}
)

// getRandomFloat returns a random float64 in [0,1) using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// pick returns a random element of the slice.
func pick(options []string) string {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(options))))
	return options[n.Int64()]
}

// pickIndex returns a random index below n.
func pickIndex(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateSnapshots creates the requested number of assessment
// snapshots over a fixed roster, so players accumulate multi-coach
// history the verification step can probe.
func generateSnapshots(ctx context.Context, config *Config, stats *Stats) ([]SnapshotRequest, error) {
	logger.Get().Info(ctx, "generating snapshots",
		logger.Int("numSnapshots", config.NumSnapshots),
		logger.Int("players", config.Players),
		logger.Int("coaches", config.Coaches))

	players := make([]string, config.Players)
	for i := range players {
		players[i] = "player-" + strconv.Itoa(i+1)
	}
	coaches := make([]string, config.Coaches)
	for i := range coaches {
		coaches[i] = "coach-" + strconv.Itoa(i+1)
	}

	snapshots := make([]SnapshotRequest, config.NumSnapshots)

	resultChan := make(chan struct {
		index int
		snap  SnapshotRequest
		err   error
	}, config.NumSnapshots)

	workerCount := minInt(config.Workers, config.NumSnapshots)
	perWorker := config.NumSnapshots / workerCount

	for worker := 0; worker < workerCount; worker++ {
		start := worker * perWorker
		end := start + perWorker
		if worker == workerCount-1 {
			end = config.NumSnapshots
		}

		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- struct {
						index int
						snap  SnapshotRequest
						err   error
					}{index: i, err: ctx.Err()}
					return
				default:
					snap := generateSingleSnapshot(players, coaches)
					resultChan <- struct {
						index int
						snap  SnapshotRequest
						err   error
					}{index: i, snap: snap}
				}
			}
		}(start, end)
	}

	for i := 0; i < config.NumSnapshots; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during snapshot generation: %w", ctx.Err())
		case result := <-resultChan:
			if result.err != nil {
				return nil, fmt.Errorf("failed to generate snapshot %d: %w", result.index, result.err)
			}
			snapshots[result.index] = result.snap
		}
	}

	stats.SnapshotsGenerated = len(snapshots)
	logger.Get().Info(ctx, "generated snapshots successfully", logger.Int("count", len(snapshots)))

	return snapshots, nil
}

// generateSingleSnapshot assembles one snapshot: a player, a coach, a
// partition, and a handful of ratings drawn from an archetype.
func generateSingleSnapshot(players, coaches []string) SnapshotRequest {
	player := players[pickIndex(len(players))]
	coach := coaches[pickIndex(len(coaches))]
	position := pick(positions)

	snap := SnapshotRequest{
		PlayerID: player,
		CoachID:  coach,
		Context: AssessmentContext{
			Center:   pick(centers),
			Position: position,
			AgeGroup: pick(ageGroups),
			Season:   "2026",
			Source:   pick(sources),
		},
	}

	// Each snapshot rates a random contiguous slice of the pool, so
	// per-metric baselines fill at different rates.
	count := 4 + pickIndex(5)
	offset := pickIndex(len(metricPool))
	for i := 0; i < count; i++ {
		key := metricPool[(offset+i)%len(metricPool)]
		snap.Values = append(snap.Values, MetricValue{Key: key, Value: generateArchetypeRating()})
	}
	if position == "GK" {
		for _, key := range gkMetrics {
			snap.Values = append(snap.Values, MetricValue{Key: key, Value: generateArchetypeRating()})
		}
	}

	snap.Positions = []PositionRating{
		{Position: position, Suitability: generateArchetypeRating()},
	}

	return snap
}

// generateArchetypeRating draws a rating from a mixture of bands.
func generateArchetypeRating() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(archetypeDivisor))
	switch n.Int64() {
	case caseAverage:
		return averageMin + getRandomFloat()*averageRange
	case caseStrong:
		return strongMin + getRandomFloat()*strongRange
	case caseWeak:
		return weakMin + getRandomFloat()*weakRange
	case caseElite:
		return eliteMin + getRandomFloat()*eliteRange
	case caseStray:
		return strayMin + getRandomFloat()*strayRange
	case caseWide:
		return wideMin + getRandomFloat()*wideRange
	default:
		return wideMin + getRandomFloat()*wideRange
	}
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
