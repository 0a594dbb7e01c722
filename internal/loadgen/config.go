package loadgen

import "time"

// Config holds configuration for one load run.
type Config struct {
	BaseURL      string        // Base URL of the engine
	NumSnapshots int           // Number of snapshots to generate
	Players      int           // Size of the synthetic player roster
	Coaches      int           // Size of the synthetic coach roster
	Workers      int           // Number of concurrent submitters
	Timeout      time.Duration // HTTP request timeout
	OutputFile   string        // Output file for generated snapshots
	LogFile      string        // Log file for run output
	Verbose      bool          // Enable verbose logging
}

// SnapshotRequest mirrors the engine's ingestion payload.
type SnapshotRequest struct {
	PlayerID  string            `json:"player_id"`
	CoachID   string            `json:"coach_id"`
	Context   AssessmentContext `json:"context"`
	Values    []MetricValue     `json:"values"`
	Positions []PositionRating  `json:"positions,omitempty"`
}

// AssessmentContext mirrors the engine's partition tuple.
type AssessmentContext struct {
	Center   string `json:"center,omitempty"`
	Position string `json:"position,omitempty"`
	AgeGroup string `json:"age_group,omitempty"`
	Season   string `json:"season,omitempty"`
	Source   string `json:"source,omitempty"`
}

// MetricValue mirrors one rating inside a snapshot.
type MetricValue struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// PositionRating mirrors the engine's positional suitability entry.
type PositionRating struct {
	Position    string  `json:"position"`
	Suitability float64 `json:"suitability"`
}

// BaselineStats mirrors the engine's baseline response.
type BaselineStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// ConsensusSummary mirrors the anonymized consensus projection.
type ConsensusSummary struct {
	PlayerID   string  `json:"player_id"`
	Subject    string  `json:"subject"`
	CoachCount int     `json:"coach_count"`
	Value      float64 `json:"value"`
	Spread     float64 `json:"spread"`
}

// Stats holds load run statistics.
type Stats struct {
	SnapshotsGenerated  int
	SnapshotsSubmitted  int
	SnapshotsSuccessful int
	SnapshotsRejected   int
	SnapshotsFailed     int
	BaselinesProbed     int
	ConsensusProbed     int
	StartTime           time.Time
	EndTime             time.Time
	Duration            time.Duration
}
