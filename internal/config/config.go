// Package config defines engine configuration structures and loading hooks.
//
// Conventions:
// - Defaults come from New; Load layers file and env on top.
// - All tunable model constants live here with named fields, never as
//   free-form key-value maps, so invalid configurations fail at load time.
package config

import (
	"github.com/okian/calibrate/internal/domain/readiness"
)

// Store and cache backend names.
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Store selects the snapshot ledger backend: memory or mongo.
	Store string `koanf:"store"`

	// MongoURI and MongoDatabase configure the mongo ledger backend.
	MongoURI      string `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`

	// Cache selects the derived-artifact cache backend: memory or redis.
	Cache string `koanf:"cache"`

	// RedisAddr configures the redis cache backend.
	RedisAddr string `koanf:"redis_addr"`

	// ProfileTTLSeconds and BaselineTTLSeconds bound cache freshness.
	ProfileTTLSeconds  int `koanf:"profile_ttl_seconds"`
	BaselineTTLSeconds int `koanf:"baseline_ttl_seconds"`

	// LockTimeoutSeconds bounds cross-process single-flight waits.
	LockTimeoutSeconds int `koanf:"lock_timeout_seconds"`

	// ProfileMinSamples is the per-category floor below which a coach
	// gets a neutral profile.
	ProfileMinSamples int `koanf:"profile_min_samples"`

	// ConfidenceFloor and ConfidenceScale shape the bounded inverse
	// dispersion mapping behind coach confidence.
	ConfidenceFloor float64 `koanf:"confidence_floor"`
	ConfidenceScale float64 `koanf:"confidence_scale"`

	// BaselineMinSamples is the observation floor for calibration hints.
	BaselineMinSamples int `koanf:"baseline_min_samples"`

	// HintNoticeSigma and HintStrongSigma are the hint flag thresholds
	// in baseline-dispersion units.
	HintNoticeSigma float64 `koanf:"hint_notice_sigma"`
	HintStrongSigma float64 `koanf:"hint_strong_sigma"`

	// ConsensusMinCoaches is the distinct-rater floor for consensus.
	ConsensusMinCoaches int `koanf:"consensus_min_coaches"`

	// TrendWindow and TrendDeadband tune trend classification.
	TrendWindow   int     `koanf:"trend_window"`
	TrendDeadband float64 `koanf:"trend_deadband"`

	// ExplanationSize bounds readiness strengths/focus lists.
	ExplanationSize int `koanf:"explanation_size"`

	// RecalibrateWorkers sizes the background pool that warms profile
	// and baseline caches after ingest. Zero disables the pipeline.
	RecalibrateWorkers int `koanf:"recalibrate_workers"`

	// RecalibrateQueueCapacity bounds the pending-job buffer; a full
	// queue drops jobs and lets caches recompute lazily.
	RecalibrateQueueCapacity int `koanf:"recalibrate_queue_capacity"`

	// ReadinessWeights composes the five sub-scores; must sum to 1.
	ReadinessWeights readiness.Weights `koanf:"readiness_weights"`
}

// New creates a Config with documented defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		Store:               StoreMemory,
		MongoDatabase:       "calibrate",
		Cache:               CacheMemory,
		RedisAddr:           "localhost:6379",
		ProfileTTLSeconds:   600,
		BaselineTTLSeconds:  300,
		LockTimeoutSeconds:  5,
		ProfileMinSamples:   5,
		ConfidenceFloor:     0.2,
		ConfidenceScale:     10.0,
		BaselineMinSamples:  3,
		HintNoticeSigma:     0.5,
		HintStrongSigma:     1.5,
		ConsensusMinCoaches: 2,
		TrendWindow:         5,
		TrendDeadband:       0.75,
		ExplanationSize:     3,
		ReadinessWeights:    readiness.DefaultWeights(),

		RecalibrateWorkers:       4,
		RecalibrateQueueCapacity: 4096,
	}
}
