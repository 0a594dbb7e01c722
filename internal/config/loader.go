package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CALIBRATE_CONFIG is set
//  3. env (prefix CALIBRATE_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("CALIBRATE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: CALIBRATE_ADDR, CALIBRATE_PROFILE_TTL_SECONDS, ...
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("CALIBRATE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "calibrate_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate fails fast on configurations the engine cannot run with.
func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Store != StoreMemory && c.Store != StoreMongo:
		return fmt.Errorf("%w: store must be %q or %q", ErrInvalidConfig, StoreMemory, StoreMongo)
	case c.Store == StoreMongo && c.MongoURI == "":
		return fmt.Errorf("%w: mongo_uri required for store=mongo", ErrInvalidConfig)
	case c.Cache != CacheMemory && c.Cache != CacheRedis:
		return fmt.Errorf("%w: cache must be %q or %q", ErrInvalidConfig, CacheMemory, CacheRedis)
	case c.ProfileTTLSeconds <= 0 || c.BaselineTTLSeconds <= 0:
		return fmt.Errorf("%w: cache TTLs must be positive", ErrInvalidConfig)
	case c.LockTimeoutSeconds <= 0:
		return fmt.Errorf("%w: lock_timeout_seconds must be positive", ErrInvalidConfig)
	case c.ProfileMinSamples <= 0 || c.BaselineMinSamples <= 0:
		return fmt.Errorf("%w: sample floors must be positive", ErrInvalidConfig)
	case c.ConfidenceFloor <= 0 || c.ConfidenceFloor >= 1:
		return fmt.Errorf("%w: confidence_floor must be in (0,1)", ErrInvalidConfig)
	case c.ConfidenceScale <= 0:
		return fmt.Errorf("%w: confidence_scale must be positive", ErrInvalidConfig)
	case c.HintNoticeSigma <= 0 || c.HintStrongSigma <= c.HintNoticeSigma:
		return fmt.Errorf("%w: hint thresholds must satisfy 0 < notice < strong", ErrInvalidConfig)
	case c.ConsensusMinCoaches < 2:
		return fmt.Errorf("%w: consensus_min_coaches must be at least 2", ErrInvalidConfig)
	case c.TrendWindow < 2:
		return fmt.Errorf("%w: trend_window must be at least 2", ErrInvalidConfig)
	case c.TrendDeadband <= 0:
		return fmt.Errorf("%w: trend_deadband must be positive", ErrInvalidConfig)
	case c.ExplanationSize <= 0:
		return fmt.Errorf("%w: explanation_size must be positive", ErrInvalidConfig)
	case c.RecalibrateWorkers < 0:
		return fmt.Errorf("%w: recalibrate_workers must not be negative", ErrInvalidConfig)
	case c.RecalibrateWorkers > 0 && c.RecalibrateQueueCapacity <= 0:
		return fmt.Errorf("%w: recalibrate_queue_capacity must be positive", ErrInvalidConfig)
	}
	if err := c.ReadinessWeights.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
