// Package service assembles the calibration engine: ledger, caches, and
// the statistical components behind the HTTP API.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/okian/calibrate/internal/adapters/cache"
	"github.com/okian/calibrate/internal/adapters/mq/queue"
	"github.com/okian/calibrate/internal/adapters/mq/worker"
	"github.com/okian/calibrate/internal/adapters/repository"
	"github.com/okian/calibrate/internal/config"
	"github.com/okian/calibrate/internal/domain/baseline"
	"github.com/okian/calibrate/internal/domain/consensus"
	"github.com/okian/calibrate/internal/domain/hint"
	"github.com/okian/calibrate/internal/domain/metric"
	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/internal/domain/profile"
	"github.com/okian/calibrate/internal/domain/readiness"
	"github.com/okian/calibrate/internal/domain/trend"
	"github.com/okian/calibrate/pkg/logger"
	"github.com/okian/calibrate/pkg/metrics"
)

// Service implements the engine API consumed by the HTTP layer.
type Service struct {
	mu sync.RWMutex

	cfg      *config.Config
	registry *metric.Registry
	store    repository.Store
	clock    cache.Clock

	baselines *baseline.Calculator
	profiles  *profile.Builder
	hints     *hint.Generator
	composer  *readiness.Composer
	consensus *consensus.Engine
	trends    *trend.Analyzer

	mongoClient *mongo.Client
	redisClient *redis.Client

	recalQueue *queue.InMemoryQueue
	recalPool  *worker.Pool
	recalStop  context.CancelFunc

	started bool
	logger  logger.Logger
}

// refresher adapts the calculators to the recalibration worker contract.
type refresher struct {
	baselines *baseline.Calculator
	profiles  *profile.Builder
}

func (r *refresher) RefreshCoach(ctx context.Context, coachID string) error {
	_, err := r.profiles.Profile(ctx, coachID, true)
	return err
}

func (r *refresher) RefreshBaseline(ctx context.Context, metricKey string, partition queue.Partition) error {
	_, err := r.baselines.Refresh(ctx, metricKey, partition)
	return err
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig supplies the engine configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithStore overrides the ledger backend. Tests inject a seeded store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRegistry overrides the metric catalogue.
func WithRegistry(reg *metric.Registry) Option {
	return func(s *Service) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// WithServiceClock sets the time source used for cache freshness and
// profile timestamps. Tests inject a deterministic clock.
func WithServiceClock(clock cache.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:   config.New(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start wires the engine components from configuration.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.registry == nil {
		s.registry = metric.NewRegistry()
	}

	s.logger.Info(ctx, "starting calibration engine...")

	if s.store == nil {
		store, err := s.buildStore(ctx)
		if err != nil {
			return err
		}
		s.store = store
	}

	profileTTL := time.Duration(s.cfg.ProfileTTLSeconds) * time.Second
	baselineTTL := time.Duration(s.cfg.BaselineTTLSeconds) * time.Second
	lockTimeout := time.Duration(s.cfg.LockTimeoutSeconds) * time.Second

	var baselineCache cache.Loader[baseline.Stats]
	var profileCache cache.Loader[profile.Profile]
	if s.cfg.Cache == config.CacheRedis {
		s.redisClient = redis.NewClient(&redis.Options{Addr: s.cfg.RedisAddr})
		baselineCache = cache.NewRedis[baseline.Stats](s.redisClient, "baseline",
			cache.WithRedisTTL[baseline.Stats](baselineTTL),
			cache.WithLockTimeout[baseline.Stats](lockTimeout),
		)
		profileCache = cache.NewRedis[profile.Profile](s.redisClient, "profile",
			cache.WithRedisTTL[profile.Profile](profileTTL),
			cache.WithLockTimeout[profile.Profile](lockTimeout),
		)
		s.logger.Info(ctx, "using redis cache", logger.String("addr", s.cfg.RedisAddr))
	} else {
		baselineCache = cache.NewMemory[baseline.Stats](
			cache.WithTTL[baseline.Stats](baselineTTL),
			cache.WithClock[baseline.Stats](s.clock),
		)
		profileCache = cache.NewMemory[profile.Profile](
			cache.WithTTL[profile.Profile](profileTTL),
			cache.WithClock[profile.Profile](s.clock),
		)
	}

	s.baselines = baseline.NewCalculator(s.store, baselineCache)
	s.profiles = profile.NewBuilder(s.store, s.baselines, s.registry, profileCache,
		profile.WithMinSamples(s.cfg.ProfileMinSamples),
		profile.WithConfidenceBounds(s.cfg.ConfidenceFloor, s.cfg.ConfidenceScale),
		profile.WithClock(s.clock),
		profile.WithLogger(s.logger),
	)
	s.hints = hint.NewGenerator(s.baselines, s.profiles, s.registry,
		hint.WithMinBaselineSamples(s.cfg.BaselineMinSamples),
		hint.WithSigmaThresholds(s.cfg.HintNoticeSigma, s.cfg.HintStrongSigma),
	)

	composer, err := readiness.NewComposer(s.registry, s.cfg.ReadinessWeights,
		readiness.WithExplanationSize(s.cfg.ExplanationSize),
	)
	if err != nil {
		return err
	}
	s.composer = composer

	s.consensus = consensus.NewEngine(s.store, s.profiles, s.registry,
		consensus.WithMinCoaches(s.cfg.ConsensusMinCoaches),
	)
	s.trends = trend.NewAnalyzer(s.store,
		trend.WithWindow(s.cfg.TrendWindow),
		trend.WithDeadband(s.cfg.TrendDeadband),
	)

	if s.cfg.RecalibrateWorkers > 0 {
		s.recalQueue = queue.NewInMemoryQueue(
			queue.WithCapacity(s.cfg.RecalibrateQueueCapacity),
		)
		s.recalPool = worker.NewPool(s.cfg.RecalibrateWorkers, s.recalQueue,
			&refresher{baselines: s.baselines, profiles: s.profiles},
		)
		poolCtx, cancel := context.WithCancel(context.Background())
		s.recalStop = cancel
		s.recalPool.Start(poolCtx)
		s.logger.Info(ctx, "recalibration pipeline started",
			logger.Int("workers", s.cfg.RecalibrateWorkers),
			logger.Int("queueCapacity", s.cfg.RecalibrateQueueCapacity),
		)
	}

	s.started = true
	s.logger.Info(ctx, "calibration engine started",
		logger.String("store", s.cfg.Store),
		logger.String("cache", s.cfg.Cache),
		logger.Int("profileTTLSeconds", s.cfg.ProfileTTLSeconds),
		logger.Int("baselineTTLSeconds", s.cfg.BaselineTTLSeconds),
	)
	return nil
}

// buildStore constructs the configured ledger backend.
func (s *Service) buildStore(ctx context.Context) (repository.Store, error) {
	if s.cfg.Store == config.StoreMongo {
		client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(s.cfg.MongoURI))
		if err != nil {
			return nil, err
		}
		s.mongoClient = client
		store := repository.NewMongoStore(client, s.cfg.MongoDatabase)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "using mongo ledger", logger.String("database", s.cfg.MongoDatabase))
		return store, nil
	}
	s.logger.Info(ctx, "using in-memory ledger")
	return repository.NewMemoryStore(repository.WithClock(s.clock)), nil
}

// Stop releases external connections.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping calibration engine...")

	if s.recalPool != nil {
		_ = s.recalPool.Shutdown(ctx)
		s.recalStop()
		s.recalPool = nil
		s.recalQueue = nil
	}

	if s.mongoClient != nil {
		_ = s.mongoClient.Disconnect(ctx)
	}
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}

	s.started = false
	s.logger.Info(ctx, "calibration engine stopped")
}

// Ingest validates a snapshot, appends it to the ledger, and returns the
// stored snapshot with its readiness index attached.
func (s *Service) Ingest(ctx context.Context, snap model.Snapshot) (model.Snapshot, readiness.Index, error) {
	if err := snap.Validate(s.registry); err != nil {
		metrics.RecordSnapshotRejected()
		return model.Snapshot{}, readiness.Index{}, err
	}

	stored, err := s.store.Append(ctx, snap)
	if err != nil {
		return model.Snapshot{}, readiness.Index{}, err
	}
	metrics.RecordSnapshotIngested()
	metrics.UpdateLedgerSize(s.store.Count(ctx))
	s.enqueueRecalibration(ctx, stored)

	idx, err := s.composer.Compose(stored)
	if err != nil {
		// The snapshot is already part of the ledger; readiness is a
		// derived view, so surface it empty rather than failing ingest.
		s.logger.Warn(ctx, "readiness composition failed after ingest",
			logger.String("snapshotID", stored.ID), logger.Error(err))
		return stored, readiness.Index{}, nil
	}
	metrics.RecordReadinessComposition()
	return stored, idx, nil
}

// enqueueRecalibration hands the freshly appended snapshot to the
// background pipeline. A drop is logged at debug only: the caches the
// job would have warmed recompute lazily on the next read.
func (s *Service) enqueueRecalibration(ctx context.Context, stored model.Snapshot) {
	if s.recalQueue == nil {
		return
	}
	keys := make([]string, 0, len(stored.Values))
	for _, v := range stored.Values {
		keys = append(keys, v.Key)
	}
	job := queue.Job{
		SnapshotID: stored.ID,
		CoachID:    stored.CoachID,
		MetricKeys: keys,
		Partition:  stored.Context,
	}
	if !s.recalQueue.Enqueue(ctx, job) {
		s.logger.Debug(ctx, "recalibration job dropped",
			logger.String("snapshotID", stored.ID))
	}
}

// Baseline returns the contextual baseline for a metric and partition.
func (s *Service) Baseline(ctx context.Context, metricKey string, partition model.Context) (baseline.Stats, error) {
	if _, err := s.registry.Lookup(metricKey); err != nil {
		return baseline.Stats{}, err
	}
	return s.baselines.Baseline(ctx, metricKey, partition)
}

// CoachProfile returns a coach's calibration profile, recomputing when
// stale or when refresh is requested.
func (s *Service) CoachProfile(ctx context.Context, coachID string, refresh bool) (profile.Profile, error) {
	return s.profiles.Profile(ctx, coachID, refresh)
}

// Hints produces a calibration hint for an in-progress rating.
func (s *Service) Hints(ctx context.Context, metricKey string, rawValue float64, partition model.Context, coachID string) (hint.Payload, error) {
	p, err := s.hints.Hints(ctx, metricKey, rawValue, partition, coachID)
	if errors.Is(err, hint.ErrInsufficientData) {
		metrics.RecordInsufficientData("hints")
	}
	return p, err
}

// ComposeReadiness derives the readiness index for one snapshot without
// touching the ledger.
func (s *Service) ComposeReadiness(snap model.Snapshot) (readiness.Index, error) {
	idx, err := s.composer.Compose(snap)
	if err == nil {
		metrics.RecordReadinessComposition()
	}
	return idx, err
}

// Consensus computes the full multi-coach record. Callers owning the
// anonymize flag project through Record.Public before serializing.
func (s *Service) Consensus(ctx context.Context, playerID, subject string, minCoaches int) (consensus.Record, error) {
	rec, err := s.consensus.Consensus(ctx, playerID, subject, minCoaches)
	switch {
	case err == nil:
		metrics.RecordConsensusComputation()
	case errors.Is(err, consensus.ErrInsufficientRaters):
		metrics.RecordInsufficientData("consensus")
	}
	return rec, err
}

// MultiCoachPlayers enumerates players rated by enough distinct coaches.
func (s *Service) MultiCoachPlayers(ctx context.Context, minCoaches int) ([]string, error) {
	return s.consensus.MultiCoachPlayers(ctx, minCoaches)
}

// ClassifyTrend classifies a player's metric trajectory.
func (s *Service) ClassifyTrend(ctx context.Context, playerID, metricKey string, window int) (trend.Trend, error) {
	if _, err := s.registry.Lookup(metricKey); err != nil {
		return trend.Trend{}, err
	}
	t, err := s.trends.ClassifyTrend(ctx, playerID, metricKey, window)
	if errors.Is(err, trend.ErrInsufficientData) {
		metrics.RecordInsufficientData("trend")
	}
	return t, err
}

// RankPositions ranks a player's latest positional suitability.
func (s *Service) RankPositions(ctx context.Context, playerID string) ([]model.PositionRating, error) {
	return s.trends.RankPositions(ctx, playerID)
}

// Registry exposes the metric catalogue to the HTTP layer.
func (s *Service) Registry() *metric.Registry {
	return s.registry
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started": s.started,
		"store":   s.cfg.Store,
		"cache":   s.cfg.Cache,
	}
	if s.started {
		n := s.store.Count(context.Background())
		stats["ledgerSize"] = n
		metrics.UpdateLedgerSize(n)
	}
	if s.recalQueue != nil {
		stats["recalibrationQueue"] = s.recalQueue.Len(context.Background())
	}
	return stats
}
