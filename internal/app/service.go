// Package service assembles the fleet tracker's components: the Redis cache,
// the durable store, the repository with its engagement updater, and the
// invalidation coordinator that connects them.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tkhorram/convoytrack/internal/adapters/cache"
	"github.com/tkhorram/convoytrack/internal/adapters/durable"
	"github.com/tkhorram/convoytrack/internal/domain/dedupe"
	"github.com/tkhorram/convoytrack/internal/invalidation"
	"github.com/tkhorram/convoytrack/internal/notify"
	"github.com/tkhorram/convoytrack/internal/repository"
	"github.com/tkhorram/convoytrack/pkg/logger"
)

// Service owns the component graph for the convoy tracker.
type Service struct {
	mu sync.RWMutex

	// Core components
	cache       *cache.Client
	store       durable.Store
	repo        *repository.Repository
	queue       *notify.InMemoryQueue
	deduper     dedupe.Deduper
	reconciler  *invalidation.ReconcileQueue
	coordinator *invalidation.Coordinator

	// Configuration
	cacheAddr         string
	cachePoolSize     int
	durableDSN        string
	durableMaxConns   int
	queueSize         int
	dedupeSize        int
	scoreRetries      int
	reconcileCapacity int
	retention         time.Duration
	pruneInterval     time.Duration
	ttl               cache.TTL

	// State
	started bool
	cancel  context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCacheAddr sets the Redis address.
func WithCacheAddr(addr string) Option {
	return func(s *Service) {
		if addr != "" {
			s.cacheAddr = addr
		}
	}
}

// WithCachePoolSize sets the Redis connection pool size.
func WithCachePoolSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.cachePoolSize = n
		}
	}
}

// WithDurableDSN sets the Postgres DSN. When empty the service runs on the
// in-memory store.
func WithDurableDSN(dsn string) Option {
	return func(s *Service) {
		s.durableDSN = dsn
	}
}

// WithDurableMaxConns sets the Postgres connection pool size.
func WithDurableMaxConns(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.durableMaxConns = n
		}
	}
}

// WithQueueSize sets the capacity of the change notification queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the engagement deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithScoreRetries sets how often a failed leaderboard score set is retried
// inline before it is handed to the reconciler.
func WithScoreRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.scoreRetries = n
		}
	}
}

// WithReconcileCapacity sets the capacity of the score reconcile queue.
func WithReconcileCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.reconcileCapacity = n
		}
	}
}

// WithTelemetryRetention sets how long telemetry samples stay in the
// durable store before the pruner drops them.
func WithTelemetryRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithPruneInterval sets how often the telemetry pruner runs.
func WithPruneInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pruneInterval = d
		}
	}
}

// WithTTL overrides the cache expiry table.
func WithTTL(ttl cache.TTL) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cacheAddr:         "127.0.0.1:6379",
		cachePoolSize:     10,
		durableMaxConns:   16,
		queueSize:         10000,
		dedupeSize:        50000,
		scoreRetries:      3,
		reconcileCapacity: 1024,
		retention:         24 * time.Hour,
		pruneInterval:     time.Hour,
		ttl:               cache.DefaultTTL(),
		logger:            nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting convoy tracker...")

	c, err := cache.New(ctx,
		cache.WithAddr(s.cacheAddr),
		cache.WithPoolSize(s.cachePoolSize),
		cache.WithTTL(s.ttl),
	)
	if err != nil {
		return fmt.Errorf("connecting cache: %w", err)
	}
	s.cache = c

	if s.durableDSN != "" {
		bs, err := durable.NewBunStore(ctx,
			durable.WithDSN(s.durableDSN),
			durable.WithMaxOpenConns(s.durableMaxConns),
		)
		if err != nil {
			_ = s.cache.Close()
			return fmt.Errorf("connecting durable store: %w", err)
		}
		if err := bs.CreateTables(ctx); err != nil {
			_ = bs.Close()
			_ = s.cache.Close()
			return fmt.Errorf("preparing durable schema: %w", err)
		}
		s.store = bs
		s.logger.Info(ctx, "using postgres store")
	} else {
		s.store = durable.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.queue = notify.NewInMemoryQueue(
		notify.WithCapacity(s.queueSize),
	)
	s.reconciler = invalidation.NewReconcileQueue(s.cache,
		invalidation.WithReconcileCapacity(s.reconcileCapacity),
		invalidation.WithAccuracyReader(s.store),
		invalidation.WithReconcileLogger(s.logger.Named("reconcile")),
	)

	repo, err := repository.New(s.cache, s.store,
		repository.WithQueue(s.queue),
		repository.WithReconciler(s.reconciler),
		repository.WithDeduper(s.deduper),
		repository.WithScoreRetries(s.scoreRetries),
		repository.WithLogger(s.logger.Named("repository")),
	)
	if err != nil {
		_ = s.store.Close()
		_ = s.cache.Close()
		return fmt.Errorf("building repository: %w", err)
	}
	s.repo = repo

	s.coordinator = invalidation.NewCoordinator(s.queue, s.cache,
		invalidation.WithCoordinatorLogger(s.logger.Named("invalidation")),
	)

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.coordinator.Run(runCtx)
	go s.reconciler.Run(runCtx)
	go s.pruneLoop(runCtx)

	s.started = true
	s.logger.Info(ctx, "convoy tracker started",
		logger.String("cacheAddr", s.cacheAddr),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("scoreRetries", s.scoreRetries),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(ctx, "stopping convoy tracker...")

	// Closing the queue drains the coordinator's subscription.
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.coordinator != nil {
		if err := s.coordinator.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "coordinator shutdown", logger.Error(err))
		}
	}
	if s.reconciler != nil {
		if err := s.reconciler.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "reconciler shutdown", logger.Error(err))
		}
	}
	if s.cancel != nil {
		s.cancel()
	}

	if s.store != nil {
		_ = s.store.Close()
	}
	if s.cache != nil {
		_ = s.cache.Close()
	}

	s.started = false
	s.logger.Info(ctx, "convoy tracker stopped")
}

// pruneLoop drops telemetry older than the retention window on a fixed
// interval until the run context is canceled.
func (s *Service) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.repo.PruneTelemetry(ctx, s.retention)
			if err != nil {
				s.logger.Warn(ctx, "telemetry prune", logger.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info(ctx, "telemetry pruned",
					logger.Int("samples", int(n)),
					logger.String("retention", s.retention.String()),
				)
			}
		}
	}
}

// Repository exposes the assembled repository for the HTTP layer.
func (s *Service) Repository() *repository.Repository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":      s.started,
		"queueSize":    s.queueSize,
		"dedupeSize":   s.dedupeSize,
		"scoreRetries": s.scoreRetries,
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["reconcileDepth"] = s.reconciler.Depth()
		stats["dedupeEntries"] = s.deduper.Size()
	}

	return stats
}
