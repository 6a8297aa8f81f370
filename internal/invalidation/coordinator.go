package invalidation

import (
	"context"
	"time"

	"github.com/tkhorram/convoytrack/internal/domain/types"
	"github.com/tkhorram/convoytrack/internal/notify"
	"github.com/tkhorram/convoytrack/pkg/logger"
	"github.com/tkhorram/convoytrack/pkg/metrics"
)

const coordinatorShutdownTimeout = 5 * time.Second

// Evictor is the slice of the cache client the coordinator needs.
type Evictor interface {
	Delete(ctx context.Context, keys ...string) (int64, error)
	InvalidateConvoy(ctx context.Context, convoyID string) error
}

// Coordinator consumes change notifications and evicts the derived keys
// each one makes stale. One coordinator per process is enough; eviction is
// idempotent so running more is safe.
type Coordinator struct {
	queue  notify.Queue
	cache  Evictor
	policy Policy
	log    logger.Logger

	shutdown chan struct{}
	done     chan struct{}
}

// CoordinatorOption applies a configuration option to the Coordinator.
type CoordinatorOption func(*Coordinator)

// WithPolicy overrides the eviction policy table.
func WithPolicy(p Policy) CoordinatorOption {
	return func(c *Coordinator) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithCoordinatorLogger sets the logger.
func WithCoordinatorLogger(log logger.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// NewCoordinator builds a coordinator over a notification queue and an
// evictor.
func NewCoordinator(queue notify.Queue, cache Evictor, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		queue:    queue,
		cache:    cache,
		policy:   DefaultPolicy(),
		log:      logger.Named("invalidation"),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes notifications until ctx is canceled or Shutdown is called.
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.done)

	ch := c.queue.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			c.apply(ctx, n)
		}
	}
}

// Shutdown stops the loop and waits for in-flight evictions to finish.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	close(c.shutdown)
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(coordinatorShutdownTimeout):
		return context.DeadlineExceeded
	}
}

func (c *Coordinator) apply(ctx context.Context, n types.Notification) {
	if keys := c.policy.KeysFor(n); len(keys) > 0 {
		if _, err := c.cache.Delete(ctx, keys...); err != nil {
			c.log.Warn(ctx, "eviction failed",
				logger.String("entity", string(n.Kind)),
				logger.Error(err))
			return
		}
	}
	if c.policy.ConvoyScoped(n) {
		if err := c.cache.InvalidateConvoy(ctx, n.ConvoyID.String()); err != nil {
			c.log.Warn(ctx, "convoy-scope eviction failed",
				logger.String("convoy_id", n.ConvoyID.String()),
				logger.Error(err))
			return
		}
	}
	metrics.RecordInvalidation(string(n.Kind))
}
