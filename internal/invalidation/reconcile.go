package invalidation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tkhorram/convoytrack/internal/adapters/cache"
	"github.com/tkhorram/convoytrack/internal/adapters/durable"
	"github.com/tkhorram/convoytrack/internal/domain/model"
	"github.com/tkhorram/convoytrack/pkg/logger"
	"github.com/tkhorram/convoytrack/pkg/metrics"
)

// Default reconcile queue configuration constants.
const (
	defaultReconcileCapacity = 1024
	defaultRetryInterval     = 5 * time.Second
)

// ScoreTask is one cache score set that exhausted its inline retries. The
// durable counters behind it are already committed, so applying it any
// number of times converges on the same state. AccuracyPct is the value
// captured at failure time; replay prefers the current counters, since a
// later engagement may have landed its score inline in the meantime.
type ScoreTask struct {
	ConvoyID    uuid.UUID
	UnitID      uuid.UUID
	AccuracyPct float64
}

// ScoreSetter is the slice of the cache client reconciliation needs.
type ScoreSetter interface {
	UpdateScore(ctx context.Context, convoyID, unitID string, accuracyPct float64) (cache.ScoreUpdate, error)
}

// AccuracyReader re-reads a unit's committed counters at replay time.
type AccuracyReader interface {
	GetUnit(ctx context.Context, convoyID, unitID uuid.UUID) (model.Unit, error)
}

// ReconcileQueue holds failed score sets and replays them against the
// cache in the background. Tasks are never silently dropped: when the
// queue is full the oldest task is evicted with a logged warning, on the
// grounds that a newer score set for any unit supersedes an older one.
type ReconcileQueue struct {
	tasks chan ScoreTask
	cache ScoreSetter
	stats AccuracyReader
	log   logger.Logger

	retryInterval time.Duration

	shutdown chan struct{}
	done     chan struct{}
}

// ReconcileOption applies a configuration option to the ReconcileQueue.
type ReconcileOption func(*ReconcileQueue)

// WithReconcileCapacity bounds the queue.
func WithReconcileCapacity(n int) ReconcileOption {
	return func(q *ReconcileQueue) {
		if n > 0 {
			q.tasks = make(chan ScoreTask, n)
		}
	}
}

// WithAccuracyReader supplies the durable counters. When set, each replay
// derives its score from the counters as they stand instead of the value
// captured when the set first failed.
func WithAccuracyReader(r AccuracyReader) ReconcileOption {
	return func(q *ReconcileQueue) {
		if r != nil {
			q.stats = r
		}
	}
}

// WithRetryInterval sets the pause between replay sweeps.
func WithRetryInterval(d time.Duration) ReconcileOption {
	return func(q *ReconcileQueue) {
		if d > 0 {
			q.retryInterval = d
		}
	}
}

// WithReconcileLogger sets the logger.
func WithReconcileLogger(log logger.Logger) ReconcileOption {
	return func(q *ReconcileQueue) {
		if log != nil {
			q.log = log
		}
	}
}

// NewReconcileQueue builds a reconcile queue over the cache.
func NewReconcileQueue(cache ScoreSetter, opts ...ReconcileOption) *ReconcileQueue {
	q := &ReconcileQueue{
		tasks:         make(chan ScoreTask, defaultReconcileCapacity),
		cache:         cache,
		log:           logger.Named("reconcile"),
		retryInterval: defaultRetryInterval,
		shutdown:      make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// EnqueueScoreSet queues a failed score set. Never blocks.
func (q *ReconcileQueue) EnqueueScoreSet(convoyID, unitID uuid.UUID, accuracyPct float64) {
	task := ScoreTask{ConvoyID: convoyID, UnitID: unitID, AccuracyPct: accuracyPct}
	for {
		select {
		case q.tasks <- task:
			metrics.RecordReconcileEnqueued()
			metrics.UpdateReconcileQueueDepth(len(q.tasks))
			return
		default:
		}
		// Full: evict the oldest task to make room. Loudly.
		select {
		case old := <-q.tasks:
			q.log.Error(context.Background(), "reconcile queue full, evicting oldest task",
				logger.String("unit_id", old.UnitID.String()))
		default:
		}
	}
}

// Depth reports how many tasks are waiting.
func (q *ReconcileQueue) Depth() int { return len(q.tasks) }

// Run replays queued tasks until ctx is canceled or Shutdown is called. A
// task that still fails goes back on the queue after the retry interval.
func (q *ReconcileQueue) Run(ctx context.Context) {
	defer close(q.done)

	ticker := time.NewTicker(q.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.shutdown:
			return
		case task := <-q.tasks:
			metrics.UpdateReconcileQueueDepth(len(q.tasks))
			if q.replay(ctx, task) {
				continue
			}
			// Still failing: park it and wait out the interval so a dead
			// cache does not spin the loop.
			q.requeue(task)
			select {
			case <-ctx.Done():
				return
			case <-q.shutdown:
				return
			case <-ticker.C:
			}
		}
	}
}

// Shutdown stops the replay loop. Queued tasks stay queued; the durable
// store still holds their truth and a restart resumes from a rebuild.
func (q *ReconcileQueue) Shutdown(ctx context.Context) error {
	close(q.shutdown)
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// replay brings one unit's cached score in line with the durable counters.
// Applying the captured value would roll back any score set inline since
// the task was queued, so the counters are re-read first.
func (q *ReconcileQueue) replay(ctx context.Context, task ScoreTask) bool {
	score := task.AccuracyPct
	if q.stats != nil {
		u, err := q.stats.GetUnit(ctx, task.ConvoyID, task.UnitID)
		switch {
		case errors.Is(err, durable.ErrNotFound):
			q.log.Info(ctx, "unit gone, reconcile task dropped",
				logger.String("unit_id", task.UnitID.String()))
			return true
		case err != nil:
			q.log.Warn(ctx, "reconcile counter read failed",
				logger.String("unit_id", task.UnitID.String()),
				logger.Error(err))
			return false
		}
		score = model.AccuracyStats{
			TotalEngagements: u.TotalEngagements,
			SuccessfulHits:   u.SuccessfulHits,
		}.AccuracyPct()
	}

	_, err := q.cache.UpdateScore(ctx, task.ConvoyID.String(), task.UnitID.String(), score)
	if err != nil {
		q.log.Warn(ctx, "reconcile replay failed",
			logger.String("unit_id", task.UnitID.String()),
			logger.Error(err))
		return false
	}
	q.log.Info(ctx, "score set reconciled",
		logger.String("convoy_id", task.ConvoyID.String()),
		logger.String("unit_id", task.UnitID.String()),
		logger.Float64("accuracy_pct", score))
	return true
}

func (q *ReconcileQueue) requeue(task ScoreTask) {
	select {
	case q.tasks <- task:
		metrics.UpdateReconcileQueueDepth(len(q.tasks))
	default:
		q.log.Error(context.Background(), "reconcile queue full, task lost to backpressure",
			logger.String("unit_id", task.UnitID.String()))
	}
}
