package invalidation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tkhorram/convoytrack/internal/adapters/cache"
	"github.com/tkhorram/convoytrack/internal/adapters/durable"
	"github.com/tkhorram/convoytrack/internal/domain/model"
)

type fakeScoreSetter struct {
	mu       sync.Mutex
	failures int
	applied  []ScoreTask
}

func (f *fakeScoreSetter) UpdateScore(_ context.Context, convoyID, unitID string, acc float64) (cache.ScoreUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return cache.ScoreUpdate{}, errors.New("cache unreachable")
	}
	f.applied = append(f.applied, ScoreTask{AccuracyPct: acc})
	return cache.ScoreUpdate{After: 1}, nil
}

func (f *fakeScoreSetter) appliedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}

func (f *fakeScoreSetter) appliedScores() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.applied))
	for i, task := range f.applied {
		out[i] = task.AccuracyPct
	}
	return out
}

type fakeAccuracyReader struct {
	units map[uuid.UUID]model.Unit
}

func (f *fakeAccuracyReader) GetUnit(_ context.Context, _, unitID uuid.UUID) (model.Unit, error) {
	u, ok := f.units[unitID]
	if !ok {
		return model.Unit{}, durable.ErrNotFound
	}
	return u, nil
}

func TestReconcileReplaysQueuedTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setter := &fakeScoreSetter{}
	q := NewReconcileQueue(setter, WithRetryInterval(10*time.Millisecond))
	go q.Run(ctx)

	q.EnqueueScoreSet(convoyA, unitA, 75)

	require.Eventually(t, func() bool { return setter.appliedCount() == 1 },
		time.Second, 10*time.Millisecond)
	require.Equal(t, 0, q.Depth())
	require.NoError(t, q.Shutdown(context.Background()))
}

func TestReconcileRetriesUntilCacheRecovers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setter := &fakeScoreSetter{failures: 2}
	q := NewReconcileQueue(setter, WithRetryInterval(10*time.Millisecond))
	go q.Run(ctx)

	q.EnqueueScoreSet(convoyA, unitA, 75)

	require.Eventually(t, func() bool { return setter.appliedCount() == 1 },
		2*time.Second, 10*time.Millisecond)
	require.NoError(t, q.Shutdown(context.Background()))
}

func TestReconcileAppliesCurrentCounters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The task captured 1/2 = 50%, but a later engagement landed its score
	// inline while the task sat queued; the counters now read 3/4.
	reader := &fakeAccuracyReader{units: map[uuid.UUID]model.Unit{
		unitA: {ConvoyID: convoyA, UnitID: unitA, TotalEngagements: 4, SuccessfulHits: 3},
	}}
	setter := &fakeScoreSetter{}
	q := NewReconcileQueue(setter,
		WithAccuracyReader(reader),
		WithRetryInterval(10*time.Millisecond),
	)
	go q.Run(ctx)

	q.EnqueueScoreSet(convoyA, unitA, 50)

	require.Eventually(t, func() bool { return setter.appliedCount() == 1 },
		time.Second, 10*time.Millisecond)
	require.InDelta(t, 75.0, setter.appliedScores()[0], 1e-9,
		"replay must not roll the ranking back to the captured value")
	require.NoError(t, q.Shutdown(context.Background()))
}

func TestReconcileDropsTaskForRemovedUnit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeAccuracyReader{units: map[uuid.UUID]model.Unit{}}
	setter := &fakeScoreSetter{}
	q := NewReconcileQueue(setter,
		WithAccuracyReader(reader),
		WithRetryInterval(10*time.Millisecond),
	)
	go q.Run(ctx)

	q.EnqueueScoreSet(convoyA, unitA, 50)

	require.Eventually(t, func() bool { return q.Depth() == 0 },
		time.Second, 10*time.Millisecond)
	require.NoError(t, q.Shutdown(context.Background()))
	require.Zero(t, setter.appliedCount(), "nothing to score for a deleted unit")
}

func TestReconcileBoundedEvictsOldest(t *testing.T) {
	setter := &fakeScoreSetter{}
	q := NewReconcileQueue(setter, WithReconcileCapacity(2))

	q.EnqueueScoreSet(convoyA, unitA, 10)
	q.EnqueueScoreSet(convoyA, unitA, 20)
	q.EnqueueScoreSet(convoyA, unitA, 30)

	require.Equal(t, 2, q.Depth(), "queue stays bounded")
}
