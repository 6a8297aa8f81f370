package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/tkhorram/convoytrack/internal/domain/dedupe"
	"github.com/tkhorram/convoytrack/internal/domain/model"
	"github.com/tkhorram/convoytrack/internal/domain/types"
	"github.com/tkhorram/convoytrack/pkg/logger"
	"github.com/tkhorram/convoytrack/pkg/metrics"
)

// WithDeduper sets the idempotency guard used by ProcessEngagement.
func WithDeduper(d dedupe.Deduper) Option {
	return func(r *Repository) { r.deduper = d }
}

// lockUnit serializes engagement updates per unit. Striping bounds memory
// for arbitrary unit populations while keeping different units concurrent.
func (r *Repository) lockUnit(ctx context.Context, unitID uuid.UUID) (func(), error) {
	h := fnv.New32a()
	h.Write(unitID[:])
	stripe := r.unitLocks[h.Sum32()%uint32(len(r.unitLocks))]

	select {
	case stripe <- struct{}{}:
		return func() { <-stripe }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrTransient, ctx.Err())
	}
}

// RecordEngagement applies one engagement outcome to a unit: advance the
// durable counters, derive the new accuracy, set the cached score and
// report the rank crossing.
//
// Ordering is fixed. The durable counter increment commits first and is
// the linearization point; if it fails nothing happened and the caller
// retries the whole operation. The cache score set runs after, with
// retries, against already-committed totals, so re-applying it is
// idempotent. If the cache cannot be brought in line the update is
// reported inconsistent and the score set is queued for reconciliation;
// it is never dropped.
func (r *Repository) RecordEngagement(ctx context.Context, convoyID, unitID uuid.UUID, hit bool) (types.EngagementResult, error) {
	start := time.Now()
	defer func() { metrics.RecordUpdateLatency(float64(time.Since(start).Milliseconds())) }()

	unlock, err := r.lockUnit(ctx, unitID)
	if err != nil {
		metrics.RecordEngagementFailure()
		return types.EngagementResult{}, err
	}
	defer unlock()

	stats, err := r.store.IncrementCounters(ctx, convoyID, unitID, hit)
	if err != nil {
		metrics.RecordEngagementFailure()
		return types.EngagementResult{}, mapDurable(err)
	}
	accuracy := stats.AccuracyPct()

	// The durable projection mirrors the counters so a lost cache can be
	// rebuilt. Its failure does not fail the update; the counters are the
	// source of truth and the projection self-heals on the next engagement.
	if err := r.upsertProjection(ctx, convoyID, unitID, stats); err != nil {
		r.log.Warn(ctx, "ranking projection update failed", logger.Error(err))
	}

	// Success reports the update, not the shot. A recorded miss is a
	// successful update; it stays false only when the cached ranking could
	// not be brought in line with the committed counters.
	result := types.EngagementResult{AccuracyPct: accuracy}

	upd, err := r.setScoreWithRetry(ctx, convoyID, unitID, accuracy)
	if err != nil {
		metrics.RecordEngagementFailure()
		if r.reconciler != nil {
			r.reconciler.EnqueueScoreSet(convoyID, unitID, accuracy)
		}
		return result, fmt.Errorf("%w: score set for unit %s: %w", ErrInconsistent, unitID, err)
	}
	result.Success = true
	result.NewRank = upd.After
	if upd.Before > 0 {
		result.RankDelta = upd.Before - upd.After
	}

	if err := r.cache.SetEngagementStats(ctx, unitID.String(), stats); err != nil {
		r.cacheDegraded(ctx, "set stats", err)
	}

	metrics.RecordEngagementUpdate()
	r.notifyChange(ctx, types.KindLeaderboard, convoyID, unitID, types.OpUpdate)
	return result, nil
}

// ProcessEngagement records the immutable fact and applies its counter and
// ranking effects. Replays of an already-seen engagement id are dropped
// without touching the counters.
func (r *Repository) ProcessEngagement(ctx context.Context, e model.Engagement) (types.EngagementResult, error) {
	if r.deduper != nil && r.deduper.SeenAndRecord(ctx, e.EngagementID.String()) {
		r.log.Debug(ctx, "duplicate engagement dropped",
			logger.String("engagement_id", e.EngagementID.String()))
		return types.EngagementResult{}, ErrConflict
	}

	if err := r.RecordEngagementFact(ctx, e); err != nil {
		if r.deduper != nil {
			r.deduper.Unrecord(ctx, e.EngagementID.String())
		}
		return types.EngagementResult{}, err
	}

	res, err := r.RecordEngagement(ctx, e.ConvoyID, e.UnitID, e.Hit)
	if err != nil {
		return res, err
	}
	return res, nil
}

func (r *Repository) setScoreWithRetry(ctx context.Context, convoyID, unitID uuid.UUID, accuracy float64) (upd struct{ Before, After int }, err error) {
	attempt := 0
	op := func() error {
		if attempt > 0 {
			metrics.RecordRankUpdateRetry()
		}
		attempt++
		su, serr := r.cache.UpdateScore(ctx, convoyID.String(), unitID.String(), accuracy)
		if serr != nil {
			return serr
		}
		upd.Before, upd.After = su.Before, su.After
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond
	err = backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.scoreRetries)), ctx))
	return upd, err
}

func (r *Repository) upsertProjection(ctx context.Context, convoyID, unitID uuid.UUID, stats model.AccuracyStats) error {
	callsign := ""
	if u, ok, err := r.cache.GetUnitState(ctx, unitID.String()); err == nil && ok {
		callsign = u.Callsign
	}
	return r.store.UpsertLeaderboardEntry(ctx, model.LeaderboardEntry{
		ConvoyID:         convoyID,
		UnitID:           unitID,
		Callsign:         callsign,
		AccuracyPct:      stats.AccuracyPct(),
		TotalEngagements: stats.TotalEngagements,
		SuccessfulHits:   stats.SuccessfulHits,
		CurrentStreak:    stats.CurrentStreak,
		BestStreak:       stats.BestStreak,
		UpdatedAt:        time.Now().UTC(),
	})
}
