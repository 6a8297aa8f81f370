// Package repository joins the cache and durable stores behind one typed
// facade. Reads and writes dispatch through a per-entity strategy table;
// the durable store is always the system of record and cache failures
// degrade to durable-only service, never to an error.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tkhorram/convoytrack/internal/adapters/cache"
	"github.com/tkhorram/convoytrack/internal/adapters/durable"
	"github.com/tkhorram/convoytrack/internal/domain/dedupe"
	"github.com/tkhorram/convoytrack/internal/domain/model"
	"github.com/tkhorram/convoytrack/internal/domain/types"
	"github.com/tkhorram/convoytrack/internal/notify"
	"github.com/tkhorram/convoytrack/pkg/logger"
	"github.com/tkhorram/convoytrack/pkg/metrics"
)

// Default updater configuration constants.
const (
	defaultScoreRetries = 3
	defaultLockStripes  = 64
)

// ScoreReconciler receives score sets that permanently failed against the
// cache. Implementations must not block.
type ScoreReconciler interface {
	EnqueueScoreSet(convoyID, unitID uuid.UUID, accuracyPct float64)
}

// Repository is the dual-store facade. Construct with New; the zero value
// is not usable.
type Repository struct {
	cache      *cache.Client
	store      durable.Store
	strategies StrategyTable
	queue      notify.Queue
	reconciler ScoreReconciler
	deduper    dedupe.Deduper
	log        logger.Logger

	scoreRetries int
	unitLocks    []chan struct{}
}

// Option applies a configuration option to the Repository.
type Option func(*Repository)

// WithStrategies overrides the per-entity strategy table.
func WithStrategies(t StrategyTable) Option {
	return func(r *Repository) {
		if t != nil {
			r.strategies = t
		}
	}
}

// WithQueue sets the change-notification queue.
func WithQueue(q notify.Queue) Option {
	return func(r *Repository) { r.queue = q }
}

// WithReconciler sets the sink for score sets that exhaust their retries.
func WithReconciler(rec ScoreReconciler) Option {
	return func(r *Repository) { r.reconciler = rec }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Repository) {
		if log != nil {
			r.log = log
		}
	}
}

// WithScoreRetries sets how many times a failed cache score set is retried
// before the update is declared inconsistent.
func WithScoreRetries(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.scoreRetries = n
		}
	}
}

// New builds a Repository over the two stores.
func New(c *cache.Client, store durable.Store, opts ...Option) (*Repository, error) {
	if c == nil {
		return nil, errors.New("repository: cache client is required")
	}
	if store == nil {
		return nil, errors.New("repository: durable store is required")
	}

	r := &Repository{
		cache:        c,
		store:        store,
		strategies:   DefaultStrategies(),
		log:          logger.Named("repository"),
		scoreRetries: defaultScoreRetries,
		unitLocks:    make([]chan struct{}, defaultLockStripes),
	}
	for i := range r.unitLocks {
		r.unitLocks[i] = make(chan struct{}, 1)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// cacheDegraded logs a cache-side failure and keeps going. The durable
// store already served or will serve the request.
func (r *Repository) cacheDegraded(ctx context.Context, op string, err error) {
	r.log.Warn(ctx, "cache degraded, continuing durable-only",
		logger.String("op", op),
		logger.Error(err))
}

func (r *Repository) notifyChange(ctx context.Context, kind types.EntityKind, convoyID, id uuid.UUID, op types.ChangeOp) {
	if r.queue == nil {
		return
	}
	r.queue.Publish(ctx, types.Notification{
		Kind:      kind,
		ConvoyID:  convoyID,
		ID:        id,
		Op:        op,
		Timestamp: time.Now().UTC(),
	})
}

// cacheFirst serves one JSON-snapshot entity: cache when the strategy
// allows and the key is live, durable otherwise, repopulating the cache
// after a durable read.
func cacheFirst[T any](ctx context.Context, r *Repository, kind types.EntityKind, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	strat := r.strategies.For(kind)
	metrics.RecordStrategyRead(string(strat.Read))

	if strat.Read == ReadCacheFirst {
		var v T
		ok, err := r.cache.GetJSON(ctx, key, &v)
		switch {
		case err != nil:
			r.cacheDegraded(ctx, "get "+key, err)
		case ok:
			metrics.RecordCacheHit(string(kind))
			return v, nil
		default:
			metrics.RecordCacheMiss(string(kind))
		}
	}

	v, err := load(ctx)
	if err != nil {
		return zero, mapDurable(err)
	}
	if err := r.cache.SetJSON(ctx, key, v, r.cache.TTLFor(string(kind))); err != nil {
		r.cacheDegraded(ctx, "set "+key, err)
	}
	return v, nil
}

// Convoy returns a convoy summary.
func (r *Repository) Convoy(ctx context.Context, convoyID uuid.UUID) (model.Convoy, error) {
	return cacheFirst(ctx, r, types.KindConvoy, cache.ConvoySummaryKey(convoyID.String()),
		func(ctx context.Context) (model.Convoy, error) {
			return r.store.GetConvoy(ctx, convoyID)
		})
}

// PutConvoy upserts a convoy write-through.
func (r *Repository) PutConvoy(ctx context.Context, c model.Convoy) error {
	strat := r.strategies.For(types.KindConvoy)
	metrics.RecordStrategyWrite(string(strat.Write))

	if err := r.store.PutConvoy(ctx, c); err != nil {
		return mapDurable(err)
	}
	key := cache.ConvoySummaryKey(c.ConvoyID.String())
	if strat.Write == WriteThrough {
		if err := r.cache.SetJSON(ctx, key, c, r.cache.TTLFor(string(types.KindConvoy))); err != nil {
			r.cacheDegraded(ctx, "set "+key, err)
		}
	} else if _, err := r.cache.Delete(ctx, key); err != nil {
		r.cacheDegraded(ctx, "del "+key, err)
	}
	r.notifyChange(ctx, types.KindConvoy, c.ConvoyID, c.ConvoyID, types.OpUpdate)
	return nil
}

// DeleteConvoy removes a convoy and evicts every convoy-scoped key.
func (r *Repository) DeleteConvoy(ctx context.Context, convoyID uuid.UUID) error {
	if err := r.store.DeleteConvoy(ctx, convoyID); err != nil {
		return mapDurable(err)
	}
	if err := r.cache.InvalidateConvoy(ctx, convoyID.String()); err != nil {
		r.cacheDegraded(ctx, "invalidate convoy", err)
	}
	r.notifyChange(ctx, types.KindConvoy, convoyID, convoyID, types.OpDelete)
	return nil
}

// Convoys lists every convoy from the durable store.
func (r *Repository) Convoys(ctx context.Context) ([]model.Convoy, error) {
	out, err := r.store.ListConvoys(ctx)
	if err != nil {
		return nil, mapDurable(err)
	}
	return out, nil
}

// Unit returns the full unit record from the durable store and refreshes
// the cached state slice. Hot-path readers that only need position and
// status use UnitState instead.
func (r *Repository) Unit(ctx context.Context, convoyID, unitID uuid.UUID) (model.Unit, error) {
	u, err := r.store.GetUnit(ctx, convoyID, unitID)
	if err != nil {
		return model.Unit{}, mapDurable(err)
	}
	if err := r.cache.SetUnitState(ctx, u); err != nil {
		r.cacheDegraded(ctx, "set unit state", err)
	}
	return u, nil
}

// UnitState returns the mutable slice of a unit (position, status, fuel),
// cache-first. On a miss the full record is loaded and the state slice
// cached; the returned record is then complete.
func (r *Repository) UnitState(ctx context.Context, unitID uuid.UUID) (model.Unit, error) {
	strat := r.strategies.For(types.KindUnit)
	metrics.RecordStrategyRead(string(strat.Read))

	if strat.Read == ReadCacheFirst {
		u, ok, err := r.cache.GetUnitState(ctx, unitID.String())
		switch {
		case err != nil:
			r.cacheDegraded(ctx, "get unit state", err)
		case ok:
			return u, nil
		}
	}

	u, err := r.store.FindUnit(ctx, unitID)
	if err != nil {
		return model.Unit{}, mapDurable(err)
	}
	if err := r.cache.SetUnitState(ctx, u); err != nil {
		r.cacheDegraded(ctx, "set unit state", err)
	}
	return u, nil
}

// PutUnit upserts a unit write-through and registers it in the convoy
// roster. Accuracy counters are not writable through this path.
func (r *Repository) PutUnit(ctx context.Context, u model.Unit) error {
	strat := r.strategies.For(types.KindUnit)
	metrics.RecordStrategyWrite(string(strat.Write))

	if err := r.store.PutUnit(ctx, u); err != nil {
		return mapDurable(err)
	}
	if strat.Write == WriteThrough {
		if err := r.cache.SetUnitState(ctx, u); err != nil {
			r.cacheDegraded(ctx, "set unit state", err)
		}
	} else if err := r.cache.InvalidateUnit(ctx, u.UnitID.String()); err != nil {
		r.cacheDegraded(ctx, "invalidate unit", err)
	}
	if err := r.cache.AddToRoster(ctx, u.ConvoyID.String(), u.UnitID.String()); err != nil {
		r.cacheDegraded(ctx, "roster add", err)
	}
	r.notifyChange(ctx, types.KindUnit, u.ConvoyID, u.UnitID, types.OpUpdate)
	return nil
}

// DeleteUnit removes a unit everywhere: durable record, cached keys,
// roster membership, ranked structure and ranking projection.
func (r *Repository) DeleteUnit(ctx context.Context, convoyID, unitID uuid.UUID) error {
	if err := r.store.DeleteUnit(ctx, convoyID, unitID); err != nil {
		return mapDurable(err)
	}
	if err := r.store.DeleteLeaderboardEntry(ctx, convoyID, unitID); err != nil {
		r.log.Warn(ctx, "ranking projection delete failed", logger.Error(err))
	}
	if err := r.cache.InvalidateUnit(ctx, unitID.String()); err != nil {
		r.cacheDegraded(ctx, "invalidate unit", err)
	}
	if err := r.cache.RemoveFromRoster(ctx, convoyID.String(), unitID.String()); err != nil {
		r.cacheDegraded(ctx, "roster remove", err)
	}
	if _, err := r.cache.RemoveFromLeaderboard(ctx, convoyID.String(), unitID.String()); err != nil {
		r.cacheDegraded(ctx, "leaderboard remove", err)
	}
	r.notifyChange(ctx, types.KindUnit, convoyID, unitID, types.OpDelete)
	return nil
}

// UnitsByConvoy scans the convoy's units from the durable store.
func (r *Repository) UnitsByConvoy(ctx context.Context, convoyID uuid.UUID) ([]model.Unit, error) {
	units, err := r.store.UnitsByConvoy(ctx, convoyID)
	if err != nil {
		return nil, mapDurable(err)
	}
	return units, nil
}

// Roster returns the convoy's unit ids, cache-first over the membership
// set with a durable scan on miss.
func (r *Repository) Roster(ctx context.Context, convoyID uuid.UUID) ([]uuid.UUID, error) {
	ids, ok, err := r.cache.Roster(ctx, convoyID.String())
	if err != nil {
		r.cacheDegraded(ctx, "roster", err)
	} else if ok {
		return ids, nil
	}

	units, err := r.store.UnitsByConvoy(ctx, convoyID)
	if err != nil {
		return nil, mapDurable(err)
	}
	ids = make([]uuid.UUID, len(units))
	for i, u := range units {
		ids[i] = u.UnitID
		if err := r.cache.AddToRoster(ctx, convoyID.String(), u.UnitID.String()); err != nil {
			r.cacheDegraded(ctx, "roster add", err)
			break
		}
	}
	return ids, nil
}

// RecordTelemetry appends one sample. Telemetry is write-around: the
// durable insert is the whole write and the cached latest-sample key is
// evicted so the next read refetches.
func (r *Repository) RecordTelemetry(ctx context.Context, t model.Telemetry) error {
	strat := r.strategies.For(types.KindTelemetry)
	metrics.RecordStrategyWrite(string(strat.Write))

	if t.TimeBucket == "" {
		t.TimeBucket = model.TimeBucket(t.RecordedAt)
	}
	if err := r.store.InsertTelemetry(ctx, t); err != nil {
		return mapDurable(err)
	}
	if strat.Write == WriteThrough {
		if err := r.cache.SetLatestTelemetry(ctx, t); err != nil {
			r.cacheDegraded(ctx, "set telemetry", err)
		}
	} else if _, err := r.cache.Delete(ctx, cache.LatestTelemetryKey(t.UnitID.String())); err != nil {
		r.cacheDegraded(ctx, "del telemetry", err)
	} else {
		metrics.RecordCacheEviction()
	}
	r.notifyChange(ctx, types.KindTelemetry, uuid.Nil, t.UnitID, types.OpCreate)
	return nil
}

// RecordTelemetryBatch appends samples for one or more units, bucketing
// each by its own timestamp.
func (r *Repository) RecordTelemetryBatch(ctx context.Context, ts []model.Telemetry) error {
	if len(ts) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{})
	for i := range ts {
		if ts[i].TimeBucket == "" {
			ts[i].TimeBucket = model.TimeBucket(ts[i].RecordedAt)
		}
		seen[ts[i].UnitID] = struct{}{}
	}
	if err := r.store.InsertTelemetryBatch(ctx, ts); err != nil {
		return mapDurable(err)
	}
	for unitID := range seen {
		if _, err := r.cache.Delete(ctx, cache.LatestTelemetryKey(unitID.String())); err != nil {
			r.cacheDegraded(ctx, "del telemetry", err)
			break
		}
	}
	return nil
}

// LatestTelemetry returns the newest sample for a unit, cache-first.
func (r *Repository) LatestTelemetry(ctx context.Context, unitID uuid.UUID) (model.Telemetry, error) {
	strat := r.strategies.For(types.KindTelemetry)
	metrics.RecordStrategyRead(string(strat.Read))

	if strat.Read == ReadCacheFirst {
		t, ok, err := r.cache.GetLatestTelemetry(ctx, unitID.String())
		switch {
		case err != nil:
			r.cacheDegraded(ctx, "get telemetry", err)
		case ok:
			metrics.RecordCacheHit(string(types.KindTelemetry))
			return t, nil
		default:
			metrics.RecordCacheMiss(string(types.KindTelemetry))
		}
	}

	t, err := r.store.LatestTelemetry(ctx, unitID)
	if err != nil {
		return model.Telemetry{}, mapDurable(err)
	}
	if err := r.cache.SetLatestTelemetry(ctx, t); err != nil {
		r.cacheDegraded(ctx, "set telemetry", err)
	}
	return t, nil
}

// TelemetryRange scans samples between two instants, oldest first. Range
// scans always hit the durable store; only the newest sample is cached.
func (r *Repository) TelemetryRange(ctx context.Context, unitID uuid.UUID, tr model.TimeRange) ([]model.Telemetry, error) {
	out, err := r.store.TelemetryRange(ctx, unitID, tr)
	if err != nil {
		return nil, mapDurable(err)
	}
	return out, nil
}

// PruneTelemetry drops samples older than the retention window. Only the
// durable partitions are touched; cached latest samples age out on their
// own TTL.
func (r *Repository) PruneTelemetry(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := r.store.PruneTelemetryBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, mapDurable(err)
	}
	return n, nil
}

// PutRoute replaces a unit's planned route write-through.
func (r *Repository) PutRoute(ctx context.Context, unitID uuid.UUID, wps []model.Waypoint) error {
	strat := r.strategies.For(types.KindWaypoint)
	metrics.RecordStrategyWrite(string(strat.Write))

	if err := r.store.PutWaypoints(ctx, wps); err != nil {
		return mapDurable(err)
	}
	key := cache.RouteKey(unitID.String())
	if strat.Write == WriteThrough {
		if err := r.cache.SetJSON(ctx, key, wps, r.cache.TTLFor(string(types.KindWaypoint))); err != nil {
			r.cacheDegraded(ctx, "set "+key, err)
		}
	} else if _, err := r.cache.Delete(ctx, key); err != nil {
		r.cacheDegraded(ctx, "del "+key, err)
	}
	r.notifyChange(ctx, types.KindWaypoint, uuid.Nil, unitID, types.OpUpdate)
	return nil
}

// Route returns a unit's route ordered by sequence, cache-first.
func (r *Repository) Route(ctx context.Context, unitID uuid.UUID) ([]model.Waypoint, error) {
	return cacheFirst(ctx, r, types.KindWaypoint, cache.RouteKey(unitID.String()),
		func(ctx context.Context) ([]model.Waypoint, error) {
			return r.store.Route(ctx, unitID)
		})
}

// MarkWaypoint advances one route point and evicts the cached route so the
// next read reflects the new status.
func (r *Repository) MarkWaypoint(ctx context.Context, unitID uuid.UUID, seq int16, status model.WaypointStatus) error {
	if err := r.store.MarkWaypoint(ctx, unitID, seq, status); err != nil {
		return mapDurable(err)
	}
	if _, err := r.cache.Delete(ctx, cache.RouteKey(unitID.String())); err != nil {
		r.cacheDegraded(ctx, "del route", err)
	}
	r.notifyChange(ctx, types.KindWaypoint, uuid.Nil, unitID, types.OpUpdate)
	return nil
}

// RecordEngagementFact persists one immutable engagement record. Counter
// and ranking effects run through RecordEngagement.
func (r *Repository) RecordEngagementFact(ctx context.Context, e model.Engagement) error {
	if err := r.store.InsertEngagement(ctx, e); err != nil {
		return mapDurable(err)
	}
	r.notifyChange(ctx, types.KindEngagement, e.ConvoyID, e.EngagementID, types.OpCreate)
	return nil
}

// Engagements lists a convoy's engagement facts, newest first.
func (r *Repository) Engagements(ctx context.Context, convoyID uuid.UUID, limit int) ([]model.Engagement, error) {
	out, err := r.store.EngagementsByConvoy(ctx, convoyID, limit)
	if err != nil {
		return nil, mapDurable(err)
	}
	return out, nil
}

// UnitEngagements lists a unit's engagement facts, newest first.
func (r *Repository) UnitEngagements(ctx context.Context, unitID uuid.UUID, limit int) ([]model.Engagement, error) {
	out, err := r.store.EngagementsByUnit(ctx, unitID, limit)
	if err != nil {
		return nil, mapDurable(err)
	}
	return out, nil
}

// Leaderboard returns a convoy's top n units. Served from the ranked
// structure; a cold cache is rebuilt from the durable projection first.
func (r *Repository) Leaderboard(ctx context.Context, convoyID uuid.UUID, n int) ([]types.LeaderboardRow, error) {
	if n <= 0 {
		return nil, ErrNotFound
	}

	rows, err := r.cache.TopN(ctx, convoyID.String(), n)
	if err != nil {
		r.cacheDegraded(ctx, "topn", err)
	} else if len(rows) > 0 {
		metrics.RecordCacheHit(string(types.KindLeaderboard))
		return rows, nil
	}
	metrics.RecordCacheMiss(string(types.KindLeaderboard))

	entries, err := r.RebuildLeaderboard(ctx, convoyID)
	if err != nil {
		return nil, err
	}
	if len(entries) > n {
		entries = entries[:n]
	}
	out := make([]types.LeaderboardRow, len(entries))
	for i, e := range entries {
		out[i] = types.LeaderboardRow{Rank: e.Rank, UnitID: e.UnitID, AccuracyPct: e.AccuracyPct}
	}
	return out, nil
}

// UnitRank returns a unit's 1-based rank in its convoy.
func (r *Repository) UnitRank(ctx context.Context, convoyID, unitID uuid.UUID) (int, error) {
	rank, ok, err := r.cache.Rank(ctx, convoyID.String(), unitID.String())
	if err != nil {
		r.cacheDegraded(ctx, "rank", err)
	} else if ok {
		return rank, nil
	}

	entries, err := r.RebuildLeaderboard(ctx, convoyID)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.UnitID == unitID {
			return e.Rank, nil
		}
	}
	return 0, ErrNotFound
}

// RebuildLeaderboard reloads the ranked structure from the durable
// projection and returns the ordered entries.
func (r *Repository) RebuildLeaderboard(ctx context.Context, convoyID uuid.UUID) ([]model.LeaderboardEntry, error) {
	entries, err := r.store.LeaderboardEntries(ctx, convoyID)
	if err != nil {
		return nil, mapDurable(err)
	}
	if err := r.cache.RebuildLeaderboard(ctx, convoyID.String(), entries); err != nil {
		r.cacheDegraded(ctx, "rebuild leaderboard", err)
	}
	return entries, nil
}

// AccuracyStats returns a unit's counter totals, cache-first over the
// stats hash.
func (r *Repository) AccuracyStats(ctx context.Context, unitID uuid.UUID) (model.AccuracyStats, error) {
	stats, ok, err := r.cache.GetEngagementStats(ctx, unitID.String())
	if err != nil {
		r.cacheDegraded(ctx, "get stats", err)
	} else if ok {
		metrics.RecordCacheHit("stats")
		return stats, nil
	}
	metrics.RecordCacheMiss("stats")

	u, err := r.store.FindUnit(ctx, unitID)
	if err != nil {
		return model.AccuracyStats{}, mapDurable(err)
	}
	stats = model.AccuracyStats{
		TotalEngagements: u.TotalEngagements,
		SuccessfulHits:   u.SuccessfulHits,
		CurrentStreak:    u.CurrentStreak,
		BestStreak:       u.BestStreak,
	}
	if err := r.cache.SetEngagementStats(ctx, unitID.String(), stats); err != nil {
		r.cacheDegraded(ctx, "set stats", err)
	}
	return stats, nil
}
