package durable

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tkhorram/convoytrack/internal/domain/model"
)

var (
	convoyA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	unitA   = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	unitB   = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000002")
)

func seedUnit(t *testing.T, s *MemoryStore) {
	t.Helper()
	require.NoError(t, s.PutUnit(context.Background(), model.Unit{
		ConvoyID:  convoyA,
		UnitID:    unitA,
		Callsign:  "VIPER-1",
		Status:    model.UnitAirborne,
		CreatedAt: time.Now().UTC(),
	}))
}

func TestConvoyLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetConvoy(ctx, convoyA)
	require.ErrorIs(t, err, ErrNotFound)

	c := model.Convoy{
		ConvoyID:  convoyA,
		Callsign:  "THUNDER",
		Mission:   model.MissionEscort,
		Status:    model.ConvoyPlanning,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.PutConvoy(ctx, c))

	got, err := s.GetConvoy(ctx, convoyA)
	require.NoError(t, err)
	require.Equal(t, c.Callsign, got.Callsign)

	require.NoError(t, s.DeleteConvoy(ctx, convoyA))
	require.ErrorIs(t, s.DeleteConvoy(ctx, convoyA), ErrNotFound)
}

func TestIncrementCountersHitAndMiss(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUnit(t, s)

	// hit, hit, miss, hit
	stats, err := s.IncrementCounters(ctx, convoyA, unitA, true)
	require.NoError(t, err)
	require.Equal(t, model.AccuracyStats{TotalEngagements: 1, SuccessfulHits: 1, CurrentStreak: 1, BestStreak: 1}, stats)

	stats, err = s.IncrementCounters(ctx, convoyA, unitA, true)
	require.NoError(t, err)
	require.Equal(t, int32(2), stats.CurrentStreak)
	require.Equal(t, int32(2), stats.BestStreak)

	stats, err = s.IncrementCounters(ctx, convoyA, unitA, false)
	require.NoError(t, err)
	require.Equal(t, model.AccuracyStats{TotalEngagements: 3, SuccessfulHits: 2, CurrentStreak: 0, BestStreak: 2}, stats)

	stats, err = s.IncrementCounters(ctx, convoyA, unitA, true)
	require.NoError(t, err)
	require.Equal(t, int32(1), stats.CurrentStreak)
	require.Equal(t, int32(2), stats.BestStreak, "best streak never regresses")
	require.InDelta(t, 75.0, stats.AccuracyPct(), 1e-9)
}

func TestIncrementCountersUnknownUnit(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.IncrementCounters(context.Background(), convoyA, unitA, true)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestIncrementCountersConcurrentSameUnit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUnit(t, s)

	const n = 64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(hit bool) {
			defer wg.Done()
			_, err := s.IncrementCounters(ctx, convoyA, unitA, hit)
			require.NoError(t, err)
		}(i%2 == 0)
	}
	wg.Wait()

	u, err := s.GetUnit(ctx, convoyA, unitA)
	require.NoError(t, err)
	require.EqualValues(t, n, u.TotalEngagements, "no lost updates")
	require.EqualValues(t, n/2, u.SuccessfulHits)
}

func TestPutUnitPreservesCounters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUnit(t, s)

	_, err := s.IncrementCounters(ctx, convoyA, unitA, true)
	require.NoError(t, err)

	// A metadata refresh must not zero the counters.
	require.NoError(t, s.PutUnit(ctx, model.Unit{
		ConvoyID: convoyA,
		UnitID:   unitA,
		Callsign: "VIPER-1",
		Status:   model.UnitRTB,
	}))

	u, err := s.GetUnit(ctx, convoyA, unitA)
	require.NoError(t, err)
	require.Equal(t, model.UnitRTB, u.Status)
	require.EqualValues(t, 1, u.TotalEngagements)
}

func TestTelemetryRangeSpansBuckets(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 50, 0, 0, time.UTC)
	var batch []model.Telemetry
	for i := 0; i < 4; i++ {
		ts := base.Add(time.Duration(i) * 10 * time.Minute)
		batch = append(batch, model.Telemetry{
			UnitID:     unitA,
			TimeBucket: model.TimeBucket(ts),
			RecordedAt: ts,
			FuelPct:    100 - float32(i),
		})
	}
	require.NoError(t, s.InsertTelemetryBatch(ctx, batch))

	// Range crossing the 09->10 hour boundary.
	out, err := s.TelemetryRange(ctx, unitA, model.TimeRange{
		Start: base,
		End:   base.Add(25 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.True(t, out[0].RecordedAt.Before(out[1].RecordedAt), "oldest first")

	latest, err := s.LatestTelemetry(ctx, unitA)
	require.NoError(t, err)
	require.Equal(t, base.Add(30*time.Minute), latest.RecordedAt)
}

func TestPruneTelemetryBefore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	var batch []model.Telemetry
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		batch = append(batch, model.Telemetry{
			UnitID:     unitA,
			TimeBucket: model.TimeBucket(ts),
			RecordedAt: ts,
		})
	}
	batch = append(batch, model.Telemetry{
		UnitID:     unitB,
		TimeBucket: model.TimeBucket(base),
		RecordedAt: base,
	})
	require.NoError(t, s.InsertTelemetryBatch(ctx, batch))

	n, err := s.PruneTelemetryBefore(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	out, err := s.TelemetryRange(ctx, unitA, model.TimeRange{
		Start: base,
		End:   base.Add(5 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, base.Add(2*time.Hour), out[0].RecordedAt)

	// Unit B lost its only sample; the key is gone entirely.
	_, err = s.LatestTelemetry(ctx, unitB)
	require.ErrorIs(t, err, ErrNotFound)

	// Pruning again with the same cutoff removes nothing.
	n, err = s.PruneTelemetryBefore(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestInsertEngagementIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	e := model.Engagement{
		ConvoyID:     convoyA,
		EngagedAt:    time.Now().UTC(),
		EngagementID: uuid.MustParse("eeeeeeee-0000-0000-0000-000000000001"),
		UnitID:       unitA,
		Weapon:       model.WeaponHellfire,
		Hit:          true,
	}
	require.NoError(t, s.InsertEngagement(ctx, e))
	require.NoError(t, s.InsertEngagement(ctx, e))

	got, err := s.EngagementsByConvoy(ctx, convoyA, 0)
	require.NoError(t, err)
	require.Len(t, got, 1, "replayed fact stored once")
}

func TestLeaderboardEntriesOrdering(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.UpsertLeaderboardEntry(ctx, model.LeaderboardEntry{
		ConvoyID: convoyA, UnitID: unitB, AccuracyPct: 80,
	}))
	require.NoError(t, s.UpsertLeaderboardEntry(ctx, model.LeaderboardEntry{
		ConvoyID: convoyA, UnitID: unitA, AccuracyPct: 80,
	}))

	entries, err := s.LeaderboardEntries(ctx, convoyA)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, unitA, entries[0].UnitID, "tie resolved by ascending identity")
	require.Equal(t, 1, entries[0].Rank)
	require.Equal(t, 2, entries[1].Rank)
}

func TestMarkWaypointProgress(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutWaypoints(ctx, []model.Waypoint{
		{UnitID: unitA, Seq: 2, WPID: uuid.New(), Kind: model.WaypointNav, Status: model.WaypointPending},
		{UnitID: unitA, Seq: 1, WPID: uuid.New(), Kind: model.WaypointNav, Status: model.WaypointPending},
	}))

	require.NoError(t, s.MarkWaypoint(ctx, unitA, 1, model.WaypointActive))
	require.NoError(t, s.MarkWaypoint(ctx, unitA, 1, model.WaypointComplete))
	require.ErrorIs(t, s.MarkWaypoint(ctx, unitA, 9, model.WaypointActive), ErrNotFound)

	route, err := s.Route(ctx, unitA)
	require.NoError(t, err)
	require.Len(t, route, 2)
	require.EqualValues(t, 1, route[0].Seq, "route ordered by sequence")
	require.Equal(t, model.WaypointComplete, route[0].Status)
	require.NotNil(t, route[0].Arrived)
	require.NotNil(t, route[0].Left)
}

func TestFailNextSurfacesInjectedError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUnit(t, s)

	boom := errors.New("partition unreachable")
	s.FailNext(1, boom)

	_, err := s.IncrementCounters(ctx, convoyA, unitA, true)
	require.ErrorIs(t, err, boom)

	_, err = s.IncrementCounters(ctx, convoyA, unitA, true)
	require.NoError(t, err, "failure injection is one-shot")
}
