package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tkhorram/convoytrack/internal/domain/model"
	"github.com/tkhorram/convoytrack/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func startService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	svc := New(append([]Option{WithCacheAddr(mr.Addr())}, opts...)...)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { svc.Stop(context.Background()) })
	return svc
}

func TestServiceStartStop(t *testing.T) {
	svc := startService(t, WithQueueSize(64), WithDedupeSize(128))

	stats := svc.GetStats()
	require.Equal(t, true, stats["started"])
	require.Equal(t, 64, stats["queueSize"])
	require.NotNil(t, svc.Repository())

	svc.Stop(context.Background())
	require.Equal(t, false, svc.GetStats()["started"])

	// Stop is idempotent.
	svc.Stop(context.Background())
}

func TestServiceStartIsIdempotent(t *testing.T) {
	svc := startService(t)
	require.NoError(t, svc.Start(context.Background()))
}

func TestServiceEngagementFlow(t *testing.T) {
	svc := startService(t)
	ctx := context.Background()
	repo := svc.Repository()

	convoyID := uuid.New()
	unitID := uuid.New()

	require.NoError(t, repo.PutConvoy(ctx, model.Convoy{
		ConvoyID:  convoyID,
		Callsign:  "REAPER",
		Mission:   model.MissionStrike,
		Status:    model.ConvoyActive,
		CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, repo.PutUnit(ctx, model.Unit{
		ConvoyID:  convoyID,
		UnitID:    unitID,
		Callsign:  "REAPER-1",
		Status:    model.UnitIngress,
		CreatedAt: time.Now().UTC(),
	}))

	res, err := repo.RecordEngagement(ctx, convoyID, unitID, true)
	require.NoError(t, err)
	require.Equal(t, 1, res.NewRank)
	require.InDelta(t, 100.0, res.AccuracyPct, 1e-9)

	res, err = repo.RecordEngagement(ctx, convoyID, unitID, false)
	require.NoError(t, err)
	require.InDelta(t, 50.0, res.AccuracyPct, 1e-9)

	rows, err := repo.Leaderboard(ctx, convoyID, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, unitID, rows[0].UnitID)

	stats, err := repo.AccuracyStats(ctx, unitID)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.TotalEngagements)
	require.Equal(t, int64(1), stats.SuccessfulHits)
}

func TestServiceDeduplicatesEngagements(t *testing.T) {
	svc := startService(t)
	ctx := context.Background()
	repo := svc.Repository()

	convoyID := uuid.New()
	unitID := uuid.New()
	require.NoError(t, repo.PutUnit(ctx, model.Unit{
		ConvoyID:  convoyID,
		UnitID:    unitID,
		Callsign:  "SHRIKE-1",
		Status:    model.UnitAirborne,
		CreatedAt: time.Now().UTC(),
	}))

	e := model.Engagement{
		EngagementID: uuid.New(),
		ConvoyID:     convoyID,
		UnitID:       unitID,
		Weapon:       model.WeaponHellfire,
		Hit:          true,
		EngagedAt:    time.Now().UTC(),
	}
	_, err := repo.ProcessEngagement(ctx, e)
	require.NoError(t, err)

	_, err = repo.ProcessEngagement(ctx, e)
	require.Error(t, err)

	stats, err := repo.AccuracyStats(ctx, unitID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.TotalEngagements)
}
