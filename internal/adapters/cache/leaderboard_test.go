package cache

import (
	"context"
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
	unitC   = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000003")
)

func TestUpdateScoreFirstInsert(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	upd, err := c.UpdateScore(ctx, convoyA.String(), unitA.String(), 75)
	require.NoError(t, err)
	require.Equal(t, 0, upd.Before, "unranked unit has no prior rank")
	require.Equal(t, 1, upd.After)
}

func TestUpdateScoreReportsRankMovement(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	convoy := convoyA.String()

	_, err := c.UpdateScore(ctx, convoy, unitA.String(), 90)
	require.NoError(t, err)
	upd, err := c.UpdateScore(ctx, convoy, unitB.String(), 50)
	require.NoError(t, err)
	require.Equal(t, 2, upd.After)

	// Overtake: the update itself reports the crossing.
	upd, err = c.UpdateScore(ctx, convoy, unitB.String(), 95)
	require.NoError(t, err)
	require.Equal(t, 2, upd.Before)
	require.Equal(t, 1, upd.After)
}

func TestUpdateScoreIdempotentReapply(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	convoy := convoyA.String()

	first, err := c.UpdateScore(ctx, convoy, unitA.String(), 66.67)
	require.NoError(t, err)
	again, err := c.UpdateScore(ctx, convoy, unitA.String(), 66.67)
	require.NoError(t, err)
	require.Equal(t, first.After, again.Before)
	require.Equal(t, first.After, again.After, "re-applying the same score is a no-op")
}

func TestTiedScoresRankByAscendingIdentity(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	convoy := convoyA.String()

	// Insert in reverse identity order so raw insertion order cannot mask
	// an ordering bug.
	_, err := c.UpdateScore(ctx, convoy, unitC.String(), 80)
	require.NoError(t, err)
	_, err = c.UpdateScore(ctx, convoy, unitB.String(), 80)
	require.NoError(t, err)
	upd, err := c.UpdateScore(ctx, convoy, unitA.String(), 80)
	require.NoError(t, err)
	require.Equal(t, 1, upd.After, "lowest identity wins the tie")

	rows, err := c.TopN(ctx, convoy, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []uuid.UUID{unitA, unitB, unitC},
		[]uuid.UUID{rows[0].UnitID, rows[1].UnitID, rows[2].UnitID})
	require.Equal(t, 1, rows[0].Rank)
	require.Equal(t, 3, rows[2].Rank)
}

func TestTopNOrdersByAccuracyDescending(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	convoy := convoyA.String()

	_, err := c.UpdateScore(ctx, convoy, unitA.String(), 40)
	require.NoError(t, err)
	_, err = c.UpdateScore(ctx, convoy, unitB.String(), 90)
	require.NoError(t, err)
	_, err = c.UpdateScore(ctx, convoy, unitC.String(), 70)
	require.NoError(t, err)

	rows, err := c.TopN(ctx, convoy, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, unitB, rows[0].UnitID)
	require.Equal(t, unitC, rows[1].UnitID)
	require.InDelta(t, 90, rows[0].AccuracyPct, 1e-9)
}

func TestRank(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	convoy := convoyA.String()

	_, ok, err := c.Rank(ctx, convoy, unitA.String())
	require.NoError(t, err)
	require.False(t, ok)

	_, err = c.UpdateScore(ctx, convoy, unitA.String(), 55)
	require.NoError(t, err)
	_, err = c.UpdateScore(ctx, convoy, unitB.String(), 75)
	require.NoError(t, err)

	rank, ok, err := c.Rank(ctx, convoy, unitA.String())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, rank)
}

func TestRemoveFromLeaderboard(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	convoy := convoyA.String()

	_, err := c.UpdateScore(ctx, convoy, unitA.String(), 55)
	require.NoError(t, err)

	removed, err := c.RemoveFromLeaderboard(ctx, convoy, unitA.String())
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = c.RemoveFromLeaderboard(ctx, convoy, unitA.String())
	require.NoError(t, err)
	require.False(t, removed)
}

func TestRebuildLeaderboardReplacesStaleMembers(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	convoy := convoyA.String()

	_, err := c.UpdateScore(ctx, convoy, unitC.String(), 99)
	require.NoError(t, err)

	entries := []model.LeaderboardEntry{
		{ConvoyID: convoyA, UnitID: unitA, AccuracyPct: 80},
		{ConvoyID: convoyA, UnitID: unitB, AccuracyPct: 60},
	}
	require.NoError(t, c.RebuildLeaderboard(ctx, convoy, entries))

	rows, err := c.TopN(ctx, convoy, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2, "stale member must not survive a rebuild")
	require.Equal(t, unitA, rows[0].UnitID)
}

func TestLeaderboardKeyExpires(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	convoy := convoyA.String()

	_, err := c.UpdateScore(ctx, convoy, unitA.String(), 50)
	require.NoError(t, err)
	require.True(t, mr.Exists(LeaderboardKey(convoy)))

	mr.FastForward(301 * time.Second)
	require.False(t, mr.Exists(LeaderboardKey(convoy)))
}

func TestEngagementStatsRoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.GetEngagementStats(ctx, unitA.String())
	require.NoError(t, err)
	require.False(t, ok)

	want := model.AccuracyStats{
		TotalEngagements: 4,
		SuccessfulHits:   3,
		CurrentStreak:    2,
		BestStreak:       5,
	}
	require.NoError(t, c.SetEngagementStats(ctx, unitA.String(), want))

	got, ok, err := c.GetEngagementStats(ctx, unitA.String())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)

	mr.FastForward(301 * time.Second)
	_, ok, err = c.GetEngagementStats(ctx, unitA.String())
	require.NoError(t, err)
	require.False(t, ok)
}
