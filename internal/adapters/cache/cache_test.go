package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/tkhorram/convoytrack/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), WithAddr(mr.Addr()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNewRequiresReachableEndpoint(t *testing.T) {
	_, err := New(context.Background(), WithAddr("127.0.0.1:1"))
	require.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	type snapshot struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	ok, err := c.GetJSON(ctx, "convoy:summary:missing", &snapshot{})
	require.NoError(t, err)
	require.False(t, ok, "miss must not be an error")

	want := snapshot{Name: "alpha", Count: 3}
	require.NoError(t, c.SetJSON(ctx, "convoy:summary:abc", want, time.Minute))

	var got snapshot
	ok, err = c.GetJSON(ctx, "convoy:summary:abc", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestEntriesExpire(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "telemetry:latest:u1", map[string]int{"v": 1}, 10*time.Second))

	mr.FastForward(11 * time.Second)

	var out map[string]int
	ok, err := c.GetJSON(ctx, "telemetry:latest:u1", &out)
	require.NoError(t, err)
	require.False(t, ok, "entry must lapse after its TTL tier")
}

func TestDeleteAndExists(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "unit:state:u1", 1, time.Minute))
	require.NoError(t, c.SetJSON(ctx, "unit:state:u2", 2, time.Minute))

	ok, err := c.Exists(ctx, "unit:state:u1")
	require.NoError(t, err)
	require.True(t, ok)

	n, err := c.Delete(ctx, "unit:state:u1", "unit:state:u2", "unit:state:u3")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	ok, err = c.Exists(ctx, "unit:state:u1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInvalidateUnitDropsAllUnitKeys(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	unitID := "2d2a3b1c-0000-0000-0000-000000000001"
	require.NoError(t, c.SetJSON(ctx, UnitStateKey(unitID), 1, time.Minute))
	require.NoError(t, c.SetJSON(ctx, LatestTelemetryKey(unitID), 1, time.Minute))
	require.NoError(t, c.SetJSON(ctx, EngagementStatsKey(unitID), 1, time.Minute))

	require.NoError(t, c.InvalidateUnit(ctx, unitID))

	require.False(t, mr.Exists(UnitStateKey(unitID)))
	require.False(t, mr.Exists(LatestTelemetryKey(unitID)))
	require.False(t, mr.Exists(EngagementStatsKey(unitID)))
}

func TestInvalidateConvoyDropsAggregateKeys(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	convoyID := "9f8e7d6c-0000-0000-0000-000000000002"
	require.NoError(t, c.SetJSON(ctx, ConvoySummaryKey(convoyID), 1, time.Minute))
	mr.ZAdd(LeaderboardKey(convoyID), 50, "u1")
	_, err := mr.SAdd(RosterKey(convoyID), "u1")
	require.NoError(t, err)

	require.NoError(t, c.InvalidateConvoy(ctx, convoyID))

	require.False(t, mr.Exists(ConvoySummaryKey(convoyID)))
	require.False(t, mr.Exists(LeaderboardKey(convoyID)))
	require.False(t, mr.Exists(RosterKey(convoyID)))
}

func TestTTLForMapsEveryKind(t *testing.T) {
	c := &Client{ttl: DefaultTTL()}

	cases := []struct {
		kind string
		want time.Duration
	}{
		{"telemetry", 10 * time.Second},
		{"unit", 60 * time.Second},
		{"convoy", 120 * time.Second},
		{"leaderboard", 300 * time.Second},
		{"engagement", 300 * time.Second},
		{"waypoint", 60 * time.Second},
		{"unknown", 60 * time.Second},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, c.TTLFor(tc.kind), "kind %s", tc.kind)
	}
}
