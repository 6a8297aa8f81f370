package cache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tkhorram/convoytrack/internal/domain/model"
	"github.com/tkhorram/convoytrack/internal/domain/types"
	"github.com/tkhorram/convoytrack/pkg/metrics"
)

// rankOfFn is shared Lua deriving a 0-based rank with deterministic
// ordering: accuracy descending, member id ascending within a tie. The
// sorted set alone orders tied members ascending on ZRANGE but descending
// on ZREVRANGE, so ranks are computed explicitly.
const rankOfFn = `
local function rankof(key, m)
  local s = redis.call('ZSCORE', key, m)
  if s == false then return -1 end
  local higher = redis.call('ZCOUNT', key, '(' .. s, '+inf')
  local idx = 0
  for _, x in ipairs(redis.call('ZRANGEBYSCORE', key, s, s)) do
    if x < m then idx = idx + 1 end
  end
  return higher + idx
end
`

// updateScoreScript sets a member's score and returns {rank before, rank
// after} in one server-side step, so concurrent updates to the shared
// ranked structure never observe a half-applied score.
var updateScoreScript = redis.NewScript(rankOfFn + `
local before = rankof(KEYS[1], ARGV[1])
redis.call('ZADD', KEYS[1], tonumber(ARGV[2]), ARGV[1])
local after = rankof(KEYS[1], ARGV[1])
if tonumber(ARGV[3]) > 0 then
  redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[3]))
end
return {before, after}
`)

// rankScript reads a member's rank without mutating the structure.
var rankScript = redis.NewScript(rankOfFn + `
return rankof(KEYS[1], ARGV[1])
`)

// ScoreUpdate is the result of an atomic score set. Ranks are 1-based;
// Before is 0 when the member was previously unranked.
type ScoreUpdate struct {
	Before int
	After  int
}

// UpdateScore atomically sets a unit's leaderboard score and reports its
// rank immediately before and after. Re-applying the same score is
// idempotent: the rank delta collapses to zero and no further drift occurs.
func (c *Client) UpdateScore(ctx context.Context, convoyID, unitID string, accuracyPct float64) (ScoreUpdate, error) {
	start := time.Now()
	defer func() { metrics.RecordCacheLatency(float64(time.Since(start).Milliseconds())) }()

	key := LeaderboardKey(convoyID)
	res, err := updateScoreScript.Run(ctx, c.rdb,
		[]string{key},
		unitID,
		strconv.FormatFloat(accuracyPct, 'f', -1, 64),
		strconv.FormatInt(c.ttl.Leaderboard.Milliseconds(), 10),
	).Result()
	if err != nil {
		metrics.RecordCacheError("zscore_update")
		return ScoreUpdate{}, fmt.Errorf("cache score update %s: %w", key, err)
	}

	pair, ok := res.([]interface{})
	if !ok || len(pair) != 2 {
		metrics.RecordCacheError("zscore_update")
		return ScoreUpdate{}, fmt.Errorf("cache score update %s: unexpected reply %v", key, res)
	}

	before, _ := pair[0].(int64)
	after, _ := pair[1].(int64)
	out := ScoreUpdate{After: int(after) + 1}
	if before >= 0 {
		out.Before = int(before) + 1
	}
	return out, nil
}

// Rank returns a unit's 1-based rank in its convoy. The second return is
// false when the unit is not in the ranked structure.
func (c *Client) Rank(ctx context.Context, convoyID, unitID string) (int, bool, error) {
	key := LeaderboardKey(convoyID)
	res, err := rankScript.Run(ctx, c.rdb, []string{key}, unitID).Int64()
	if err != nil {
		metrics.RecordCacheError("zrank")
		return 0, false, fmt.Errorf("cache rank %s: %w", key, err)
	}
	if res < 0 {
		return 0, false, nil
	}
	return int(res) + 1, true, nil
}

// TopN returns the convoy's top n rows ordered by accuracy descending with
// ties broken by ascending unit identity.
func (c *Client) TopN(ctx context.Context, convoyID string, n int) ([]types.LeaderboardRow, error) {
	key := LeaderboardKey(convoyID)
	zs, err := c.rdb.ZRevRangeWithScores(ctx, key, 0, int64(n)-1).Result()
	if err != nil {
		metrics.RecordCacheError("zrevrange")
		return nil, fmt.Errorf("cache topn %s: %w", key, err)
	}

	rows := make([]types.LeaderboardRow, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		id, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		rows = append(rows, types.LeaderboardRow{UnitID: id, AccuracyPct: z.Score})
	}

	// ZREVRANGE orders tied members descending; normalize to ascending id.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].AccuracyPct != rows[j].AccuracyPct {
			return rows[i].AccuracyPct > rows[j].AccuracyPct
		}
		return rows[i].UnitID.String() < rows[j].UnitID.String()
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

// RemoveFromLeaderboard drops a unit from the convoy's ranked structure.
func (c *Client) RemoveFromLeaderboard(ctx context.Context, convoyID, unitID string) (bool, error) {
	n, err := c.rdb.ZRem(ctx, LeaderboardKey(convoyID), unitID).Result()
	if err != nil {
		metrics.RecordCacheError("zrem")
		return false, fmt.Errorf("cache zrem: %w", err)
	}
	return n > 0, nil
}

// RebuildLeaderboard replaces the ranked structure from durable entries in
// one pipeline. Used when the cache is cold or after a reported
// inconsistency.
func (c *Client) RebuildLeaderboard(ctx context.Context, convoyID string, entries []model.LeaderboardEntry) error {
	key := LeaderboardKey(convoyID)

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	for _, e := range entries {
		pipe.ZAdd(ctx, key, redis.Z{Score: e.AccuracyPct, Member: e.UnitID.String()})
	}
	pipe.Expire(ctx, key, c.ttl.Leaderboard)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordCacheError("rebuild")
		return fmt.Errorf("cache rebuild %s: %w", key, err)
	}
	return nil
}

// SetEngagementStats refreshes the unit's counter hash with authoritative
// post-increment totals. Values are set, never incremented, so replays
// cannot drift from the durable counters.
func (c *Client) SetEngagementStats(ctx context.Context, unitID string, stats model.AccuracyStats) error {
	key := EngagementStatsKey(unitID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"total_engagements", strconv.FormatInt(stats.TotalEngagements, 10),
		"successful_hits", strconv.FormatInt(stats.SuccessfulHits, 10),
		"current_streak", strconv.FormatInt(int64(stats.CurrentStreak), 10),
		"best_streak", strconv.FormatInt(int64(stats.BestStreak), 10),
	)
	pipe.Expire(ctx, key, c.ttl.EngagementStats)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordCacheError("hset_stats")
		return fmt.Errorf("cache stats %s: %w", key, err)
	}
	return nil
}

// GetEngagementStats reads the unit's counter hash. The second return is
// false on a miss.
func (c *Client) GetEngagementStats(ctx context.Context, unitID string) (model.AccuracyStats, bool, error) {
	key := EngagementStatsKey(unitID)
	fields, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		metrics.RecordCacheError("hgetall")
		return model.AccuracyStats{}, false, fmt.Errorf("cache stats %s: %w", key, err)
	}
	if len(fields) == 0 {
		return model.AccuracyStats{}, false, nil
	}

	var stats model.AccuracyStats
	stats.TotalEngagements, _ = strconv.ParseInt(fields["total_engagements"], 10, 64)
	stats.SuccessfulHits, _ = strconv.ParseInt(fields["successful_hits"], 10, 64)
	cur, _ := strconv.ParseInt(fields["current_streak"], 10, 32)
	best, _ := strconv.ParseInt(fields["best_streak"], 10, 32)
	stats.CurrentStreak = int32(cur)
	stats.BestStreak = int32(best)
	return stats, true, nil
}
