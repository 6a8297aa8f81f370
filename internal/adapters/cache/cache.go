// Package cache wraps the low-latency store with typed operations over the
// four structure kinds the core relies on: sorted set (ranked leaderboard),
// hash (record state), set (membership), and string (serialized snapshot).
// Every key carries a TTL tier; expiry is advisory for freshness, reads
// always re-derive from the durable store on miss.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tkhorram/convoytrack/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultAddr     = "127.0.0.1:6379"
	defaultPoolSize = 10
)

// Client is the shared cache client. It is safe for concurrent use and is
// injected into the repository at construction; there is one per process.
type Client struct {
	rdb      *redis.Client
	addr     string
	poolSize int
	ttl      TTL
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithAddr sets the cache endpoint.
func WithAddr(addr string) Option {
	return func(c *Client) {
		if addr != "" {
			c.addr = addr
		}
	}
}

// WithPoolSize sets the connection pool size.
func WithPoolSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// WithTTL overrides the TTL tier table.
func WithTTL(ttl TTL) Option {
	return func(c *Client) {
		c.ttl = ttl
	}
}

// New connects a cache client and verifies the endpoint is reachable.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	c := &Client{
		addr:     defaultAddr,
		poolSize: defaultPoolSize,
		ttl:      DefaultTTL(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.rdb = redis.NewClient(&redis.Options{
		Addr:     c.addr,
		PoolSize: c.poolSize,
	})

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache ping %s: %w", c.addr, err)
	}

	return c, nil
}

// TTLFor returns the expiry tier configured for an entity kind.
func (c *Client) TTLFor(kind string) time.Duration {
	return c.ttl.For(kind)
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetJSON reads a serialized snapshot into dest. The second return is false
// on a miss; a miss is not an error.
func (c *Client) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordCacheLatency(float64(time.Since(start).Milliseconds())) }()

	raw, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		metrics.RecordCacheError("get")
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		metrics.RecordCacheError("decode")
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores a serialized snapshot under key with the given TTL.
func (c *Client) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	start := time.Now()
	defer func() { metrics.RecordCacheLatency(float64(time.Since(start).Milliseconds())) }()

	raw, err := json.Marshal(value)
	if err != nil {
		metrics.RecordCacheError("encode")
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		metrics.RecordCacheError("set")
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete evicts keys. Missing keys are not an error.
func (c *Client) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		metrics.RecordCacheError("del")
		return 0, fmt.Errorf("cache del: %w", err)
	}
	if n > 0 {
		metrics.RecordCacheEviction()
	}
	return n, nil
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		metrics.RecordCacheError("exists")
		return false, fmt.Errorf("cache exists %s: %w", key, err)
	}
	return n > 0, nil
}

// InvalidateUnit evicts every key derived from one unit.
func (c *Client) InvalidateUnit(ctx context.Context, unitID string) error {
	_, err := c.Delete(ctx,
		UnitStateKey(unitID),
		LatestTelemetryKey(unitID),
		EngagementStatsKey(unitID),
		RouteKey(unitID),
	)
	return err
}

// InvalidateConvoy evicts every convoy-scoped key. Used for roster-level
// changes where per-key eviction would race the roster itself.
func (c *Client) InvalidateConvoy(ctx context.Context, convoyID string) error {
	_, err := c.Delete(ctx,
		LeaderboardKey(convoyID),
		RosterKey(convoyID),
		ConvoySummaryKey(convoyID),
	)
	return err
}
