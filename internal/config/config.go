// Package config defines service configuration and loading.
//
// Conventions:
// - Defaults come from New; Load layers file and environment on top.
// - External errors are wrapped via this package's sentinel kinds.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// CacheAddr is the low-latency store endpoint.
	CacheAddr string `koanf:"cache_addr"`

	// CachePoolSize bounds the cache connection pool.
	CachePoolSize int `koanf:"cache_pool_size"`

	// DurableDSN is the durable store connection string. Empty selects the
	// in-memory store, which suits local runs and tests only.
	DurableDSN string `koanf:"durable_dsn"`

	// DurableMaxConns caps the durable connection pool.
	DurableMaxConns int `koanf:"durable_max_conns"`

	// NotifyQueueSize bounds the change-notification queue.
	NotifyQueueSize int `koanf:"notify_queue_size"`

	// ScoreRetries is how many times a failed cache score set is retried
	// before the update is reported inconsistent.
	ScoreRetries int `koanf:"score_retries"`

	// ReconcileCapacity bounds the queue of score sets awaiting replay.
	ReconcileCapacity int `koanf:"reconcile_capacity"`

	// DedupeSize bounds the engagement idempotency guard.
	DedupeSize int `koanf:"dedupe_size"`

	// TelemetryRetentionSec is how long telemetry stays in the durable
	// store. Samples older than this are pruned.
	TelemetryRetentionSec int `koanf:"telemetry_retention_sec"`

	// PruneIntervalSec is how often the telemetry pruner runs.
	PruneIntervalSec int `koanf:"prune_interval_sec"`

	// TTL tier overrides, in seconds. Zero keeps the default tier.
	TTLTelemetrySec       int `koanf:"ttl_telemetry_sec"`
	TTLUnitStateSec       int `koanf:"ttl_unit_state_sec"`
	TTLConvoySummarySec   int `koanf:"ttl_convoy_summary_sec"`
	TTLLeaderboardSec     int `koanf:"ttl_leaderboard_sec"`
	TTLEngagementStatsSec int `koanf:"ttl_engagement_stats_sec"`
	TTLRosterSec          int `koanf:"ttl_roster_sec"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		CacheAddr:         "127.0.0.1:6379",
		CachePoolSize:     10,
		DurableMaxConns:   16,
		NotifyQueueSize:   10_000,
		ScoreRetries:      3,
		ReconcileCapacity: 1024,
		DedupeSize:        50_000,

		TelemetryRetentionSec: 24 * 60 * 60,
		PruneIntervalSec:      60 * 60,
	}
}
