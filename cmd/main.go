package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tkhorram/convoytrack/internal/adapters/cache"
	"github.com/tkhorram/convoytrack/internal/adapters/http/api"
	app "github.com/tkhorram/convoytrack/internal/app"
	"github.com/tkhorram/convoytrack/internal/config"
	"github.com/tkhorram/convoytrack/pkg/logger"
	"github.com/tkhorram/convoytrack/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics;
	// the system metrics updater samples the runtime itself.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("logger sync failed: " + err.Error() + "\n")
		}
	}()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := app.New(
		app.WithLogger(loggerInstance),
		app.WithCacheAddr(cfg.CacheAddr),
		app.WithCachePoolSize(cfg.CachePoolSize),
		app.WithDurableDSN(cfg.DurableDSN),
		app.WithDurableMaxConns(cfg.DurableMaxConns),
		app.WithQueueSize(cfg.NotifyQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithScoreRetries(cfg.ScoreRetries),
		app.WithReconcileCapacity(cfg.ReconcileCapacity),
		app.WithTelemetryRetention(time.Duration(cfg.TelemetryRetentionSec)*time.Second),
		app.WithPruneInterval(time.Duration(cfg.PruneIntervalSec)*time.Second),
		app.WithTTL(ttlFromConfig(cfg)),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop(context.Background())

	go startSystemMetricsUpdater(ctx)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc.Repository(), svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// ttlFromConfig builds the cache expiry table from config; zero values keep
// the stock tier.
func ttlFromConfig(cfg *config.Config) cache.TTL {
	ttl := cache.DefaultTTL()
	if cfg.TTLTelemetrySec > 0 {
		ttl.Telemetry = time.Duration(cfg.TTLTelemetrySec) * time.Second
	}
	if cfg.TTLUnitStateSec > 0 {
		ttl.UnitState = time.Duration(cfg.TTLUnitStateSec) * time.Second
	}
	if cfg.TTLConvoySummarySec > 0 {
		ttl.ConvoySummary = time.Duration(cfg.TTLConvoySummarySec) * time.Second
	}
	if cfg.TTLLeaderboardSec > 0 {
		ttl.Leaderboard = time.Duration(cfg.TTLLeaderboardSec) * time.Second
	}
	if cfg.TTLEngagementStatsSec > 0 {
		ttl.EngagementStats = time.Duration(cfg.TTLEngagementStatsSec) * time.Second
	}
	if cfg.TTLRosterSec > 0 {
		ttl.Roster = time.Duration(cfg.TTLRosterSec) * time.Second
	}
	return ttl
}

// startSystemMetricsUpdater samples runtime health on a fixed interval.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
