package config_test

import (
	"context"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/tkhorram/convoytrack/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.CacheAddr, convey.ShouldEqual, "127.0.0.1:6379")
			convey.So(cfg.CachePoolSize, convey.ShouldEqual, 10)
			convey.So(cfg.DurableDSN, convey.ShouldBeEmpty)
			convey.So(cfg.NotifyQueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.ScoreRetries, convey.ShouldEqual, 3)
			convey.So(cfg.ReconcileCapacity, convey.ShouldEqual, 1024)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
		})

		convey.Convey("And TTL overrides default to zero, keeping the tier table", func() {
			convey.So(cfg.TTLTelemetrySec, convey.ShouldEqual, 0)
			convey.So(cfg.TTLRosterSec, convey.ShouldEqual, 0)
		})
	})
}

func TestConfig_Load(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		t.Setenv("CONVOYTRACK_ADDR", ":7070")
		t.Setenv("CONVOYTRACK_CACHE_ADDR", "10.0.0.5:6379")
		t.Setenv("CONVOYTRACK_SCORE_RETRIES", "5")
		t.Setenv("CONVOYTRACK_TTL_TELEMETRY_SEC", "15")

		cfg, err := config.Load(context.Background())

		convey.Convey("Then they win over defaults", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
			convey.So(cfg.CacheAddr, convey.ShouldEqual, "10.0.0.5:6379")
			convey.So(cfg.ScoreRetries, convey.ShouldEqual, 5)
			convey.So(cfg.TTLTelemetrySec, convey.ShouldEqual, 15)
			convey.So(cfg.NotifyQueueSize, convey.ShouldEqual, 10_000)
		})
	})

	convey.Convey("Given an invalid override", t, func() {
		t.Setenv("CONVOYTRACK_ADDR", "")

		_, err := config.Load(context.Background())

		convey.Convey("Then Load rejects it", func() {
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "addr")
		})
	})
}
