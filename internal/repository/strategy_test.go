package repository

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tkhorram/convoytrack/internal/domain/types"
)

func TestDefaultStrategies(t *testing.T) {
	Convey("Given the default strategy table", t, func() {
		table := DefaultStrategies()

		Convey("telemetry writes around the cache", func() {
			s := table.For(types.KindTelemetry)
			So(s.Read, ShouldEqual, ReadCacheFirst)
			So(s.Write, ShouldEqual, WriteAround)
		})

		Convey("every other kind writes through", func() {
			for _, kind := range []types.EntityKind{
				types.KindConvoy,
				types.KindUnit,
				types.KindWaypoint,
				types.KindEngagement,
				types.KindLeaderboard,
			} {
				s := table.For(kind)
				So(s.Read, ShouldEqual, ReadCacheFirst)
				So(s.Write, ShouldEqual, WriteThrough)
			}
		})

		Convey("unknown kinds fall back to cache-first write-through", func() {
			s := table.For(types.EntityKind("anomaly"))
			So(s.Read, ShouldEqual, ReadCacheFirst)
			So(s.Write, ShouldEqual, WriteThrough)
		})
	})
}
