package model_test

import (
	"testing"
	"time"

	model "github.com/tkhorram/convoytrack/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestAccuracyStats(t *testing.T) {
	convey.Convey("Given accuracy counters", t, func() {
		convey.Convey("When no engagements were recorded", func() {
			s := model.AccuracyStats{}

			convey.Convey("Then accuracy is zero, not NaN", func() {
				convey.So(s.AccuracyPct(), convey.ShouldEqual, 0.0)
			})
		})

		convey.Convey("When 3 of 4 engagements hit", func() {
			s := model.AccuracyStats{TotalEngagements: 4, SuccessfulHits: 3}

			convey.Convey("Then accuracy is 75 percent", func() {
				convey.So(s.AccuracyPct(), convey.ShouldEqual, 75.0)
			})
		})

		convey.Convey("When every engagement hit", func() {
			s := model.AccuracyStats{TotalEngagements: 7, SuccessfulHits: 7}

			convey.Convey("Then accuracy is 100 percent", func() {
				convey.So(s.AccuracyPct(), convey.ShouldEqual, 100.0)
			})
		})
	})
}

func TestTimeBucket(t *testing.T) {
	convey.Convey("Given timestamps", t, func() {
		ts := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

		convey.Convey("Then the bucket is the UTC hour", func() {
			convey.So(model.TimeBucket(ts), convey.ShouldEqual, "2026031415")
		})

		convey.Convey("Then non-UTC timestamps normalize to UTC", func() {
			loc := time.FixedZone("plus2", 2*60*60)
			convey.So(model.TimeBucket(ts.In(loc)), convey.ShouldEqual, "2026031415")
		})
	})
}

func TestTimeRangeBuckets(t *testing.T) {
	convey.Convey("Given a time range", t, func() {
		start := time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)

		convey.Convey("When the range spans three hours", func() {
			r := model.TimeRange{Start: start, End: start.Add(2 * time.Hour)}

			convey.Convey("Then every touched hourly bucket is listed oldest first", func() {
				convey.So(r.Buckets(), convey.ShouldResemble, []string{"2026031415", "2026031416", "2026031417"})
			})
		})

		convey.Convey("When the range sits inside one hour", func() {
			r := model.TimeRange{Start: start, End: start.Add(10 * time.Minute)}

			convey.So(r.Buckets(), convey.ShouldResemble, []string{"2026031415"})
		})

		convey.Convey("When the range is inverted", func() {
			r := model.TimeRange{Start: start, End: start.Add(-time.Hour)}

			convey.So(r.Buckets(), convey.ShouldBeNil)
		})
	})
}

func TestDistance(t *testing.T) {
	convey.Convey("Given two coordinates one degree of latitude apart", t, func() {
		a := model.Coordinates{Latitude: 34.0, Longitude: 69.0}
		b := model.Coordinates{Latitude: 35.0, Longitude: 69.0}

		convey.Convey("Then the haversine distance is about 111 km", func() {
			d := a.DistanceToKM(b)
			convey.So(d, convey.ShouldBeGreaterThan, 110.0)
			convey.So(d, convey.ShouldBeLessThan, 112.5)
		})

		convey.Convey("Then distance to self is zero", func() {
			convey.So(a.DistanceToKM(a), convey.ShouldEqual, 0.0)
		})
	})
}
