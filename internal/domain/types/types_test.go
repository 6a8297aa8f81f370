package types_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/smartystreets/goconvey/convey"
	types "github.com/tkhorram/convoytrack/internal/domain/types"
)

func TestNotificationJSON(t *testing.T) {
	convey.Convey("Given a change notification", t, func() {
		n := types.Notification{
			Kind:      types.KindUnit,
			ConvoyID:  uuid.MustParse("11111111-1111-1111-1111-111111111111"),
			ID:        uuid.MustParse("22222222-2222-2222-2222-222222222222"),
			Op:        types.OpUpdate,
			Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}

		convey.Convey("When marshaled", func() {
			b, err := json.Marshal(n)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the wire keys match the published contract", func() {
				var m map[string]any
				convey.So(json.Unmarshal(b, &m), convey.ShouldBeNil)
				convey.So(m["entity_kind"], convey.ShouldEqual, "unit")
				convey.So(m["op"], convey.ShouldEqual, "update")
				convey.So(m, convey.ShouldContainKey, "timestamp")
			})
		})
	})
}

func TestEngagementResultJSON(t *testing.T) {
	convey.Convey("Given an engagement result", t, func() {
		r := types.EngagementResult{Success: true, NewRank: 2, RankDelta: 1, AccuracyPct: 66.7}

		b, err := json.Marshal(r)
		convey.So(err, convey.ShouldBeNil)

		var m map[string]any
		convey.So(json.Unmarshal(b, &m), convey.ShouldBeNil)
		convey.So(m["new_rank"], convey.ShouldEqual, 2)
		convey.So(m["rank_delta"], convey.ShouldEqual, 1)
		convey.So(m["new_accuracy_pct"], convey.ShouldAlmostEqual, 66.7, 0.001)
	})
}
