package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tkhorram/convoytrack/internal/domain/model"
)

func TestUnitStateRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.GetUnitState(ctx, unitA.String())
	require.NoError(t, err)
	require.False(t, ok)

	want := model.Unit{
		ConvoyID: convoyA,
		UnitID:   unitA,
		Callsign: "VIPER-1",
		Status:   model.UnitAirborne,
		Position: model.Coordinates{
			Latitude:   35.6812,
			Longitude:  139.7671,
			AltitudeM:  120.5,
			HeadingDeg: 270,
			SpeedMPS:   18.5,
		},
		FuelPct:   87.5,
		UpdatedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, c.SetUnitState(ctx, want))

	got, ok, err := c.GetUnitState(ctx, unitA.String())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want.ConvoyID, got.ConvoyID)
	require.Equal(t, want.Callsign, got.Callsign)
	require.Equal(t, want.Status, got.Status)
	require.Equal(t, want.Position, got.Position)
	require.Equal(t, want.FuelPct, got.FuelPct)
	require.True(t, want.UpdatedAt.Equal(got.UpdatedAt))
}

func TestUnitStateExpires(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetUnitState(ctx, model.Unit{
		ConvoyID: convoyA,
		UnitID:   unitA,
		Callsign: "VIPER-1",
		Status:   model.UnitAirborne,
	}))

	mr.FastForward(61 * time.Second)

	_, ok, err := c.GetUnitState(ctx, unitA.String())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRosterMembership(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	convoy := convoyA.String()

	_, ok, err := c.Roster(ctx, convoy)
	require.NoError(t, err)
	require.False(t, ok, "absent roster is a miss, not an empty convoy")

	require.NoError(t, c.AddToRoster(ctx, convoy, unitA.String()))
	require.NoError(t, c.AddToRoster(ctx, convoy, unitB.String()))

	ids, ok, err := c.Roster(ctx, convoy)
	require.NoError(t, err)
	require.True(t, ok)
	require.ElementsMatch(t, []uuid.UUID{unitA, unitB}, ids)

	require.NoError(t, c.RemoveFromRoster(ctx, convoy, unitB.String()))
	ids, ok, err = c.Roster(ctx, convoy)
	require.NoError(t, err)
	require.True(t, ok)
	require.ElementsMatch(t, []uuid.UUID{unitA}, ids)
}

func TestLatestTelemetryRoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	want := model.Telemetry{
		UnitID:      unitA,
		TimeBucket:  "2026031409",
		RecordedAt:  time.Date(2026, 3, 14, 9, 15, 30, 0, time.UTC),
		VelocityMPS: 21.5,
		FuelPct:     80,
		LinkQuality: 0.97,
	}
	require.NoError(t, c.SetLatestTelemetry(ctx, want))

	got, ok, err := c.GetLatestTelemetry(ctx, unitA.String())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want.TimeBucket, got.TimeBucket)
	require.Equal(t, want.VelocityMPS, got.VelocityMPS)

	// Latest-sample keys sit in the shortest TTL tier.
	mr.FastForward(11 * time.Second)
	_, ok, err = c.GetLatestTelemetry(ctx, unitA.String())
	require.NoError(t, err)
	require.False(t, ok)
}
