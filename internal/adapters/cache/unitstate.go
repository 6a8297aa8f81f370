package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tkhorram/convoytrack/internal/domain/model"
	"github.com/tkhorram/convoytrack/pkg/metrics"
)

// SetUnitState stores the mutable slice of a unit as a field hash so
// individual fields can be read without deserializing the whole record.
func (c *Client) SetUnitState(ctx context.Context, u model.Unit) error {
	key := UnitStateKey(u.UnitID.String())
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"convoy_id", u.ConvoyID.String(),
		"callsign", u.Callsign,
		"status", string(u.Status),
		"lat", strconv.FormatFloat(u.Position.Latitude, 'f', -1, 64),
		"lon", strconv.FormatFloat(u.Position.Longitude, 'f', -1, 64),
		"alt_m", strconv.FormatFloat(u.Position.AltitudeM, 'f', -1, 64),
		"heading_deg", strconv.FormatFloat(float64(u.Position.HeadingDeg), 'f', -1, 32),
		"speed_mps", strconv.FormatFloat(float64(u.Position.SpeedMPS), 'f', -1, 32),
		"fuel_pct", strconv.FormatFloat(float64(u.FuelPct), 'f', -1, 32),
		"updated_at", u.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	pipe.Expire(ctx, key, c.ttl.UnitState)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordCacheError("hset_unit")
		return fmt.Errorf("cache unit state %s: %w", key, err)
	}
	return nil
}

// GetUnitState reads the cached slice of a unit. Fields not held in the
// hash (counters, platform metadata) are zero; callers needing the full
// record go through the repository, which falls back to the durable store.
func (c *Client) GetUnitState(ctx context.Context, unitID string) (model.Unit, bool, error) {
	key := UnitStateKey(unitID)
	fields, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		metrics.RecordCacheError("hgetall")
		return model.Unit{}, false, fmt.Errorf("cache unit state %s: %w", key, err)
	}
	if len(fields) == 0 {
		metrics.RecordCacheMiss("unit")
		return model.Unit{}, false, nil
	}
	metrics.RecordCacheHit("unit")

	var u model.Unit
	u.UnitID, err = uuid.Parse(unitID)
	if err != nil {
		return model.Unit{}, false, fmt.Errorf("cache unit state %s: bad unit id: %w", key, err)
	}
	u.ConvoyID, _ = uuid.Parse(fields["convoy_id"])
	u.Callsign = fields["callsign"]
	u.Status = model.UnitStatus(fields["status"])
	u.Position.Latitude, _ = strconv.ParseFloat(fields["lat"], 64)
	u.Position.Longitude, _ = strconv.ParseFloat(fields["lon"], 64)
	u.Position.AltitudeM, _ = strconv.ParseFloat(fields["alt_m"], 64)
	hdg, _ := strconv.ParseFloat(fields["heading_deg"], 32)
	u.Position.HeadingDeg = float32(hdg)
	spd, _ := strconv.ParseFloat(fields["speed_mps"], 32)
	u.Position.SpeedMPS = float32(spd)
	fuel, _ := strconv.ParseFloat(fields["fuel_pct"], 32)
	u.FuelPct = float32(fuel)
	u.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return u, true, nil
}

// AddToRoster registers a unit in its convoy's membership set.
func (c *Client) AddToRoster(ctx context.Context, convoyID, unitID string) error {
	key := RosterKey(convoyID)
	pipe := c.rdb.TxPipeline()
	pipe.SAdd(ctx, key, unitID)
	pipe.Expire(ctx, key, c.ttl.Roster)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordCacheError("sadd")
		return fmt.Errorf("cache roster %s: %w", key, err)
	}
	return nil
}

// RemoveFromRoster drops a unit from its convoy's membership set.
func (c *Client) RemoveFromRoster(ctx context.Context, convoyID, unitID string) error {
	if err := c.rdb.SRem(ctx, RosterKey(convoyID), unitID).Err(); err != nil {
		metrics.RecordCacheError("srem")
		return fmt.Errorf("cache roster srem: %w", err)
	}
	return nil
}

// Roster returns the cached convoy membership. Empty with ok=false means
// the set is absent, not that the convoy has no units.
func (c *Client) Roster(ctx context.Context, convoyID string) ([]uuid.UUID, bool, error) {
	key := RosterKey(convoyID)
	members, err := c.rdb.SMembers(ctx, key).Result()
	if err != nil {
		metrics.RecordCacheError("smembers")
		return nil, false, fmt.Errorf("cache roster %s: %w", key, err)
	}
	if len(members) == 0 {
		metrics.RecordCacheMiss("roster")
		return nil, false, nil
	}
	metrics.RecordCacheHit("roster")

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, true, nil
}

// SetLatestTelemetry stores the newest sample for a unit with the shortest
// TTL tier. Write-around persistence means this is refreshed only on read.
func (c *Client) SetLatestTelemetry(ctx context.Context, t model.Telemetry) error {
	return c.SetJSON(ctx, LatestTelemetryKey(t.UnitID.String()), t, c.ttl.Telemetry)
}

// GetLatestTelemetry reads the newest cached sample for a unit.
func (c *Client) GetLatestTelemetry(ctx context.Context, unitID string) (model.Telemetry, bool, error) {
	var t model.Telemetry
	ok, err := c.GetJSON(ctx, LatestTelemetryKey(unitID), &t)
	return t, ok, err
}
