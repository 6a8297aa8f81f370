package durable

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/tkhorram/convoytrack/internal/domain/model"
)

// Row types mirror the durable table layout. Primary keys are chosen so
// the hot queries are single-partition scans: units cluster under their
// convoy, telemetry under (unit, hourly bucket), engagements under convoy
// in reverse time order.

type convoyRow struct {
	bun.BaseModel `bun:"table:convoys,alias:c"`

	ConvoyID uuid.UUID `bun:"convoy_id,pk,type:uuid"`
	Callsign string    `bun:"callsign,notnull"`
	Mission  string    `bun:"mission,notnull"`
	Status   string    `bun:"status,notnull"`

	CreatedAt    time.Time  `bun:"created_at,notnull"`
	MissionStart *time.Time `bun:"mission_start,nullzero"`
	MissionEnd   *time.Time `bun:"mission_end,nullzero"`

	AORName     string  `bun:"aor_name"`
	AORLat      float64 `bun:"aor_lat"`
	AORLon      float64 `bun:"aor_lon"`
	AORRadiusKM float32 `bun:"aor_radius_km"`

	CommandingUnit string      `bun:"commanding_unit"`
	UnitIDs        []uuid.UUID `bun:"unit_ids,array,type:uuid[]"`
	UnitCount      int16       `bun:"unit_count"`
}

type unitRow struct {
	bun.BaseModel `bun:"table:units,alias:u"`

	ConvoyID uuid.UUID `bun:"convoy_id,pk,type:uuid"`
	UnitID   uuid.UUID `bun:"unit_id,pk,type:uuid"`

	TailNumber string `bun:"tail_number"`
	Callsign   string `bun:"callsign,notnull"`
	Platform   string `bun:"platform"`

	Status     string  `bun:"status,notnull"`
	Lat        float64 `bun:"lat"`
	Lon        float64 `bun:"lon"`
	AltM       float64 `bun:"alt_m"`
	HeadingDeg float32 `bun:"heading_deg"`
	SpeedMPS   float32 `bun:"speed_mps"`

	FuelPct      float32 `bun:"fuel_pct"`
	FlightTimeHr float32 `bun:"flight_time_hr"`

	TotalEngagements int64 `bun:"total_engagements,notnull,default:0"`
	SuccessfulHits   int64 `bun:"successful_hits,notnull,default:0"`
	CurrentStreak    int32 `bun:"current_streak,notnull,default:0"`
	BestStreak       int32 `bun:"best_streak,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type waypointRow struct {
	bun.BaseModel `bun:"table:waypoints,alias:w"`

	UnitID uuid.UUID `bun:"unit_id,pk,type:uuid"`
	Seq    int16     `bun:"seq,pk"`
	WPID   uuid.UUID `bun:"wp_id,type:uuid,notnull"`

	Name       string  `bun:"name"`
	Kind       string  `bun:"kind,notnull"`
	Lat        float64 `bun:"lat"`
	Lon        float64 `bun:"lon"`
	AltM       float64 `bun:"alt_m"`
	Status     string  `bun:"status,notnull"`
	PlannedAt  *time.Time `bun:"planned_at,nullzero"`
	ArrivedAt  *time.Time `bun:"arrived_at,nullzero"`
	DepartedAt *time.Time `bun:"departed_at,nullzero"`
}

type telemetryRow struct {
	bun.BaseModel `bun:"table:telemetry,alias:t"`

	UnitID     uuid.UUID `bun:"unit_id,pk,type:uuid"`
	TimeBucket string    `bun:"time_bucket,pk"`
	RecordedAt time.Time `bun:"recorded_at,pk"`

	Lat        float64 `bun:"lat"`
	Lon        float64 `bun:"lon"`
	AltM       float64 `bun:"alt_m"`
	HeadingDeg float32 `bun:"heading_deg"`
	SpeedMPS   float32 `bun:"speed_mps"`

	VelocityMPS float32 `bun:"velocity_mps"`
	FuelPct     float32 `bun:"fuel_pct"`

	CurrentWaypoint  int16   `bun:"current_waypoint"`
	DistanceToNextKM float32 `bun:"distance_to_next_km"`

	EngineRPM   int32   `bun:"engine_rpm"`
	EngineTempC float32 `bun:"engine_temp_c"`
	BatteryV    float32 `bun:"battery_v"`

	LinkQuality float32 `bun:"link_quality"`
}

type engagementRow struct {
	bun.BaseModel `bun:"table:engagements,alias:e"`

	ConvoyID     uuid.UUID `bun:"convoy_id,pk,type:uuid"`
	EngagedAt    time.Time `bun:"engaged_at,pk"`
	EngagementID uuid.UUID `bun:"engagement_id,pk,type:uuid"`

	UnitID       uuid.UUID `bun:"unit_id,type:uuid,notnull"`
	UnitCallsign string    `bun:"unit_callsign"`

	Weapon     string    `bun:"weapon,notnull"`
	TargetID   uuid.UUID `bun:"target_id,type:uuid"`
	TargetKind string    `bun:"target_kind"`

	Hit          bool    `bun:"hit,notnull"`
	RangeToTgtKM float32 `bun:"range_to_tgt_km"`
	ShooterLat   float64 `bun:"shooter_lat"`
	ShooterLon   float64 `bun:"shooter_lon"`
	ShooterAltM  float64 `bun:"shooter_alt_m"`
}

// leaderboardRow is a durable projection of the ranked read; it exists so
// the ranked structure can be rebuilt after a cache loss without scanning
// every unit.
type leaderboardRow struct {
	bun.BaseModel `bun:"table:convoy_leaderboard,alias:lb"`

	ConvoyID uuid.UUID `bun:"convoy_id,pk,type:uuid"`
	UnitID   uuid.UUID `bun:"unit_id,pk,type:uuid"`
	Callsign string    `bun:"callsign"`

	AccuracyPct      float64 `bun:"accuracy_pct,notnull"`
	TotalEngagements int64   `bun:"total_engagements,notnull"`
	SuccessfulHits   int64   `bun:"successful_hits,notnull"`
	CurrentStreak    int32   `bun:"current_streak,notnull"`
	BestStreak       int32   `bun:"best_streak,notnull"`

	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func convoyToRow(c model.Convoy) convoyRow {
	return convoyRow{
		ConvoyID:       c.ConvoyID,
		Callsign:       c.Callsign,
		Mission:        string(c.Mission),
		Status:         string(c.Status),
		CreatedAt:      c.CreatedAt,
		MissionStart:   c.MissionStart,
		MissionEnd:     c.MissionEnd,
		AORName:        c.AORName,
		AORLat:         c.AORCenter.Latitude,
		AORLon:         c.AORCenter.Longitude,
		AORRadiusKM:    c.AORRadiusKM,
		CommandingUnit: c.CommandingUnit,
		UnitIDs:        c.UnitIDs,
		UnitCount:      c.UnitCount,
	}
}

func (r convoyRow) toDomain() model.Convoy {
	return model.Convoy{
		ConvoyID:       r.ConvoyID,
		Callsign:       r.Callsign,
		Mission:        model.MissionType(r.Mission),
		Status:         model.ConvoyStatus(r.Status),
		CreatedAt:      r.CreatedAt,
		MissionStart:   r.MissionStart,
		MissionEnd:     r.MissionEnd,
		AORName:        r.AORName,
		AORCenter:      model.Coordinates{Latitude: r.AORLat, Longitude: r.AORLon},
		AORRadiusKM:    r.AORRadiusKM,
		CommandingUnit: r.CommandingUnit,
		UnitIDs:        r.UnitIDs,
		UnitCount:      r.UnitCount,
	}
}

func unitToRow(u model.Unit) unitRow {
	return unitRow{
		ConvoyID:         u.ConvoyID,
		UnitID:           u.UnitID,
		TailNumber:       u.TailNumber,
		Callsign:         u.Callsign,
		Platform:         u.Platform,
		Status:           string(u.Status),
		Lat:              u.Position.Latitude,
		Lon:              u.Position.Longitude,
		AltM:             u.Position.AltitudeM,
		HeadingDeg:       u.Position.HeadingDeg,
		SpeedMPS:         u.Position.SpeedMPS,
		FuelPct:          u.FuelPct,
		FlightTimeHr:     u.FlightTimeHr,
		TotalEngagements: u.TotalEngagements,
		SuccessfulHits:   u.SuccessfulHits,
		CurrentStreak:    u.CurrentStreak,
		BestStreak:       u.BestStreak,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func (r unitRow) toDomain() model.Unit {
	return model.Unit{
		ConvoyID:   r.ConvoyID,
		UnitID:     r.UnitID,
		TailNumber: r.TailNumber,
		Callsign:   r.Callsign,
		Platform:   r.Platform,
		Status:     model.UnitStatus(r.Status),
		Position: model.Coordinates{
			Latitude:   r.Lat,
			Longitude:  r.Lon,
			AltitudeM:  r.AltM,
			HeadingDeg: r.HeadingDeg,
			SpeedMPS:   r.SpeedMPS,
		},
		FuelPct:          r.FuelPct,
		FlightTimeHr:     r.FlightTimeHr,
		TotalEngagements: r.TotalEngagements,
		SuccessfulHits:   r.SuccessfulHits,
		CurrentStreak:    r.CurrentStreak,
		BestStreak:       r.BestStreak,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func waypointToRow(w model.Waypoint) waypointRow {
	return waypointRow{
		UnitID:     w.UnitID,
		Seq:        w.Seq,
		WPID:       w.WPID,
		Name:       w.Name,
		Kind:       string(w.Kind),
		Lat:        w.Coords.Latitude,
		Lon:        w.Coords.Longitude,
		AltM:       w.Coords.AltitudeM,
		Status:     string(w.Status),
		PlannedAt:  w.Planned,
		ArrivedAt:  w.Arrived,
		DepartedAt: w.Left,
	}
}

func (r waypointRow) toDomain() model.Waypoint {
	return model.Waypoint{
		UnitID:  r.UnitID,
		Seq:     r.Seq,
		WPID:    r.WPID,
		Name:    r.Name,
		Kind:    model.WaypointKind(r.Kind),
		Coords:  model.Coordinates{Latitude: r.Lat, Longitude: r.Lon, AltitudeM: r.AltM},
		Status:  model.WaypointStatus(r.Status),
		Planned: r.PlannedAt,
		Arrived: r.ArrivedAt,
		Left:    r.DepartedAt,
	}
}

func telemetryToRow(t model.Telemetry) telemetryRow {
	return telemetryRow{
		UnitID:           t.UnitID,
		TimeBucket:       t.TimeBucket,
		RecordedAt:       t.RecordedAt,
		Lat:              t.Position.Latitude,
		Lon:              t.Position.Longitude,
		AltM:             t.Position.AltitudeM,
		HeadingDeg:       t.Position.HeadingDeg,
		SpeedMPS:         t.Position.SpeedMPS,
		VelocityMPS:      t.VelocityMPS,
		FuelPct:          t.FuelPct,
		CurrentWaypoint:  t.CurrentWaypoint,
		DistanceToNextKM: t.DistanceToNextKM,
		EngineRPM:        t.EngineRPM,
		EngineTempC:      t.EngineTempC,
		BatteryV:         t.BatteryV,
		LinkQuality:      t.LinkQuality,
	}
}

func (r telemetryRow) toDomain() model.Telemetry {
	return model.Telemetry{
		UnitID:     r.UnitID,
		TimeBucket: r.TimeBucket,
		RecordedAt: r.RecordedAt,
		Position: model.Coordinates{
			Latitude:   r.Lat,
			Longitude:  r.Lon,
			AltitudeM:  r.AltM,
			HeadingDeg: r.HeadingDeg,
			SpeedMPS:   r.SpeedMPS,
		},
		VelocityMPS:      r.VelocityMPS,
		FuelPct:          r.FuelPct,
		CurrentWaypoint:  r.CurrentWaypoint,
		DistanceToNextKM: r.DistanceToNextKM,
		EngineRPM:        r.EngineRPM,
		EngineTempC:      r.EngineTempC,
		BatteryV:         r.BatteryV,
		LinkQuality:      r.LinkQuality,
	}
}

func engagementToRow(e model.Engagement) engagementRow {
	return engagementRow{
		ConvoyID:     e.ConvoyID,
		EngagedAt:    e.EngagedAt,
		EngagementID: e.EngagementID,
		UnitID:       e.UnitID,
		UnitCallsign: e.UnitCallsign,
		Weapon:       string(e.Weapon),
		TargetID:     e.TargetID,
		TargetKind:   string(e.TargetKind),
		Hit:          e.Hit,
		RangeToTgtKM: e.RangeToTgtKM,
		ShooterLat:   e.ShooterCoords.Latitude,
		ShooterLon:   e.ShooterCoords.Longitude,
		ShooterAltM:  e.ShooterCoords.AltitudeM,
	}
}

func (r engagementRow) toDomain() model.Engagement {
	return model.Engagement{
		ConvoyID:     r.ConvoyID,
		EngagedAt:    r.EngagedAt,
		EngagementID: r.EngagementID,
		UnitID:       r.UnitID,
		UnitCallsign: r.UnitCallsign,
		Weapon:       model.WeaponType(r.Weapon),
		TargetID:     r.TargetID,
		TargetKind:   model.TargetKind(r.TargetKind),
		Hit:          r.Hit,
		RangeToTgtKM: r.RangeToTgtKM,
		ShooterCoords: model.Coordinates{
			Latitude:  r.ShooterLat,
			Longitude: r.ShooterLon,
			AltitudeM: r.ShooterAltM,
		},
	}
}

func leaderboardToRow(e model.LeaderboardEntry) leaderboardRow {
	return leaderboardRow{
		ConvoyID:         e.ConvoyID,
		UnitID:           e.UnitID,
		Callsign:         e.Callsign,
		AccuracyPct:      e.AccuracyPct,
		TotalEngagements: e.TotalEngagements,
		SuccessfulHits:   e.SuccessfulHits,
		CurrentStreak:    e.CurrentStreak,
		BestStreak:       e.BestStreak,
		UpdatedAt:        e.UpdatedAt,
	}
}

func (r leaderboardRow) toDomain() model.LeaderboardEntry {
	return model.LeaderboardEntry{
		ConvoyID:         r.ConvoyID,
		UnitID:           r.UnitID,
		Callsign:         r.Callsign,
		AccuracyPct:      r.AccuracyPct,
		TotalEngagements: r.TotalEngagements,
		SuccessfulHits:   r.SuccessfulHits,
		CurrentStreak:    r.CurrentStreak,
		BestStreak:       r.BestStreak,
		UpdatedAt:        r.UpdatedAt,
	}
}
