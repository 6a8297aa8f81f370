// Package model contains domain entities passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Convoy is a mission-level grouping of units. One durable partition per
// convoy; rarely mutated and destroyed at mission end.
type Convoy struct {
	ConvoyID uuid.UUID
	Callsign string
	Mission  MissionType
	Status   ConvoyStatus

	CreatedAt    time.Time
	MissionStart *time.Time
	MissionEnd   *time.Time

	// AOR (area of responsibility)
	AORName     string
	AORCenter   Coordinates
	AORRadiusKM float32

	CommandingUnit string

	UnitIDs   []uuid.UUID
	UnitCount int16
}

// Unit is a single mobile platform. Mutated on every telemetry tick and
// every engagement.
type Unit struct {
	ConvoyID uuid.UUID
	UnitID   uuid.UUID

	TailNumber string
	Callsign   string
	Platform   string

	Status       UnitStatus
	Position     Coordinates
	FuelPct      float32
	FlightTimeHr float32

	// Accuracy counters, owned by the leaderboard updater.
	TotalEngagements int64
	SuccessfulHits   int64
	CurrentStreak    int32
	BestStreak       int32

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Waypoint is an ordered route point bound to a unit. Immutable after
// mission start except for the completion marker.
type Waypoint struct {
	UnitID  uuid.UUID
	Seq     int16
	WPID    uuid.UUID
	Name    string
	Kind    WaypointKind
	Coords  Coordinates
	Status  WaypointStatus
	Planned *time.Time
	Arrived *time.Time
	Left    *time.Time
}

// Telemetry is an append-only time-stamped sample for a unit, partitioned
// by (unit, hourly bucket) to bound partition size.
type Telemetry struct {
	UnitID     uuid.UUID
	TimeBucket string
	RecordedAt time.Time

	Position    Coordinates
	VelocityMPS float32
	FuelPct     float32

	CurrentWaypoint  int16
	DistanceToNextKM float32

	EngineRPM   int32
	EngineTempC float32
	BatteryV    float32

	LinkQuality float32
}

// TimeBucket returns the hourly partition bucket for ts, formatted YYYYMMDDHH.
func TimeBucket(ts time.Time) string {
	return ts.UTC().Format("2006010215")
}

// Engagement is an immutable fact record. Append-only; recording one
// triggers a leaderboard update.
type Engagement struct {
	ConvoyID     uuid.UUID
	EngagedAt    time.Time
	EngagementID uuid.UUID

	UnitID       uuid.UUID
	UnitCallsign string

	Weapon     WeaponType
	TargetID   uuid.UUID
	TargetKind TargetKind

	Hit           bool
	RangeToTgtKM  float32
	ShooterCoords Coordinates
}

// LeaderboardEntry is derived from a unit's counters; it is never authored
// independently of them.
type LeaderboardEntry struct {
	ConvoyID uuid.UUID
	UnitID   uuid.UUID
	Callsign string

	AccuracyPct      float64
	TotalEngagements int64
	SuccessfulHits   int64
	CurrentStreak    int32
	BestStreak       int32

	Rank      int
	UpdatedAt time.Time
}

// AccuracyStats are the post-increment counter totals read back from the
// durable store in the atomic counter step.
type AccuracyStats struct {
	TotalEngagements int64
	SuccessfulHits   int64
	CurrentStreak    int32
	BestStreak       int32
}

// AccuracyPct derives the ranking score from the counters. Zero engagements
// rank at 0, never NaN.
func (s AccuracyStats) AccuracyPct() float64 {
	if s.TotalEngagements == 0 {
		return 0
	}
	return float64(s.SuccessfulHits) / float64(s.TotalEngagements) * 100
}

// TimeRange bounds telemetry scans.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Buckets lists every hourly bucket the range touches, oldest first.
func (r TimeRange) Buckets() []string {
	if r.End.Before(r.Start) {
		return nil
	}
	var out []string
	for t := r.Start.UTC().Truncate(time.Hour); !t.After(r.End.UTC()); t = t.Add(time.Hour) {
		out = append(out, TimeBucket(t))
	}
	return out
}
