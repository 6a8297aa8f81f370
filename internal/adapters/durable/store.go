// Package durable is the system-of-record adapter. It owns every entity's
// authoritative copy; the cache only ever holds derived snapshots of what
// lives here. Two implementations exist: a Postgres-backed store for
// production and a mutex-guarded in-memory store for tests and local runs.
package durable

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tkhorram/convoytrack/internal/domain/model"
)

// ErrNotFound reports an absent row. Callers map it to their own taxonomy;
// it never wraps a transport failure.
var ErrNotFound = errors.New("durable: not found")

// ConvoyStore persists mission-level groupings.
type ConvoyStore interface {
	GetConvoy(ctx context.Context, convoyID uuid.UUID) (model.Convoy, error)
	PutConvoy(ctx context.Context, c model.Convoy) error
	DeleteConvoy(ctx context.Context, convoyID uuid.UUID) error
	ListConvoys(ctx context.Context) ([]model.Convoy, error)
}

// UnitStore persists units and owns the accuracy counters.
type UnitStore interface {
	GetUnit(ctx context.Context, convoyID, unitID uuid.UUID) (model.Unit, error)
	// FindUnit locates a unit when the convoy is not known to the caller.
	FindUnit(ctx context.Context, unitID uuid.UUID) (model.Unit, error)
	PutUnit(ctx context.Context, u model.Unit) error
	DeleteUnit(ctx context.Context, convoyID, unitID uuid.UUID) error
	UnitsByConvoy(ctx context.Context, convoyID uuid.UUID) ([]model.Unit, error)

	// IncrementCounters advances a unit's engagement counters in one
	// indivisible statement and returns the post-increment totals. A miss
	// increments total only and resets the current streak; a hit extends it
	// and folds it into the best streak.
	IncrementCounters(ctx context.Context, convoyID, unitID uuid.UUID, hit bool) (model.AccuracyStats, error)
}

// WaypointStore persists per-unit routes.
type WaypointStore interface {
	PutWaypoints(ctx context.Context, wps []model.Waypoint) error
	Route(ctx context.Context, unitID uuid.UUID) ([]model.Waypoint, error)
	// MarkWaypoint moves one route point through its lifecycle.
	MarkWaypoint(ctx context.Context, unitID uuid.UUID, seq int16, status model.WaypointStatus) error
}

// TelemetryStore persists append-only samples, partitioned hourly.
type TelemetryStore interface {
	InsertTelemetry(ctx context.Context, t model.Telemetry) error
	InsertTelemetryBatch(ctx context.Context, ts []model.Telemetry) error
	LatestTelemetry(ctx context.Context, unitID uuid.UUID) (model.Telemetry, error)
	// TelemetryRange scans every hourly bucket the range touches, returning
	// samples oldest first.
	TelemetryRange(ctx context.Context, unitID uuid.UUID, r model.TimeRange) ([]model.Telemetry, error)
	// PruneTelemetryBefore drops every sample recorded before the cutoff
	// and reports how many rows were removed.
	PruneTelemetryBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EngagementStore persists immutable engagement facts.
type EngagementStore interface {
	InsertEngagement(ctx context.Context, e model.Engagement) error
	EngagementsByConvoy(ctx context.Context, convoyID uuid.UUID, limit int) ([]model.Engagement, error)
	EngagementsByUnit(ctx context.Context, unitID uuid.UUID, limit int) ([]model.Engagement, error)
}

// LeaderboardStore persists the durable ranking projection used to rebuild
// the cached ranked structure.
type LeaderboardStore interface {
	UpsertLeaderboardEntry(ctx context.Context, e model.LeaderboardEntry) error
	// LeaderboardEntries returns the convoy's projection ordered by accuracy
	// descending, unit identity ascending within a tie.
	LeaderboardEntries(ctx context.Context, convoyID uuid.UUID) ([]model.LeaderboardEntry, error)
	DeleteLeaderboardEntry(ctx context.Context, convoyID, unitID uuid.UUID) error
}

// Store is the full durable surface the repository is built on.
type Store interface {
	ConvoyStore
	UnitStore
	WaypointStore
	TelemetryStore
	EngagementStore
	LeaderboardStore

	Ping(ctx context.Context) error
	Close() error
}
