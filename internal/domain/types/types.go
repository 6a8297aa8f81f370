// Package types contains common types used across the application
package types

import (
	"time"

	"github.com/google/uuid"
)

// EntityKind names each entity the repository manages. Strategy selection
// and invalidation policy both key off it.
type EntityKind string

const (
	KindConvoy      EntityKind = "convoy"
	KindUnit        EntityKind = "unit"
	KindWaypoint    EntityKind = "waypoint"
	KindTelemetry   EntityKind = "telemetry"
	KindEngagement  EntityKind = "engagement"
	KindLeaderboard EntityKind = "leaderboard"
)

// ChangeOp is the mutation class carried by a change notification.
type ChangeOp string

const (
	OpCreate ChangeOp = "create"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// Notification is published after every successful write and consumed by
// the invalidation coordinator (and optionally by subscription push).
type Notification struct {
	Kind      EntityKind `json:"entity_kind"`
	ConvoyID  uuid.UUID  `json:"convoy_id"`
	ID        uuid.UUID  `json:"id"`
	Op        ChangeOp   `json:"op"`
	Timestamp time.Time  `json:"timestamp"`
}

// EngagementResult is returned by the atomic leaderboard update.
type EngagementResult struct {
	// Success is the outcome of the update, not of the engagement. A
	// recorded miss still reports true.
	Success     bool    `json:"success"`
	NewRank     int     `json:"new_rank"`
	RankDelta   int     `json:"rank_delta"`
	AccuracyPct float64 `json:"new_accuracy_pct"`
}

// LeaderboardRow mirrors the read shape returned by ranked queries.
type LeaderboardRow struct {
	Rank        int       `json:"rank"`
	UnitID      uuid.UUID `json:"unit_id"`
	AccuracyPct float64   `json:"accuracy_pct"`
}
