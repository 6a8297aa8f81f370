package cache

import (
	"time"

	"github.com/tkhorram/convoytrack/internal/domain/types"
)

// TTL holds the expiry tier per cached entity class. Tier assignment is a
// static policy keyed by entity kind; operators override it through config,
// never through code.
type TTL struct {
	Telemetry       time.Duration
	UnitState       time.Duration
	ConvoySummary   time.Duration
	Leaderboard     time.Duration
	EngagementStats time.Duration
	Roster          time.Duration
}

// DefaultTTL returns the stock tier table: sub-10s for per-tick telemetry
// snapshots, tens of seconds for derived state, minutes for aggregates,
// hour-scale for slowly-changing membership.
func DefaultTTL() TTL {
	return TTL{
		Telemetry:       10 * time.Second,
		UnitState:       60 * time.Second,
		ConvoySummary:   120 * time.Second,
		Leaderboard:     300 * time.Second,
		EngagementStats: 300 * time.Second,
		Roster:          3600 * time.Second,
	}
}

// For maps an entity kind to its tier.
func (t TTL) For(kind string) time.Duration {
	switch types.EntityKind(kind) {
	case types.KindTelemetry:
		return t.Telemetry
	case types.KindUnit:
		return t.UnitState
	case types.KindConvoy:
		return t.ConvoySummary
	case types.KindLeaderboard:
		return t.Leaderboard
	case types.KindEngagement:
		return t.EngagementStats
	case types.KindWaypoint:
		return t.UnitState
	default:
		return t.UnitState
	}
}
