// Package invalidation keeps cached keys honest after writes. The
// repository refreshes the keys it wrote; this package evicts the derived
// keys a change makes stale, driven by change notifications.
package invalidation

import (
	"github.com/tkhorram/convoytrack/internal/adapters/cache"
	"github.com/tkhorram/convoytrack/internal/domain/types"
)

// Rule describes what one entity kind's changes invalidate.
type Rule struct {
	// Keys lists the derived cache keys to evict for a notification.
	Keys func(n types.Notification) []string

	// ConvoyScope evicts every convoy-level key when a delete arrives,
	// covering roster-membership changes in one sweep.
	ConvoyScope bool
}

// Policy maps entity kinds to rules. The table is data, not code: swapping
// a rule never touches the coordinator loop.
type Policy map[types.EntityKind]Rule

// DefaultPolicy returns the stock table.
//
// Leaderboard notifications evict only the convoy summary: the ranked
// structure itself was refreshed by the score set that emitted the
// notification, and evicting it here would throw that work away.
func DefaultPolicy() Policy {
	return Policy{
		types.KindConvoy: {
			Keys: func(n types.Notification) []string { return nil },
		},
		types.KindUnit: {
			Keys: func(n types.Notification) []string {
				return []string{cache.ConvoySummaryKey(n.ConvoyID.String())}
			},
			ConvoyScope: true,
		},
		types.KindWaypoint: {
			// Route progress moves the unit's current-waypoint field.
			Keys: func(n types.Notification) []string {
				return []string{cache.UnitStateKey(n.ID.String())}
			},
		},
		types.KindTelemetry: {
			// A fresh sample supersedes the cached position snapshot.
			Keys: func(n types.Notification) []string {
				return []string{cache.UnitStateKey(n.ID.String())}
			},
		},
		types.KindEngagement: {
			Keys: func(n types.Notification) []string {
				return []string{cache.ConvoySummaryKey(n.ConvoyID.String())}
			},
		},
		types.KindLeaderboard: {
			Keys: func(n types.Notification) []string {
				return []string{cache.ConvoySummaryKey(n.ConvoyID.String())}
			},
		},
	}
}

// KeysFor resolves the eviction set for one notification. Unknown kinds
// evict nothing.
func (p Policy) KeysFor(n types.Notification) []string {
	rule, ok := p[n.Kind]
	if !ok || rule.Keys == nil {
		return nil
	}
	return rule.Keys(n)
}

// ConvoyScoped reports whether a notification triggers bulk convoy-level
// eviction.
func (p Policy) ConvoyScoped(n types.Notification) bool {
	rule, ok := p[n.Kind]
	return ok && rule.ConvoyScope && n.Op == types.OpDelete
}
