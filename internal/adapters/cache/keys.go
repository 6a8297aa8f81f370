package cache

import "fmt"

// Cache key namespace: hierarchical {domain}:{entity}:{id}[:{attribute}]
// strings. Key construction lives here so the invalidation coordinator and
// the strategies never disagree on spelling.

func ConvoySummaryKey(convoyID string) string { return fmt.Sprintf("convoy:summary:%s", convoyID) }

func RosterKey(convoyID string) string { return fmt.Sprintf("convoy:roster:%s", convoyID) }

func LeaderboardKey(convoyID string) string { return fmt.Sprintf("convoy:leaderboard:%s", convoyID) }

func UnitStateKey(unitID string) string { return fmt.Sprintf("unit:state:%s", unitID) }

func RouteKey(unitID string) string { return fmt.Sprintf("waypoints:route:%s", unitID) }

func LatestTelemetryKey(unitID string) string { return fmt.Sprintf("telemetry:latest:%s", unitID) }

func EngagementStatsKey(unitID string) string { return fmt.Sprintf("stats:engagements:%s", unitID) }
