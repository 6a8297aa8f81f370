// Package fleetsim drives a simulated convoy mission against a running
// tracker instance: it registers a convoy and roster, streams telemetry
// and engagements, then checks the resulting leaderboard against the
// locally-tracked outcomes.
package fleetsim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tkhorram/convoytrack/pkg/logger"
)

// Run executes the complete simulated mission.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting fleet simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("units", config.Units),
		logger.Int("engagements", config.Engagements),
		logger.Int("telemetryTicks", config.TelemetryTicks),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()))

	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	convoyID := uuid.New()
	profiles := generateProfiles(config.Units)

	if err := registerConvoy(ctx, config, convoyID, profiles); err != nil {
		return fmt.Errorf("convoy registration failed: %w", err)
	}

	if config.TelemetryTicks > 0 {
		ticks := generateTelemetry(profiles, config.TelemetryTicks)
		if err := submitTelemetry(ctx, config, ticks, stats); err != nil {
			return fmt.Errorf("telemetry submission failed: %w", err)
		}
	}

	engagements := generateEngagements(convoyID, profiles, config.Engagements)
	stats.EngagementsGenerated = len(engagements)
	if err := submitEngagements(ctx, config, engagements, stats); err != nil {
		return fmt.Errorf("engagement submission failed: %w", err)
	}

	logger.Get().Info(ctx, "waiting for updates to settle")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(config.SettleDelay):
	}

	leaderboard, err := fetchLeaderboard(ctx, config, convoyID.String(), stats)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	if err := verifyResults(ctx, profiles, leaderboard); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the tracker is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if _, err := readResponseBody(resp); err != nil {
		return fmt.Errorf("failed to read health response: %w", err)
	}
	if resp.StatusCode != statusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// registerConvoy creates the convoy and its simulated roster.
func registerConvoy(ctx context.Context, config *Config, convoyID uuid.UUID, profiles []*unitProfile) error {
	client := newHTTPClient(config.Timeout)

	convoy := map[string]string{
		"convoy_id": convoyID.String(),
		"callsign":  "SIMCON",
		"mission":   "STRIKE",
		"status":    "ACTIVE",
		"aor_name":  "SIM-RANGE",
	}
	resp, err := client.Post(ctx, config.BaseURL+"/convoys", convoy)
	if err != nil {
		return fmt.Errorf("failed to create convoy: %w", err)
	}
	if _, err := readResponseBody(resp); err != nil {
		return err
	}
	if resp.StatusCode != statusCreated {
		return fmt.Errorf("convoy creation failed with status %d", resp.StatusCode)
	}

	for _, p := range profiles {
		unit := map[string]string{
			"convoy_id": convoyID.String(),
			"unit_id":   p.UnitID.String(),
			"callsign":  p.Callsign,
			"platform":  "MQ-9",
			"status":    "AIRBORNE",
		}
		resp, err := client.Post(ctx, config.BaseURL+"/units", unit)
		if err != nil {
			return fmt.Errorf("failed to register unit %s: %w", p.Callsign, err)
		}
		if _, err := readResponseBody(resp); err != nil {
			return err
		}
		if resp.StatusCode != statusCreated {
			return fmt.Errorf("unit registration failed with status %d", resp.StatusCode)
		}
	}

	logger.Get().Info(ctx, "convoy registered",
		logger.String("convoyID", convoyID.String()),
		logger.Int("units", len(profiles)))
	return nil
}

// displayFinalStats prints the final run statistics.
func displayFinalStats(stats *Stats) {
	var appliedRate, engagementsPerSecond float64

	if stats.EngagementsSubmitted > 0 {
		appliedRate = float64(stats.EngagementsApplied) / float64(stats.EngagementsSubmitted) * 100
	}
	if stats.Duration > 0 {
		engagementsPerSecond = float64(stats.EngagementsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("engagementsGenerated", stats.EngagementsGenerated),
		logger.Int("engagementsSubmitted", stats.EngagementsSubmitted),
		logger.Int("engagementsApplied", stats.EngagementsApplied),
		logger.Int("engagementsDuplicate", stats.EngagementsDuplicate),
		logger.Int("engagementsFailed", stats.EngagementsFailed),
		logger.Int("telemetrySubmitted", stats.TelemetrySubmitted),
		logger.Int("telemetryFailed", stats.TelemetryFailed),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("appliedRate", appliedRate),
		logger.Float64("engagementsPerSecond", engagementsPerSecond))
}
