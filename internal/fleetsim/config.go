package fleetsim

import "time"

// Config holds configuration for a simulated mission run.
type Config struct {
	BaseURL        string        // Base URL of the tracker service
	Units          int           // Number of units in the simulated convoy
	Engagements    int           // Number of engagements to generate
	TelemetryTicks int           // Telemetry samples per unit
	TopN           int           // Number of leaderboard entries to fetch
	Workers        int           // Number of concurrent submitters
	Timeout        time.Duration // HTTP request timeout
	SettleDelay    time.Duration // Wait between submission and verification
	LogFile        string        // Log file for run output
	Verbose        bool          // Enable verbose logging
}

// engagementPayload mirrors the wire schema for POST /engagements.
type engagementPayload struct {
	EngagementID string `json:"engagement_id"`
	ConvoyID     string `json:"convoy_id"`
	UnitID       string `json:"unit_id"`
	Weapon       string `json:"weapon"`
	TargetKind   string `json:"target_kind"`
	Hit          bool   `json:"hit"`
	EngagedAt    string `json:"engaged_at"`
}

// telemetryPayload mirrors the wire schema for POST /telemetry.
type telemetryPayload struct {
	UnitID     string  `json:"unit_id"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lon"`
	AltitudeM  float64 `json:"alt_m"`
	HeadingDeg float32 `json:"heading_deg"`
	SpeedMPS   float32 `json:"speed_mps"`
	FuelPct    float32 `json:"fuel_pct"`
}

// leaderboardRow mirrors the read shape returned by GET /leaderboard.
type leaderboardRow struct {
	Rank        int     `json:"rank"`
	UnitID      string  `json:"unit_id"`
	AccuracyPct float64 `json:"accuracy_pct"`
}

// ackResponse mirrors the engagement acknowledgement shape.
type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds run statistics.
type Stats struct {
	EngagementsGenerated int
	EngagementsSubmitted int
	EngagementsApplied   int
	EngagementsDuplicate int
	EngagementsFailed    int
	TelemetrySubmitted   int
	TelemetryFailed      int
	LeaderboardEntries   int
	StartTime            time.Time
	EndTime              time.Time
	Duration             time.Duration
}
