package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UnitsHandler handles unit state and accuracy reads.
type UnitsHandler struct {
	deps Dependencies
}

// NewUnitsHandler creates a new units handler.
func NewUnitsHandler(deps Dependencies) *UnitsHandler {
	return &UnitsHandler{deps: deps}
}

type unitStateResponse struct {
	ConvoyID   string  `json:"convoy_id"`
	UnitID     string  `json:"unit_id"`
	Callsign   string  `json:"callsign"`
	Status     string  `json:"status"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lon"`
	AltitudeM  float64 `json:"alt_m"`
	HeadingDeg float32 `json:"heading_deg"`
	SpeedMPS   float32 `json:"speed_mps"`
	FuelPct    float32 `json:"fuel_pct"`
	UpdatedAt  string  `json:"updated_at"`
}

type unitStatsResponse struct {
	UnitID           string  `json:"unit_id"`
	TotalEngagements int64   `json:"total_engagements"`
	SuccessfulHits   int64   `json:"successful_hits"`
	CurrentStreak    int32   `json:"current_streak"`
	BestStreak       int32   `json:"best_streak"`
	AccuracyPct      float64 `json:"accuracy_pct"`
}

// HandleGetUnit handles GET /units/{unit_id} and GET /units/{unit_id}/stats.
func (h *UnitsHandler) HandleGetUnit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/units/")
	unitStr, wantStats := strings.CutSuffix(path, "/stats")
	if unitStr == "" || strings.Contains(unitStr, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	unitID, err := uuid.Parse(unitStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	if wantStats {
		h.handleStats(w, r, unitID)
		return
	}

	u, err := h.deps.UnitState(r.Context(), unitID)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unitStateResponse{
		ConvoyID:   u.ConvoyID.String(),
		UnitID:     u.UnitID.String(),
		Callsign:   u.Callsign,
		Status:     string(u.Status),
		Latitude:   u.Position.Latitude,
		Longitude:  u.Position.Longitude,
		AltitudeM:  u.Position.AltitudeM,
		HeadingDeg: u.Position.HeadingDeg,
		SpeedMPS:   u.Position.SpeedMPS,
		FuelPct:    u.FuelPct,
		UpdatedAt:  u.UpdatedAt.Format(time.RFC3339Nano),
	})
}

func (h *UnitsHandler) handleStats(w http.ResponseWriter, r *http.Request, unitID uuid.UUID) {
	stats, err := h.deps.AccuracyStats(r.Context(), unitID)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unitStatsResponse{
		UnitID:           unitID.String(),
		TotalEngagements: stats.TotalEngagements,
		SuccessfulHits:   stats.SuccessfulHits,
		CurrentStreak:    stats.CurrentStreak,
		BestStreak:       stats.BestStreak,
		AccuracyPct:      stats.AccuracyPct(),
	})
}
