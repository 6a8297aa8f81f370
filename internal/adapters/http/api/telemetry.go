package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tkhorram/convoytrack/internal/domain/model"
)

// telemetryRequest mirrors the wire schema for POST /telemetry.
type telemetryRequest struct {
	UnitID     string  `json:"unit_id"`
	RecordedAt string  `json:"recorded_at"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lon"`
	AltitudeM  float64 `json:"alt_m"`
	HeadingDeg float32 `json:"heading_deg"`
	SpeedMPS   float32 `json:"speed_mps"`
	FuelPct    float32 `json:"fuel_pct"`
}

func (t telemetryRequest) toModel() (model.Telemetry, error) {
	if strings.TrimSpace(t.UnitID) == "" {
		return model.Telemetry{}, errors.New("missing unit_id")
	}
	unitID, err := uuid.Parse(t.UnitID)
	if err != nil {
		return model.Telemetry{}, errors.New("invalid unit_id")
	}
	recordedAt := time.Now().UTC()
	if t.RecordedAt != "" {
		if recordedAt, err = time.Parse(time.RFC3339, t.RecordedAt); err != nil {
			return model.Telemetry{}, errors.New("invalid recorded_at; must be RFC3339")
		}
	}
	return model.Telemetry{
		UnitID:     unitID,
		RecordedAt: recordedAt,
		Position: model.Coordinates{
			Latitude:   t.Latitude,
			Longitude:  t.Longitude,
			AltitudeM:  t.AltitudeM,
			HeadingDeg: t.HeadingDeg,
			SpeedMPS:   t.SpeedMPS,
		},
		VelocityMPS: t.SpeedMPS,
		FuelPct:     t.FuelPct,
	}, nil
}

// TelemetryHandler handles telemetry ingest and latest-sample reads.
type TelemetryHandler struct {
	deps Dependencies
}

// NewTelemetryHandler creates a new telemetry handler.
func NewTelemetryHandler(deps Dependencies) *TelemetryHandler {
	return &TelemetryHandler{deps: deps}
}

// HandlePostTelemetry handles POST /telemetry requests.
func (h *TelemetryHandler) HandlePostTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req telemetryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	t, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.deps.RecordTelemetry(r.Context(), t); err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

// HandleGetLatest handles GET /telemetry/{unit_id}/latest requests.
func (h *TelemetryHandler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/telemetry/")
	unitStr, ok := strings.CutSuffix(path, "/latest")
	if !ok || unitStr == "" || strings.Contains(unitStr, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	unitID, err := uuid.Parse(unitStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	t, err := h.deps.LatestTelemetry(r.Context(), unitID)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, telemetryResponse{
		UnitID:     t.UnitID.String(),
		RecordedAt: t.RecordedAt.Format(time.RFC3339Nano),
		Latitude:   t.Position.Latitude,
		Longitude:  t.Position.Longitude,
		AltitudeM:  t.Position.AltitudeM,
		HeadingDeg: t.Position.HeadingDeg,
		SpeedMPS:   t.Position.SpeedMPS,
		FuelPct:    t.FuelPct,
	})
}

type telemetryResponse struct {
	UnitID     string  `json:"unit_id"`
	RecordedAt string  `json:"recorded_at"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lon"`
	AltitudeM  float64 `json:"alt_m"`
	HeadingDeg float32 `json:"heading_deg"`
	SpeedMPS   float32 `json:"speed_mps"`
	FuelPct    float32 `json:"fuel_pct"`
}
