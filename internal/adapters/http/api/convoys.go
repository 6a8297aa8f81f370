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

// convoyRequest mirrors the wire schema for POST /convoys.
type convoyRequest struct {
	ConvoyID string `json:"convoy_id"`
	Callsign string `json:"callsign"`
	Mission  string `json:"mission"`
	Status   string `json:"status"`
	AORName  string `json:"aor_name"`
}

// unitRequest mirrors the wire schema for POST /units.
type unitRequest struct {
	ConvoyID   string  `json:"convoy_id"`
	UnitID     string  `json:"unit_id"`
	Callsign   string  `json:"callsign"`
	TailNumber string  `json:"tail_number"`
	Platform   string  `json:"platform"`
	Status     string  `json:"status"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lon"`
	AltitudeM  float64 `json:"alt_m"`
	FuelPct    float32 `json:"fuel_pct"`
}

// ConvoysHandler handles convoy and unit registration.
type ConvoysHandler struct {
	deps Dependencies
}

// NewConvoysHandler creates a new convoys handler.
func NewConvoysHandler(deps Dependencies) *ConvoysHandler {
	return &ConvoysHandler{deps: deps}
}

// HandlePostConvoy handles POST /convoys requests.
func (h *ConvoysHandler) HandlePostConvoy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req convoyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	convoyID, err := uuid.Parse(req.ConvoyID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("invalid convoy_id"))
		return
	}
	if strings.TrimSpace(req.Callsign) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing callsign"))
		return
	}
	status := model.ConvoyPlanning
	if req.Status != "" {
		status = model.ConvoyStatus(req.Status)
	}
	c := model.Convoy{
		ConvoyID:  convoyID,
		Callsign:  req.Callsign,
		Mission:   model.MissionType(req.Mission),
		Status:    status,
		AORName:   req.AORName,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.deps.PutConvoy(r.Context(), c); err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"convoy_id": convoyID.String()})
}

// HandleGetConvoy handles GET /convoys/{id} and GET /convoys/{id}/roster.
func (h *ConvoysHandler) HandleGetConvoy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/convoys/")
	idStr, wantRoster := strings.CutSuffix(path, "/roster")
	if idStr == "" || strings.Contains(idStr, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	convoyID, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	if wantRoster {
		ids, err := h.deps.Roster(r.Context(), convoyID)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"convoy_id": convoyID.String(), "unit_ids": ids})
		return
	}

	c, err := h.deps.Convoy(r.Context(), convoyID)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"convoy_id":  c.ConvoyID.String(),
		"callsign":   c.Callsign,
		"mission":    string(c.Mission),
		"status":     string(c.Status),
		"aor_name":   c.AORName,
		"unit_count": c.UnitCount,
	})
}

// HandlePostUnit handles POST /units requests.
func (h *ConvoysHandler) HandlePostUnit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req unitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	convoyID, err := uuid.Parse(req.ConvoyID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("invalid convoy_id"))
		return
	}
	unitID, err := uuid.Parse(req.UnitID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("invalid unit_id"))
		return
	}
	status := model.UnitPreflight
	if req.Status != "" {
		status = model.UnitStatus(req.Status)
	}
	u := model.Unit{
		ConvoyID:   convoyID,
		UnitID:     unitID,
		Callsign:   req.Callsign,
		TailNumber: req.TailNumber,
		Platform:   req.Platform,
		Status:     status,
		Position: model.Coordinates{
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			AltitudeM: req.AltitudeM,
		},
		FuelPct:   req.FuelPct,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.deps.PutUnit(r.Context(), u); err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"unit_id": unitID.String()})
}
