package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tkhorram/convoytrack/internal/domain/model"
	"github.com/tkhorram/convoytrack/internal/repository"
)

// engagementRequest mirrors the wire schema for POST /engagements.
type engagementRequest struct {
	EngagementID string  `json:"engagement_id"`
	ConvoyID     string  `json:"convoy_id"`
	UnitID       string  `json:"unit_id"`
	Weapon       string  `json:"weapon"`
	TargetID     string  `json:"target_id"`
	TargetKind   string  `json:"target_kind"`
	Hit          bool    `json:"hit"`
	RangeToTgtKM float32 `json:"range_to_tgt_km"`
	EngagedAt    string  `json:"engaged_at"`
}

func (e engagementRequest) validate() error {
	switch {
	case strings.TrimSpace(e.EngagementID) == "":
		return errors.New("missing engagement_id")
	case strings.TrimSpace(e.ConvoyID) == "":
		return errors.New("missing convoy_id")
	case strings.TrimSpace(e.UnitID) == "":
		return errors.New("missing unit_id")
	}
	if e.EngagedAt != "" {
		if _, err := time.Parse(time.RFC3339, e.EngagedAt); err != nil {
			return errors.New("invalid engaged_at; must be RFC3339")
		}
	}
	return nil
}

func (e engagementRequest) toModel() (model.Engagement, error) {
	engagementID, err := uuid.Parse(e.EngagementID)
	if err != nil {
		return model.Engagement{}, errors.New("invalid engagement_id")
	}
	convoyID, err := uuid.Parse(e.ConvoyID)
	if err != nil {
		return model.Engagement{}, errors.New("invalid convoy_id")
	}
	unitID, err := uuid.Parse(e.UnitID)
	if err != nil {
		return model.Engagement{}, errors.New("invalid unit_id")
	}
	engagedAt := time.Now().UTC()
	if e.EngagedAt != "" {
		engagedAt, _ = time.Parse(time.RFC3339, e.EngagedAt)
	}
	m := model.Engagement{
		EngagementID: engagementID,
		ConvoyID:     convoyID,
		UnitID:       unitID,
		Weapon:       model.WeaponType(e.Weapon),
		TargetKind:   model.TargetKind(e.TargetKind),
		Hit:          e.Hit,
		RangeToTgtKM: e.RangeToTgtKM,
		EngagedAt:    engagedAt,
	}
	if e.TargetID != "" {
		if m.TargetID, err = uuid.Parse(e.TargetID); err != nil {
			return model.Engagement{}, errors.New("invalid target_id")
		}
	}
	return m, nil
}

// EngagementsHandler handles engagement submissions.
type EngagementsHandler struct {
	deps Dependencies
}

// NewEngagementsHandler creates a new engagements handler.
func NewEngagementsHandler(deps Dependencies) *EngagementsHandler {
	return &EngagementsHandler{deps: deps}
}

// HandlePostEngagement handles POST /engagements requests. A replayed
// engagement id is acknowledged as a duplicate without re-applying its
// effects. An update whose durable half committed but whose cache half
// could not be brought in line is acknowledged as accepted; the
// reconciler finishes it.
func (h *EngagementsHandler) HandlePostEngagement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req engagementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	e, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	res, err := h.deps.ProcessEngagement(r.Context(), e)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		case errors.Is(err, repository.ErrInconsistent):
			writeJSON(w, http.StatusAccepted, res)
		default:
			writeRepoError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}
