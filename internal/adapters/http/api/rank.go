package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// RankHandler handles single-unit rank requests.
type RankHandler struct {
	deps Dependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps Dependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

type rankResponse struct {
	ConvoyID string `json:"convoy_id"`
	UnitID   string `json:"unit_id"`
	Rank     int    `json:"rank"`
}

// HandleGetRank handles GET /rank/{convoy_id}/{unit_id} requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/rank/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	convoyID, err := uuid.Parse(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	unitID, err := uuid.Parse(parts[1])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	rank, err := h.deps.UnitRank(r.Context(), convoyID, unitID)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{
		ConvoyID: convoyID.String(),
		UnitID:   unitID.String(),
		Rank:     rank,
	})
}
