// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/tkhorram/convoytrack/internal/domain/model"
	"github.com/tkhorram/convoytrack/internal/domain/types"
	"github.com/tkhorram/convoytrack/internal/repository"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the repository.
type Dependencies interface {
	PutConvoy(ctx context.Context, c model.Convoy) error
	Convoy(ctx context.Context, convoyID uuid.UUID) (model.Convoy, error)
	Roster(ctx context.Context, convoyID uuid.UUID) ([]uuid.UUID, error)
	PutUnit(ctx context.Context, u model.Unit) error
	ProcessEngagement(ctx context.Context, e model.Engagement) (types.EngagementResult, error)
	RecordTelemetry(ctx context.Context, t model.Telemetry) error
	LatestTelemetry(ctx context.Context, unitID uuid.UUID) (model.Telemetry, error)
	Leaderboard(ctx context.Context, convoyID uuid.UUID, n int) ([]types.LeaderboardRow, error)
	UnitRank(ctx context.Context, convoyID, unitID uuid.UUID) (int, error)
	UnitState(ctx context.Context, unitID uuid.UUID) (model.Unit, error)
	AccuracyStats(ctx context.Context, unitID uuid.UUID) (model.AccuracyStats, error)
}

// Server wires HTTP routes for the tracker API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	engagementsHandler *EngagementsHandler
	telemetryHandler   *TelemetryHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	unitsHandler       *UnitsHandler
	convoysHandler     *ConvoysHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		engagementsHandler: NewEngagementsHandler(deps),
		telemetryHandler:   NewTelemetryHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, defaultMaxLimit),
		rankHandler:        NewRankHandler(deps),
		unitsHandler:       NewUnitsHandler(deps),
		convoysHandler:     NewConvoysHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/engagements", MetricsMiddleware(s.engagementsHandler.HandlePostEngagement, "engagements"))
	mux.HandleFunc("/telemetry", MetricsMiddleware(s.telemetryHandler.HandlePostTelemetry, "telemetry"))
	mux.HandleFunc("/telemetry/", MetricsMiddleware(s.telemetryHandler.HandleGetLatest, "telemetry_latest"))
	mux.HandleFunc("/leaderboard/", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/units", MetricsMiddleware(s.convoysHandler.HandlePostUnit, "units"))
	mux.HandleFunc("/units/", MetricsMiddleware(s.unitsHandler.HandleGetUnit, "units"))
	mux.HandleFunc("/convoys", MetricsMiddleware(s.convoysHandler.HandlePostConvoy, "convoys"))
	mux.HandleFunc("/convoys/", MetricsMiddleware(s.convoysHandler.HandleGetConvoy, "convoys"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeRepoError translates repository error classes to HTTP statuses.
func writeRepoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, repository.ErrTransient):
		writeError(w, http.StatusServiceUnavailable, "transient", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
