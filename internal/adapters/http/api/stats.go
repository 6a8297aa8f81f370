package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// StatsProvider exposes the tracker's runtime counters: lifecycle state,
// notification queue length, reconcile backlog and dedupe occupancy.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves the runtime counter snapshot.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats requests. The snapshot is point-in-time;
// intermediaries must not cache it.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	stats := h.provider.GetStats()
	stats["reported_at"] = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(stats)
}
