package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tkhorram/convoytrack/internal/adapters/cache"
	"github.com/tkhorram/convoytrack/internal/adapters/durable"
	"github.com/tkhorram/convoytrack/internal/domain/dedupe"
	"github.com/tkhorram/convoytrack/internal/domain/model"
	"github.com/tkhorram/convoytrack/internal/repository"
	"github.com/tkhorram/convoytrack/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type stubStats struct{}

func (stubStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newTestMux(t *testing.T) (*http.ServeMux, *repository.Repository) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.New(context.Background(), cache.WithAddr(mr.Addr()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	repo, err := repository.New(c, durable.NewMemoryStore(),
		repository.WithDeduper(dedupe.NewInMemoryDeduper()),
	)
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewServer(repo, stubStats{}).Register(context.Background(), mux)
	return mux, repo
}

func seedUnit(t *testing.T, repo *repository.Repository, convoyID, unitID uuid.UUID) {
	t.Helper()
	require.NoError(t, repo.PutUnit(context.Background(), model.Unit{
		ConvoyID:  convoyID,
		UnitID:    unitID,
		Callsign:  "VIPER-1",
		Status:    model.UnitIngress,
		Position:  model.Coordinates{Latitude: 33.2, Longitude: 44.4, AltitudeM: 4500},
		FuelPct:   81.5,
		CreatedAt: time.Now().UTC(),
	}))
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := doJSON(t, mux, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPostEngagement(t *testing.T) {
	mux, repo := newTestMux(t)
	convoyID, unitID := uuid.New(), uuid.New()
	seedUnit(t, repo, convoyID, unitID)

	body := fmt.Sprintf(`{"engagement_id":%q,"convoy_id":%q,"unit_id":%q,"weapon":"AGM-114_HELLFIRE","hit":true}`,
		uuid.NewString(), convoyID, unitID)
	rec := doJSON(t, mux, http.MethodPost, "/engagements", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		NewRank     int     `json:"new_rank"`
		AccuracyPct float64 `json:"new_accuracy_pct"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, 1, res.NewRank)
	require.InDelta(t, 100.0, res.AccuracyPct, 1e-9)
}

func TestPostEngagementDuplicate(t *testing.T) {
	mux, repo := newTestMux(t)
	convoyID, unitID := uuid.New(), uuid.New()
	seedUnit(t, repo, convoyID, unitID)

	body := fmt.Sprintf(`{"engagement_id":%q,"convoy_id":%q,"unit_id":%q,"hit":true}`,
		uuid.NewString(), convoyID, unitID)
	require.Equal(t, http.StatusOK, doJSON(t, mux, http.MethodPost, "/engagements", body).Code)

	rec := doJSON(t, mux, http.MethodPost, "/engagements", body)
	require.Equal(t, http.StatusOK, rec.Code)
	var ack ackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	require.True(t, ack.Duplicate)
}

func TestPostEngagementUnknownUnit(t *testing.T) {
	mux, _ := newTestMux(t)
	body := fmt.Sprintf(`{"engagement_id":%q,"convoy_id":%q,"unit_id":%q,"hit":true}`,
		uuid.NewString(), uuid.NewString(), uuid.NewString())
	rec := doJSON(t, mux, http.MethodPost, "/engagements", body)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostEngagementBadBody(t *testing.T) {
	mux, _ := newTestMux(t)
	require.Equal(t, http.StatusBadRequest, doJSON(t, mux, http.MethodPost, "/engagements", "{not json").Code)
	require.Equal(t, http.StatusBadRequest, doJSON(t, mux, http.MethodPost, "/engagements", `{"unit_id":"x"}`).Code)
}

func TestTelemetryRoundtrip(t *testing.T) {
	mux, repo := newTestMux(t)
	convoyID, unitID := uuid.New(), uuid.New()
	seedUnit(t, repo, convoyID, unitID)

	body := fmt.Sprintf(`{"unit_id":%q,"lat":33.31,"lon":44.36,"alt_m":5200,"speed_mps":72.5,"fuel_pct":77.0}`, unitID)
	rec := doJSON(t, mux, http.MethodPost, "/telemetry", body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/telemetry/"+unitID.String()+"/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res telemetryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, unitID.String(), res.UnitID)
	require.InDelta(t, 33.31, res.Latitude, 1e-9)
}

func TestLeaderboardEndpoint(t *testing.T) {
	mux, repo := newTestMux(t)
	convoyID, unitID := uuid.New(), uuid.New()
	seedUnit(t, repo, convoyID, unitID)
	_, err := repo.RecordEngagement(context.Background(), convoyID, unitID, true)
	require.NoError(t, err)

	rec := doJSON(t, mux, http.MethodGet, "/leaderboard/"+convoyID.String()+"?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []struct {
		Rank   int    `json:"rank"`
		UnitID string `json:"unit_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	require.Equal(t, unitID.String(), rows[0].UnitID)

	require.Equal(t, http.StatusBadRequest,
		doJSON(t, mux, http.MethodGet, "/leaderboard/"+convoyID.String()+"?limit=500", "").Code)
}

func TestRankEndpoint(t *testing.T) {
	mux, repo := newTestMux(t)
	convoyID, unitID := uuid.New(), uuid.New()
	seedUnit(t, repo, convoyID, unitID)
	_, err := repo.RecordEngagement(context.Background(), convoyID, unitID, true)
	require.NoError(t, err)

	rec := doJSON(t, mux, http.MethodGet, "/rank/"+convoyID.String()+"/"+unitID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res rankResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, 1, res.Rank)

	rec = doJSON(t, mux, http.MethodGet, "/rank/"+convoyID.String()+"/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnitStateEndpoint(t *testing.T) {
	mux, repo := newTestMux(t)
	convoyID, unitID := uuid.New(), uuid.New()
	seedUnit(t, repo, convoyID, unitID)

	rec := doJSON(t, mux, http.MethodGet, "/units/"+unitID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res unitStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, "VIPER-1", res.Callsign)

	rec = doJSON(t, mux, http.MethodGet, "/units/"+unitID.String()+"/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats unitStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, int64(0), stats.TotalEngagements)
}

func TestConvoyRegistration(t *testing.T) {
	mux, _ := newTestMux(t)
	convoyID, unitID := uuid.New(), uuid.New()

	body := fmt.Sprintf(`{"convoy_id":%q,"callsign":"THUNDER","mission":"STRIKE","status":"ACTIVE"}`, convoyID)
	require.Equal(t, http.StatusCreated, doJSON(t, mux, http.MethodPost, "/convoys", body).Code)

	body = fmt.Sprintf(`{"convoy_id":%q,"unit_id":%q,"callsign":"REAPER-1","platform":"MQ-9","status":"AIRBORNE"}`, convoyID, unitID)
	require.Equal(t, http.StatusCreated, doJSON(t, mux, http.MethodPost, "/units", body).Code)

	rec := doJSON(t, mux, http.MethodGet, "/convoys/"+convoyID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "THUNDER")

	rec = doJSON(t, mux, http.MethodGet, "/convoys/"+convoyID.String()+"/roster", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), unitID.String())

	require.Equal(t, http.StatusNotFound,
		doJSON(t, mux, http.MethodGet, "/convoys/"+uuid.NewString(), "").Code)
}

func TestStatsEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := doJSON(t, mux, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "started")
	require.Contains(t, rec.Body.String(), "reported_at")
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
