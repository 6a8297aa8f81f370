package durable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/tkhorram/convoytrack/internal/domain/model"
	"github.com/tkhorram/convoytrack/pkg/metrics"
)

// Default connection pool configuration constants.
const (
	defaultMaxOpenConns = 16
	defaultMaxIdleConns = 8
)

// BunStore is the Postgres-backed Store.
type BunStore struct {
	db *bun.DB

	dsn          string
	maxOpenConns int
	maxIdleConns int
}

// BunOption applies a configuration option to the BunStore.
type BunOption func(*BunStore)

// WithDSN sets the Postgres connection string.
func WithDSN(dsn string) BunOption {
	return func(s *BunStore) {
		if dsn != "" {
			s.dsn = dsn
		}
	}
}

// WithMaxOpenConns caps the connection pool.
func WithMaxOpenConns(n int) BunOption {
	return func(s *BunStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithMaxIdleConns sets the idle pool size.
func WithMaxIdleConns(n int) BunOption {
	return func(s *BunStore) {
		if n > 0 {
			s.maxIdleConns = n
		}
	}
}

// NewBunStore connects the durable store and verifies the endpoint.
func NewBunStore(ctx context.Context, opts ...BunOption) (*BunStore, error) {
	s := &BunStore{
		maxOpenConns: defaultMaxOpenConns,
		maxIdleConns: defaultMaxIdleConns,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dsn == "" {
		return nil, errors.New("durable: dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(s.dsn)))
	sqldb.SetMaxOpenConns(s.maxOpenConns)
	sqldb.SetMaxIdleConns(s.maxIdleConns)

	s.db = bun.NewDB(sqldb, pgdialect.New())
	if err := s.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("durable ping: %w", err)
	}
	return s, nil
}

// CreateTables provisions the schema. Intended for local runs and test
// databases; production schemas are managed out of band.
func (s *BunStore) CreateTables(ctx context.Context) error {
	rows := []any{
		(*convoyRow)(nil),
		(*unitRow)(nil),
		(*waypointRow)(nil),
		(*telemetryRow)(nil),
		(*engagementRow)(nil),
		(*leaderboardRow)(nil),
	}
	for _, r := range rows {
		if _, err := s.db.NewCreateTable().Model(r).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("durable create table: %w", err)
		}
	}
	return nil
}

func (s *BunStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *BunStore) Close() error { return s.db.Close() }

func observe(op string, start time.Time, err error) {
	metrics.RecordDurableLatency(float64(time.Since(start).Milliseconds()))
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.RecordDurableError(op)
	}
}

func mapScanErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *BunStore) GetConvoy(ctx context.Context, convoyID uuid.UUID) (c model.Convoy, err error) {
	start := time.Now()
	defer func() { observe("get_convoy", start, err) }()

	var row convoyRow
	if err = s.db.NewSelect().Model(&row).Where("convoy_id = ?", convoyID).Scan(ctx); err != nil {
		err = mapScanErr(err)
		return model.Convoy{}, err
	}
	return row.toDomain(), nil
}

func (s *BunStore) PutConvoy(ctx context.Context, c model.Convoy) (err error) {
	start := time.Now()
	defer func() { observe("put_convoy", start, err) }()

	row := convoyToRow(c)
	_, err = s.db.NewInsert().
		Model(&row).
		On("CONFLICT (convoy_id) DO UPDATE").
		Set("callsign = EXCLUDED.callsign").
		Set("mission = EXCLUDED.mission").
		Set("status = EXCLUDED.status").
		Set("mission_start = EXCLUDED.mission_start").
		Set("mission_end = EXCLUDED.mission_end").
		Set("aor_name = EXCLUDED.aor_name").
		Set("aor_lat = EXCLUDED.aor_lat").
		Set("aor_lon = EXCLUDED.aor_lon").
		Set("aor_radius_km = EXCLUDED.aor_radius_km").
		Set("commanding_unit = EXCLUDED.commanding_unit").
		Set("unit_ids = EXCLUDED.unit_ids").
		Set("unit_count = EXCLUDED.unit_count").
		Exec(ctx)
	return err
}

func (s *BunStore) DeleteConvoy(ctx context.Context, convoyID uuid.UUID) (err error) {
	start := time.Now()
	defer func() { observe("delete_convoy", start, err) }()

	res, err := s.db.NewDelete().
		Model((*convoyRow)(nil)).
		Where("convoy_id = ?", convoyID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}

func (s *BunStore) ListConvoys(ctx context.Context) (out []model.Convoy, err error) {
	start := time.Now()
	defer func() { observe("list_convoys", start, err) }()

	var rows []convoyRow
	if err = s.db.NewSelect().Model(&rows).Order("created_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out = make([]model.Convoy, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *BunStore) GetUnit(ctx context.Context, convoyID, unitID uuid.UUID) (u model.Unit, err error) {
	start := time.Now()
	defer func() { observe("get_unit", start, err) }()

	var row unitRow
	err = s.db.NewSelect().
		Model(&row).
		Where("convoy_id = ? AND unit_id = ?", convoyID, unitID).
		Scan(ctx)
	if err != nil {
		err = mapScanErr(err)
		return model.Unit{}, err
	}
	return row.toDomain(), nil
}

func (s *BunStore) FindUnit(ctx context.Context, unitID uuid.UUID) (u model.Unit, err error) {
	start := time.Now()
	defer func() { observe("find_unit", start, err) }()

	var row unitRow
	if err = s.db.NewSelect().Model(&row).Where("unit_id = ?", unitID).Scan(ctx); err != nil {
		err = mapScanErr(err)
		return model.Unit{}, err
	}
	return row.toDomain(), nil
}

func (s *BunStore) PutUnit(ctx context.Context, u model.Unit) (err error) {
	start := time.Now()
	defer func() { observe("put_unit", start, err) }()

	row := unitToRow(u)
	// Counters are deliberately excluded from the conflict update: only
	// IncrementCounters may advance them once the row exists.
	_, err = s.db.NewInsert().
		Model(&row).
		On("CONFLICT (convoy_id, unit_id) DO UPDATE").
		Set("tail_number = EXCLUDED.tail_number").
		Set("callsign = EXCLUDED.callsign").
		Set("platform = EXCLUDED.platform").
		Set("status = EXCLUDED.status").
		Set("lat = EXCLUDED.lat").
		Set("lon = EXCLUDED.lon").
		Set("alt_m = EXCLUDED.alt_m").
		Set("heading_deg = EXCLUDED.heading_deg").
		Set("speed_mps = EXCLUDED.speed_mps").
		Set("fuel_pct = EXCLUDED.fuel_pct").
		Set("flight_time_hr = EXCLUDED.flight_time_hr").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *BunStore) DeleteUnit(ctx context.Context, convoyID, unitID uuid.UUID) (err error) {
	start := time.Now()
	defer func() { observe("delete_unit", start, err) }()

	res, err := s.db.NewDelete().
		Model((*unitRow)(nil)).
		Where("convoy_id = ? AND unit_id = ?", convoyID, unitID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}

func (s *BunStore) UnitsByConvoy(ctx context.Context, convoyID uuid.UUID) (out []model.Unit, err error) {
	start := time.Now()
	defer func() { observe("units_by_convoy", start, err) }()

	var rows []unitRow
	err = s.db.NewSelect().
		Model(&rows).
		Where("convoy_id = ?", convoyID).
		Order("unit_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out = make([]model.Unit, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *BunStore) IncrementCounters(ctx context.Context, convoyID, unitID uuid.UUID, hit bool) (stats model.AccuracyStats, err error) {
	start := time.Now()
	defer func() { observe("increment_counters", start, err) }()

	// One statement, so concurrent engagements for the same unit serialize
	// on the row and the returned totals are exact post-increment values.
	var row unitRow
	err = s.db.NewUpdate().
		Model(&row).
		Set("total_engagements = u.total_engagements + 1").
		Set("successful_hits = u.successful_hits + CASE WHEN ? THEN 1 ELSE 0 END", hit).
		Set("current_streak = CASE WHEN ? THEN u.current_streak + 1 ELSE 0 END", hit).
		Set("best_streak = CASE WHEN ? THEN GREATEST(u.best_streak, u.current_streak + 1) ELSE u.best_streak END", hit).
		Set("updated_at = now()").
		Where("convoy_id = ? AND unit_id = ?", convoyID, unitID).
		Returning("total_engagements, successful_hits, current_streak, best_streak").
		Scan(ctx)
	if err != nil {
		err = mapScanErr(err)
		return model.AccuracyStats{}, err
	}
	return model.AccuracyStats{
		TotalEngagements: row.TotalEngagements,
		SuccessfulHits:   row.SuccessfulHits,
		CurrentStreak:    row.CurrentStreak,
		BestStreak:       row.BestStreak,
	}, nil
}

func (s *BunStore) PutWaypoints(ctx context.Context, wps []model.Waypoint) (err error) {
	start := time.Now()
	defer func() { observe("put_waypoints", start, err) }()

	if len(wps) == 0 {
		return nil
	}
	rows := make([]waypointRow, len(wps))
	for i, w := range wps {
		rows[i] = waypointToRow(w)
	}
	_, err = s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (unit_id, seq) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("kind = EXCLUDED.kind").
		Set("lat = EXCLUDED.lat").
		Set("lon = EXCLUDED.lon").
		Set("alt_m = EXCLUDED.alt_m").
		Set("status = EXCLUDED.status").
		Set("planned_at = EXCLUDED.planned_at").
		Exec(ctx)
	return err
}

func (s *BunStore) Route(ctx context.Context, unitID uuid.UUID) (out []model.Waypoint, err error) {
	start := time.Now()
	defer func() { observe("route", start, err) }()

	var rows []waypointRow
	if err = s.db.NewSelect().Model(&rows).Where("unit_id = ?", unitID).Order("seq ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out = make([]model.Waypoint, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *BunStore) MarkWaypoint(ctx context.Context, unitID uuid.UUID, seq int16, status model.WaypointStatus) (err error) {
	start := time.Now()
	defer func() { observe("mark_waypoint", start, err) }()

	q := s.db.NewUpdate().
		Model((*waypointRow)(nil)).
		Set("status = ?", string(status)).
		Where("unit_id = ? AND seq = ?", unitID, seq)
	switch status {
	case model.WaypointActive:
		q = q.Set("arrived_at = now()")
	case model.WaypointComplete:
		q = q.Set("departed_at = now()")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}

func (s *BunStore) InsertTelemetry(ctx context.Context, t model.Telemetry) (err error) {
	start := time.Now()
	defer func() { observe("insert_telemetry", start, err) }()

	row := telemetryToRow(t)
	_, err = s.db.NewInsert().Model(&row).Exec(ctx)
	return err
}

func (s *BunStore) InsertTelemetryBatch(ctx context.Context, ts []model.Telemetry) (err error) {
	start := time.Now()
	defer func() { observe("insert_telemetry_batch", start, err) }()

	if len(ts) == 0 {
		return nil
	}
	rows := make([]telemetryRow, len(ts))
	for i, t := range ts {
		rows[i] = telemetryToRow(t)
	}
	_, err = s.db.NewInsert().Model(&rows).Exec(ctx)
	return err
}

func (s *BunStore) LatestTelemetry(ctx context.Context, unitID uuid.UUID) (t model.Telemetry, err error) {
	start := time.Now()
	defer func() { observe("latest_telemetry", start, err) }()

	var row telemetryRow
	err = s.db.NewSelect().
		Model(&row).
		Where("unit_id = ?", unitID).
		Order("recorded_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		err = mapScanErr(err)
		return model.Telemetry{}, err
	}
	return row.toDomain(), nil
}

func (s *BunStore) TelemetryRange(ctx context.Context, unitID uuid.UUID, r model.TimeRange) (out []model.Telemetry, err error) {
	start := time.Now()
	defer func() { observe("telemetry_range", start, err) }()

	buckets := r.Buckets()
	if len(buckets) == 0 {
		return nil, nil
	}
	var rows []telemetryRow
	err = s.db.NewSelect().
		Model(&rows).
		Where("unit_id = ?", unitID).
		Where("time_bucket IN (?)", bun.In(buckets)).
		Where("recorded_at >= ? AND recorded_at <= ?", r.Start, r.End).
		Order("recorded_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out = make([]model.Telemetry, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (s *BunStore) PruneTelemetryBefore(ctx context.Context, cutoff time.Time) (n int64, err error) {
	start := time.Now()
	defer func() { observe("prune_telemetry", start, err) }()

	res, err := s.db.NewDelete().
		Model((*telemetryRow)(nil)).
		Where("recorded_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ = res.RowsAffected()
	return n, nil
}

func (s *BunStore) InsertEngagement(ctx context.Context, e model.Engagement) (err error) {
	start := time.Now()
	defer func() { observe("insert_engagement", start, err) }()

	row := engagementToRow(e)
	// Facts are immutable: replays of the same engagement id are ignored.
	_, err = s.db.NewInsert().
		Model(&row).
		On("CONFLICT (convoy_id, engaged_at, engagement_id) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *BunStore) EngagementsByConvoy(ctx context.Context, convoyID uuid.UUID, limit int) (out []model.Engagement, err error) {
	start := time.Now()
	defer func() { observe("engagements_by_convoy", start, err) }()

	var rows []engagementRow
	q := s.db.NewSelect().
		Model(&rows).
		Where("convoy_id = ?", convoyID).
		Order("engaged_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err = q.Scan(ctx); err != nil {
		return nil, err
	}
	out = make([]model.Engagement, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *BunStore) EngagementsByUnit(ctx context.Context, unitID uuid.UUID, limit int) (out []model.Engagement, err error) {
	start := time.Now()
	defer func() { observe("engagements_by_unit", start, err) }()

	var rows []engagementRow
	q := s.db.NewSelect().
		Model(&rows).
		Where("unit_id = ?", unitID).
		Order("engaged_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err = q.Scan(ctx); err != nil {
		return nil, err
	}
	out = make([]model.Engagement, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *BunStore) UpsertLeaderboardEntry(ctx context.Context, e model.LeaderboardEntry) (err error) {
	start := time.Now()
	defer func() { observe("upsert_leaderboard", start, err) }()

	row := leaderboardToRow(e)
	_, err = s.db.NewInsert().
		Model(&row).
		On("CONFLICT (convoy_id, unit_id) DO UPDATE").
		Set("callsign = EXCLUDED.callsign").
		Set("accuracy_pct = EXCLUDED.accuracy_pct").
		Set("total_engagements = EXCLUDED.total_engagements").
		Set("successful_hits = EXCLUDED.successful_hits").
		Set("current_streak = EXCLUDED.current_streak").
		Set("best_streak = EXCLUDED.best_streak").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *BunStore) LeaderboardEntries(ctx context.Context, convoyID uuid.UUID) (out []model.LeaderboardEntry, err error) {
	start := time.Now()
	defer func() { observe("leaderboard_entries", start, err) }()

	var rows []leaderboardRow
	err = s.db.NewSelect().
		Model(&rows).
		Where("convoy_id = ?", convoyID).
		Order("accuracy_pct DESC").
		Order("unit_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out = make([]model.LeaderboardEntry, len(rows))
	for i, r := range rows {
		e := r.toDomain()
		e.Rank = i + 1
		out[i] = e
	}
	return out, nil
}

func (s *BunStore) DeleteLeaderboardEntry(ctx context.Context, convoyID, unitID uuid.UUID) (err error) {
	start := time.Now()
	defer func() { observe("delete_leaderboard", start, err) }()

	_, err = s.db.NewDelete().
		Model((*leaderboardRow)(nil)).
		Where("convoy_id = ? AND unit_id = ?", convoyID, unitID).
		Exec(ctx)
	return err
}
