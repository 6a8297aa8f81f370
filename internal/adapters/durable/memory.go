package durable

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tkhorram/convoytrack/internal/domain/model"
)

type unitKey struct {
	convoyID uuid.UUID
	unitID   uuid.UUID
}

type waypointKey struct {
	unitID uuid.UUID
	seq    int16
}

// MemoryStore is a mutex-guarded Store used by tests and local runs. It
// honors the same contract as the Postgres store, including single-step
// counter increments under the lock.
type MemoryStore struct {
	mu sync.Mutex

	convoys      map[uuid.UUID]model.Convoy
	units        map[unitKey]model.Unit
	waypoints    map[waypointKey]model.Waypoint
	telemetry    map[uuid.UUID][]model.Telemetry
	engagements  map[uuid.UUID]map[uuid.UUID]model.Engagement
	leaderboards map[unitKey]model.LeaderboardEntry

	// failNext forces the next n operations to fail; used to exercise
	// transient-failure paths in tests.
	failNext int
	failErr  error
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		convoys:      make(map[uuid.UUID]model.Convoy),
		units:        make(map[unitKey]model.Unit),
		waypoints:    make(map[waypointKey]model.Waypoint),
		telemetry:    make(map[uuid.UUID][]model.Telemetry),
		engagements:  make(map[uuid.UUID]map[uuid.UUID]model.Engagement),
		leaderboards: make(map[unitKey]model.LeaderboardEntry),
	}
}

// FailNext makes the next n operations return err.
func (s *MemoryStore) FailNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
	s.failErr = err
}

func (s *MemoryStore) maybeFail() error {
	if s.failNext > 0 {
		s.failNext--
		return s.failErr
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) GetConvoy(_ context.Context, convoyID uuid.UUID) (model.Convoy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return model.Convoy{}, err
	}
	c, ok := s.convoys[convoyID]
	if !ok {
		return model.Convoy{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) PutConvoy(_ context.Context, c model.Convoy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return err
	}
	s.convoys[c.ConvoyID] = c
	return nil
}

func (s *MemoryStore) DeleteConvoy(_ context.Context, convoyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return err
	}
	if _, ok := s.convoys[convoyID]; !ok {
		return ErrNotFound
	}
	delete(s.convoys, convoyID)
	return nil
}

func (s *MemoryStore) ListConvoys(_ context.Context) ([]model.Convoy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return nil, err
	}
	out := make([]model.Convoy, 0, len(s.convoys))
	for _, c := range s.convoys {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) GetUnit(_ context.Context, convoyID, unitID uuid.UUID) (model.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return model.Unit{}, err
	}
	u, ok := s.units[unitKey{convoyID, unitID}]
	if !ok {
		return model.Unit{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) FindUnit(_ context.Context, unitID uuid.UUID) (model.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return model.Unit{}, err
	}
	for k, u := range s.units {
		if k.unitID == unitID {
			return u, nil
		}
	}
	return model.Unit{}, ErrNotFound
}

func (s *MemoryStore) PutUnit(_ context.Context, u model.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return err
	}
	k := unitKey{u.ConvoyID, u.UnitID}
	if existing, ok := s.units[k]; ok {
		// Counters survive metadata updates; only IncrementCounters moves them.
		u.TotalEngagements = existing.TotalEngagements
		u.SuccessfulHits = existing.SuccessfulHits
		u.CurrentStreak = existing.CurrentStreak
		u.BestStreak = existing.BestStreak
		u.CreatedAt = existing.CreatedAt
	}
	s.units[k] = u
	return nil
}

func (s *MemoryStore) DeleteUnit(_ context.Context, convoyID, unitID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return err
	}
	k := unitKey{convoyID, unitID}
	if _, ok := s.units[k]; !ok {
		return ErrNotFound
	}
	delete(s.units, k)
	return nil
}

func (s *MemoryStore) UnitsByConvoy(_ context.Context, convoyID uuid.UUID) ([]model.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return nil, err
	}
	var out []model.Unit
	for k, u := range s.units {
		if k.convoyID == convoyID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UnitID.String() < out[j].UnitID.String()
	})
	return out, nil
}

func (s *MemoryStore) IncrementCounters(_ context.Context, convoyID, unitID uuid.UUID, hit bool) (model.AccuracyStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return model.AccuracyStats{}, err
	}
	k := unitKey{convoyID, unitID}
	u, ok := s.units[k]
	if !ok {
		return model.AccuracyStats{}, ErrNotFound
	}

	u.TotalEngagements++
	if hit {
		u.SuccessfulHits++
		u.CurrentStreak++
		if u.CurrentStreak > u.BestStreak {
			u.BestStreak = u.CurrentStreak
		}
	} else {
		u.CurrentStreak = 0
	}
	u.UpdatedAt = time.Now().UTC()
	s.units[k] = u

	return model.AccuracyStats{
		TotalEngagements: u.TotalEngagements,
		SuccessfulHits:   u.SuccessfulHits,
		CurrentStreak:    u.CurrentStreak,
		BestStreak:       u.BestStreak,
	}, nil
}

func (s *MemoryStore) PutWaypoints(_ context.Context, wps []model.Waypoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return err
	}
	for _, w := range wps {
		s.waypoints[waypointKey{w.UnitID, w.Seq}] = w
	}
	return nil
}

func (s *MemoryStore) Route(_ context.Context, unitID uuid.UUID) ([]model.Waypoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return nil, err
	}
	var out []model.Waypoint
	for k, w := range s.waypoints {
		if k.unitID == unitID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *MemoryStore) MarkWaypoint(_ context.Context, unitID uuid.UUID, seq int16, status model.WaypointStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return err
	}
	k := waypointKey{unitID, seq}
	w, ok := s.waypoints[k]
	if !ok {
		return ErrNotFound
	}
	w.Status = status
	now := time.Now().UTC()
	switch status {
	case model.WaypointActive:
		w.Arrived = &now
	case model.WaypointComplete:
		w.Left = &now
	}
	s.waypoints[k] = w
	return nil
}

func (s *MemoryStore) InsertTelemetry(_ context.Context, t model.Telemetry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return err
	}
	s.insertTelemetryLocked(t)
	return nil
}

func (s *MemoryStore) InsertTelemetryBatch(_ context.Context, ts []model.Telemetry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return err
	}
	for _, t := range ts {
		s.insertTelemetryLocked(t)
	}
	return nil
}

func (s *MemoryStore) insertTelemetryLocked(t model.Telemetry) {
	samples := append(s.telemetry[t.UnitID], t)
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].RecordedAt.Before(samples[j].RecordedAt)
	})
	s.telemetry[t.UnitID] = samples
}

func (s *MemoryStore) LatestTelemetry(_ context.Context, unitID uuid.UUID) (model.Telemetry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return model.Telemetry{}, err
	}
	samples := s.telemetry[unitID]
	if len(samples) == 0 {
		return model.Telemetry{}, ErrNotFound
	}
	return samples[len(samples)-1], nil
}

func (s *MemoryStore) TelemetryRange(_ context.Context, unitID uuid.UUID, r model.TimeRange) ([]model.Telemetry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return nil, err
	}
	var out []model.Telemetry
	for _, t := range s.telemetry[unitID] {
		if !t.RecordedAt.Before(r.Start) && !t.RecordedAt.After(r.End) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) PruneTelemetryBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return 0, err
	}
	var pruned int64
	for unitID, samples := range s.telemetry {
		kept := samples[:0]
		for _, t := range samples {
			if t.RecordedAt.Before(cutoff) {
				pruned++
				continue
			}
			kept = append(kept, t)
		}
		if len(kept) == 0 {
			delete(s.telemetry, unitID)
			continue
		}
		s.telemetry[unitID] = kept
	}
	return pruned, nil
}

func (s *MemoryStore) InsertEngagement(_ context.Context, e model.Engagement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return err
	}
	byID := s.engagements[e.ConvoyID]
	if byID == nil {
		byID = make(map[uuid.UUID]model.Engagement)
		s.engagements[e.ConvoyID] = byID
	}
	if _, exists := byID[e.EngagementID]; exists {
		return nil
	}
	byID[e.EngagementID] = e
	return nil
}

func (s *MemoryStore) EngagementsByConvoy(_ context.Context, convoyID uuid.UUID, limit int) ([]model.Engagement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return nil, err
	}
	var out []model.Engagement
	for _, e := range s.engagements[convoyID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EngagedAt.After(out[j].EngagedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) EngagementsByUnit(_ context.Context, unitID uuid.UUID, limit int) ([]model.Engagement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return nil, err
	}
	var out []model.Engagement
	for _, byID := range s.engagements {
		for _, e := range byID {
			if e.UnitID == unitID {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EngagedAt.After(out[j].EngagedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpsertLeaderboardEntry(_ context.Context, e model.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return err
	}
	s.leaderboards[unitKey{e.ConvoyID, e.UnitID}] = e
	return nil
}

func (s *MemoryStore) LeaderboardEntries(_ context.Context, convoyID uuid.UUID) ([]model.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return nil, err
	}
	var out []model.LeaderboardEntry
	for k, e := range s.leaderboards {
		if k.convoyID == convoyID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccuracyPct != out[j].AccuracyPct {
			return out[i].AccuracyPct > out[j].AccuracyPct
		}
		return out[i].UnitID.String() < out[j].UnitID.String()
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (s *MemoryStore) DeleteLeaderboardEntry(_ context.Context, convoyID, unitID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return err
	}
	delete(s.leaderboards, unitKey{convoyID, unitID})
	return nil
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*BunStore)(nil)
