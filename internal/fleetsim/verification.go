package fleetsim

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/tkhorram/convoytrack/pkg/logger"
)

// accuracyTolerance absorbs float formatting differences between the
// tracker's derivation and the local one.
const accuracyTolerance = 0.01

// verifyResults checks the leaderboard against the locally-tracked
// outcomes: per-unit accuracy must match and the ordering must follow
// accuracy descending with ties broken ascending by unit id.
func verifyResults(ctx context.Context, profiles []*unitProfile, leaderboard []leaderboardRow) error {
	logger.Get().Info(ctx, "verifying results")

	if len(leaderboard) == 0 {
		return fmt.Errorf("empty leaderboard")
	}

	expected := make(map[string]float64, len(profiles))
	for _, p := range profiles {
		expected[p.UnitID.String()] = p.AccuracyPct()
	}

	for _, row := range leaderboard {
		want, ok := expected[row.UnitID]
		if !ok {
			return fmt.Errorf("leaderboard contains unknown unit %s", row.UnitID)
		}
		if math.Abs(row.AccuracyPct-want) > accuracyTolerance {
			return fmt.Errorf("unit %s accuracy mismatch: leaderboard %.2f, expected %.2f",
				row.UnitID, row.AccuracyPct, want)
		}
	}

	if err := verifyOrdering(leaderboard); err != nil {
		return err
	}

	// The top entry must be one of the locally-best units.
	best := bestExpected(profiles)
	if math.Abs(leaderboard[0].AccuracyPct-best) > accuracyTolerance {
		return fmt.Errorf("top leaderboard accuracy %.2f does not match best expected %.2f",
			leaderboard[0].AccuracyPct, best)
	}

	logger.Get().Info(ctx, "leaderboard consistency verified",
		logger.Int("entries", len(leaderboard)))
	return nil
}

// verifyOrdering checks rank contiguity and the deterministic tie-break.
func verifyOrdering(leaderboard []leaderboardRow) error {
	for i, row := range leaderboard {
		if row.Rank != i+1 {
			return fmt.Errorf("rank not contiguous at position %d: got %d", i, row.Rank)
		}
		if i == 0 {
			continue
		}
		prev := leaderboard[i-1]
		if row.AccuracyPct > prev.AccuracyPct+accuracyTolerance {
			return fmt.Errorf("leaderboard not sorted: entry %d outranks entry %d", i, i-1)
		}
		if math.Abs(row.AccuracyPct-prev.AccuracyPct) <= accuracyTolerance && row.UnitID < prev.UnitID {
			return fmt.Errorf("tie between %s and %s not broken by unit id", prev.UnitID, row.UnitID)
		}
	}
	return nil
}

func bestExpected(profiles []*unitProfile) float64 {
	accs := make([]float64, len(profiles))
	for i, p := range profiles {
		accs[i] = p.AccuracyPct()
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(accs)))
	return accs[0]
}
