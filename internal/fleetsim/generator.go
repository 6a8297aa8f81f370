package fleetsim

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	profileDivisor     = 6
)

// Hit-probability profiles. The spread guarantees the final ranking has
// clear winners, a packed middle and likely accuracy ties.
const (
	caseAceProfile     = 0
	caseSharpProfile   = 1
	caseSteadyProfile  = 2
	caseErraticProfile = 3
	caseStrugglProfile = 4
	caseGreenProfile   = 5
)

const (
	aceHitProb     = 0.95
	sharpHitProb   = 0.80
	steadyHitProb  = 0.60
	erraticHitProb = 0.45
	strugglHitProb = 0.25
	greenHitProb   = 0.10
)

var weapons = []string{
	"AGM-114_HELLFIRE",
	"GBU-12_PAVEWAY",
	"AIM-9X_SIDEWINDER",
	"GBU-38_JDAM",
	"AGM-176_GRIFFIN",
}

var targetKinds = []string{"VEHICLE", "STRUCTURE", "RADAR", "AIR_DEFENSE", "SUPPLY"}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func pick(items []string) string {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(items))))
	return items[n.Int64()]
}

// unitProfile fixes a unit's hit probability for the whole run so its
// final accuracy is predictable enough to verify.
type unitProfile struct {
	UnitID   uuid.UUID
	Callsign string
	HitProb  float64

	// Tracked locally during generation.
	Engagements int
	Hits        int
}

// AccuracyPct mirrors the tracker's derivation from the counters.
func (p *unitProfile) AccuracyPct() float64 {
	if p.Engagements == 0 {
		return 0
	}
	return float64(p.Hits) / float64(p.Engagements) * 100
}

func newUnitProfile(index int) *unitProfile {
	n, _ := rand.Int(rand.Reader, big.NewInt(profileDivisor))
	var prob float64
	switch n.Int64() {
	case caseAceProfile:
		prob = aceHitProb
	case caseSharpProfile:
		prob = sharpHitProb
	case caseSteadyProfile:
		prob = steadyHitProb
	case caseErraticProfile:
		prob = erraticHitProb
	case caseStrugglProfile:
		prob = strugglHitProb
	case caseGreenProfile:
		prob = greenHitProb
	default:
		prob = steadyHitProb
	}
	return &unitProfile{
		UnitID:   uuid.New(),
		Callsign: fmt.Sprintf("SIM-%03d", index+1),
		HitProb:  prob,
	}
}

// generateProfiles builds the simulated convoy roster.
func generateProfiles(n int) []*unitProfile {
	profiles := make([]*unitProfile, n)
	for i := range profiles {
		profiles[i] = newUnitProfile(i)
	}
	return profiles
}

// generateEngagements spreads engagements round-robin over the roster and
// rolls each outcome against the unit's hit probability. The expected
// accuracy per unit is tracked locally for verification.
func generateEngagements(convoyID uuid.UUID, profiles []*unitProfile, count int) []engagementPayload {
	out := make([]engagementPayload, count)
	for i := 0; i < count; i++ {
		p := profiles[i%len(profiles)]
		hit := getRandomFloat() < p.HitProb
		p.Engagements++
		if hit {
			p.Hits++
		}
		out[i] = engagementPayload{
			EngagementID: uuid.NewString(),
			ConvoyID:     convoyID.String(),
			UnitID:       p.UnitID.String(),
			Weapon:       pick(weapons),
			TargetKind:   pick(targetKinds),
			Hit:          hit,
			EngagedAt:    time.Now().UTC().Format(time.RFC3339),
		}
	}
	return out
}

// generateTelemetry produces ticks per unit along a drifting track.
func generateTelemetry(profiles []*unitProfile, ticksPerUnit int) []telemetryPayload {
	out := make([]telemetryPayload, 0, len(profiles)*ticksPerUnit)
	for _, p := range profiles {
		lat := 33.0 + getRandomFloat()
		lon := 44.0 + getRandomFloat()
		fuel := 95.0 - getRandomFloat()*10
		for t := 0; t < ticksPerUnit; t++ {
			lat += (getRandomFloat() - 0.5) * 0.01
			lon += (getRandomFloat() - 0.5) * 0.01
			fuel -= getRandomFloat() * 0.5
			out = append(out, telemetryPayload{
				UnitID:     p.UnitID.String(),
				Latitude:   lat,
				Longitude:  lon,
				AltitudeM:  4000 + getRandomFloat()*2000,
				HeadingDeg: float32(getRandomFloat() * 360),
				SpeedMPS:   float32(60 + getRandomFloat()*30),
				FuelPct:    float32(fuel),
			})
		}
	}
	return out
}
