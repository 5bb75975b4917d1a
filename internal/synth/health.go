package synth

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/nvandessel/battsim/internal/constants"
	"github.com/nvandessel/battsim/internal/models"
)

// Health labels.
const (
	HealthGood = iota
	HealthBad
)

// FeatSOH is the latent State-of-Health percentage. It is never stored.
const FeatSOH = "soh"

// Health shared draws.
const (
	SharedSoC            = "soc"
	SharedDoD            = "dod"
	SharedCycleNoise     = "cycle_noise"
	SharedResNoise       = "res_noise"
	SharedImbalanceNoise = "imbalance_noise"
	SharedEffNoise       = "eff_noise"
	SharedPolNoise       = "pol_noise"
	SharedStressNoise    = "stress_noise"
)

// HealthProfile returns the default battery degradation profile. Both
// classes share the SOH prior; the label comes from a soft boundary on SOH.
func HealthProfile() *Profile {
	soh := Uniform(60, 100)
	return &Profile{
		Domain:    models.DomainHealth,
		Prior:     []float64{0.5, 0.5},
		BaseOrder: []string{FeatSOH},
		Classes: []ClassProfile{
			{Label: HealthGood, Name: "Good", Features: map[string]Dist{FeatSOH: soh}},
			{Label: HealthBad, Name: "Bad", Features: map[string]Dist{FeatSOH: soh}},
		},
		Shared: map[string]Dist{
			SharedSoC:            Uniform(10, 100),
			SharedDoD:            Uniform(10, 90),
			SharedCycleNoise:     Normal(0, 500),
			SharedResNoise:       Normal(0, 20),
			SharedImbalanceNoise: Normal(0, 0.05),
			SharedEffNoise:       Normal(0, 1),
			SharedPolNoise:       Normal(0, 0.05),
			SharedStressNoise:    Normal(0, 0.5),
		},
		Fault: FaultSpec{
			Feature:     models.ColInternalRes,
			Magnitude:   constants.HealthFaultMagnitude,
			Probability: constants.HealthFaultProb,
		},
		MislabelProb: constants.HealthMislabelProb,
		Boundary: &Boundary{
			Center:   constants.HealthSOHBoundary,
			Softness: constants.HealthSOHSoftness,
		},
	}
}

// sampleHealth draws SOH from its posterior given label: candidates from
// the class prior are accepted when the boundary assigns them label.
func sampleHealth(rng *rand.Rand, label int, p *Profile) (Draw, error) {
	for range constants.MaxPosteriorAttempts {
		draw, err := SampleFeatures(rng, label, p)
		if err != nil {
			return Draw{}, err
		}
		bad := rng.Float64() < p.Boundary.PositiveProb(draw.Values[FeatSOH])
		if bad == (label == HealthBad) {
			return draw, nil
		}
	}
	return Draw{}, fmt.Errorf("no state-of-health accepted for label %d after %d attempts",
		label, constants.MaxPosteriorAttempts)
}

func deriveHealth(rng *rand.Rand, p *Profile, d Draw) (map[string]float64, error) {
	soh := d.Values[FeatSOH]
	wear := 100 - soh

	sd := sharedDraws{rng: rng, p: p}
	soc := sd.draw(SharedSoC)
	resistance := 150 - soh + sd.draw(SharedResNoise)
	cycles := math.Trunc(math.Max(0, wear*50+sd.draw(SharedCycleNoise)))
	dod := sd.draw(SharedDoD)
	imbalance := wear/500 + sd.draw(SharedImbalanceNoise)
	efficiency := 95 + soh/25 + sd.draw(SharedEffNoise)
	polarization := wear/200 + sd.draw(SharedPolNoise)
	stress := cycles/1000 + sd.draw(SharedStressNoise)
	if sd.err != nil {
		return nil, sd.err
	}

	return map[string]float64{
		models.ColSoC:           soc,
		models.ColInternalRes:   resistance,
		models.ColCycleCount:    cycles,
		models.ColDoD:           dod,
		models.ColCellImbalance: imbalance,
		models.ColCoulombicEff:  efficiency,
		models.ColPolVoltage:    polarization,
		models.ColStressIndex:   stress,
	}, nil
}
