package synth

import (
	"math/rand/v2"

	"github.com/nvandessel/battsim/internal/constants"
	"github.com/nvandessel/battsim/internal/models"
)

// Driver labels.
const (
	DriverCity = iota
	DriverHighway
	DriverEmergency
)

// Driver base features.
const (
	FeatSpeed          = "speed_avg"
	FeatBrakeFreq      = "brake_freq"
	FeatThrottleStd    = "throttle_std"
	FeatBrakeIntensity = "brake_intensity"
)

// Driver shared draws, scenarios and noise keys.
const (
	SharedEnergy = "energy"
	SharedRange  = "range"

	ScenarioEmptyNightRoad = "empty_night_road"
	ScenarioAggressiveCity = "aggressive_city"
	ScenarioTrafficJam     = "traffic_jam"

	NoiseSpeed = "speed_avg"
)

// DriverProfile returns the default driving-behaviour profile. City and
// Highway each carry scenarios that make them look like the other class.
func DriverProfile() *Profile {
	return &Profile{
		Domain:    models.DomainDriver,
		Prior:     []float64{0.5, 0.4, 0.1},
		BaseOrder: []string{FeatSpeed, FeatBrakeFreq, FeatThrottleStd, FeatBrakeIntensity},
		Classes: []ClassProfile{
			{
				Label: DriverCity,
				Name:  "City",
				Features: map[string]Dist{
					FeatSpeed:          Normal(30, 15),
					FeatBrakeFreq:      Normal(15, 8),
					FeatThrottleStd:    Normal(20, 10),
					FeatBrakeIntensity: Normal(35, 15),
				},
				Scenarios: []Scenario{
					{
						Name:        ScenarioEmptyNightRoad,
						Probability: 0.10,
						Overrides: map[string]Dist{
							FeatSpeed:     Normal(60, 10),
							FeatBrakeFreq: Normal(5, 3),
						},
					},
					{
						Name:        ScenarioAggressiveCity,
						Probability: 0.05,
						Overrides: map[string]Dist{
							FeatSpeed:     Normal(30, 10),
							FeatBrakeFreq: Normal(20, 5),
						},
					},
				},
			},
			{
				Label: DriverHighway,
				Name:  "Highway",
				Features: map[string]Dist{
					FeatSpeed:          Normal(65, 20),
					FeatBrakeFreq:      Normal(3, 3),
					FeatThrottleStd:    Normal(10, 5),
					FeatBrakeIntensity: Normal(15, 10),
				},
				Scenarios: []Scenario{
					{
						Name:        ScenarioTrafficJam,
						Probability: 0.15,
						Overrides: map[string]Dist{
							FeatSpeed:     Normal(20, 10),
							FeatBrakeFreq: Normal(12, 5),
						},
					},
				},
			},
			{
				Label: DriverEmergency,
				Name:  "Emergency",
				Features: map[string]Dist{
					FeatSpeed:          Uniform(10, 100),
					FeatBrakeFreq:      Normal(5, 5),
					FeatThrottleStd:    Normal(50, 20),
					FeatBrakeIntensity: Normal(85, 15),
				},
			},
		},
		Shared: map[string]Dist{
			SharedEnergy: Normal(0.15, 0.05),
			SharedRange:  Normal(150, 40),
		},
		Noise: map[string]float64{
			NoiseSpeed: constants.SpeedNoiseLevel,
		},
		Fault: FaultSpec{
			Feature:     FeatSpeed,
			Magnitude:   constants.DriverFaultMagnitude,
			Probability: constants.DriverFaultProb,
		},
		MislabelProb: constants.DriverMislabelProb,
	}
}

func deriveDriver(rng *rand.Rand, p *Profile, d Draw) (map[string]float64, error) {
	speed := Inject(rng, d.Values[FeatSpeed], p.NoiseLevel(NoiseSpeed, constants.DefaultNoiseLevel))

	sd := sharedDraws{rng: rng, p: p}
	energy := sd.draw(SharedEnergy)
	rangeEst := sd.draw(SharedRange)
	if sd.err != nil {
		return nil, sd.err
	}

	return map[string]float64{
		models.ColSpeedAvg:          speed,
		models.ColBrakeFrequency:    d.Values[FeatBrakeFreq],
		models.ColBrakeIntensity:    d.Values[FeatBrakeIntensity],
		models.ColThrottleVariance:  d.Values[FeatThrottleStd],
		models.ColEnergyConsumption: energy,
		models.ColRangeEst:          rangeEst,
	}, nil
}
