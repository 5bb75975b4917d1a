package synth

import (
	"math"
	"math/rand/v2"

	"github.com/nvandessel/battsim/internal/constants"
	"github.com/nvandessel/battsim/internal/models"
)

// Safety labels.
const (
	SafetyNormal = iota
	SafetyWarning
	SafetyCritical
)

// Safety base features, drawn per class.
const (
	FeatPackTemp    = "pack_temp"
	FeatIsoRes      = "iso_res"
	FeatGasPPM      = "gas_ppm"
	FeatCellDelta   = "cell_delta"
	FeatCoolantFlow = "coolant_flow"
)

// Safety shared draws and noise keys.
const (
	SharedPackVoltage    = "pack_voltage"
	SharedPackCurrent    = "pack_current"
	SharedCellMaxSag     = "cell_max_sag"
	SharedCellMinSag     = "cell_min_sag"
	SharedThermalNoise   = "thermal_noise"
	SharedInverterOffset = "inverter_offset"
	SharedAmbientTemp    = "ambient_temp"
	SharedSoPNoise       = "sop_noise"

	NoiseInstantPower = "instant_power"
)

// cellFullVoltage is the per-cell voltage of a fully charged Li-ion cell.
const cellFullVoltage = 4.2

// SafetyProfile returns the default thermal-runaway risk profile.
// Warning sits between Normal and Critical and overlaps both on purpose.
func SafetyProfile() *Profile {
	return &Profile{
		Domain:    models.DomainSafety,
		Prior:     []float64{1.0 / 3, 1.0 / 3, 1.0 / 3},
		BaseOrder: []string{FeatPackTemp, FeatIsoRes, FeatGasPPM, FeatCellDelta, FeatCoolantFlow},
		Classes: []ClassProfile{
			{
				Label: SafetyNormal,
				Name:  "Normal",
				Features: map[string]Dist{
					FeatPackTemp:    Normal(35, 12),
					FeatIsoRes:      Normal(420, 120),
					FeatGasPPM:      Exponential(10),
					FeatCellDelta:   Normal(0.03, 0.03),
					FeatCoolantFlow: Normal(8, 3),
				},
			},
			{
				Label: SafetyWarning,
				Name:  "Warning",
				Features: map[string]Dist{
					FeatPackTemp:    Normal(50, 15),
					FeatIsoRes:      Normal(350, 140),
					FeatGasPPM:      Normal(30, 25),
					FeatCellDelta:   Normal(0.08, 0.06),
					FeatCoolantFlow: Normal(6, 4),
				},
			},
			{
				Label: SafetyCritical,
				Name:  "Critical",
				Features: map[string]Dist{
					FeatPackTemp:    Normal(75, 25),
					FeatIsoRes:      Normal(100, 100),
					FeatGasPPM:      Normal(150, 100),
					FeatCellDelta:   Normal(0.35, 0.20),
					FeatCoolantFlow: Normal(3, 4),
				},
			},
		},
		Shared: map[string]Dist{
			SharedPackVoltage:    Normal(350, 15),
			SharedPackCurrent:    Normal(60, 40),
			SharedCellMaxSag:     Normal(0, 0.05),
			SharedCellMinSag:     Normal(0, 0.05),
			SharedThermalNoise:   Normal(0, 1),
			SharedInverterOffset: Normal(5, 5),
			SharedAmbientTemp:    Normal(25, 10),
			SharedSoPNoise:       Normal(0, 10),
		},
		Noise: map[string]float64{
			NoiseInstantPower: constants.PowerNoiseLevel,
		},
		Fault: FaultSpec{
			Feature:     FeatPackTemp,
			Magnitude:   constants.SafetyFaultMagnitude,
			Probability: constants.SafetyFaultProb,
		},
		MislabelProb: constants.SafetyMislabelProb,
	}
}

func deriveSafety(rng *rand.Rand, p *Profile, d Draw) (map[string]float64, error) {
	packTemp := d.Values[FeatPackTemp]
	cellDelta := d.Values[FeatCellDelta]

	sd := sharedDraws{rng: rng, p: p}
	voltage := sd.draw(SharedPackVoltage)
	current := sd.draw(SharedPackCurrent)
	power := Inject(rng, voltage*current/1000, p.NoiseLevel(NoiseInstantPower, constants.DefaultNoiseLevel))
	cellMax := cellFullVoltage - math.Abs(sd.draw(SharedCellMaxSag))
	cellMin := cellFullVoltage - math.Abs(sd.draw(SharedCellMinSag)) - math.Abs(cellDelta)
	thermalGrad := math.Abs(5*cellDelta) + sd.draw(SharedThermalNoise)
	inverter := packTemp + sd.draw(SharedInverterOffset)
	ambient := sd.draw(SharedAmbientTemp)
	sop := 150 - 0.8*packTemp + sd.draw(SharedSoPNoise)
	if sd.err != nil {
		return nil, sd.err
	}

	return map[string]float64{
		models.ColPackVoltage:   voltage,
		models.ColPackCurrent:   current,
		models.ColInstantPower:  power,
		models.ColCellMax:       cellMax,
		models.ColCellMin:       cellMin,
		models.ColPackTemp:      packTemp,
		models.ColThermalGrad:   thermalGrad,
		models.ColInverterTemp:  inverter,
		models.ColAmbientTemp:   ambient,
		models.ColCoolantFlow:   d.Values[FeatCoolantFlow],
		models.ColIsoResistance: d.Values[FeatIsoRes],
		models.ColGasPPM:        d.Values[FeatGasPPM],
		models.ColSoP:           sop,
	}, nil
}
