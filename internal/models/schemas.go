package models

import "fmt"

// Feature column names. These are the contract with the training pipeline.
const (
	ColPackVoltage   = "Pack_Voltage"
	ColPackCurrent   = "Pack_Current"
	ColInstantPower  = "Instant_Power"
	ColCellMax       = "Cell_Max"
	ColCellMin       = "Cell_Min"
	ColPackTemp      = "Pack_Temp"
	ColThermalGrad   = "Thermal_Grad"
	ColInverterTemp  = "Inverter_Temp"
	ColAmbientTemp   = "Ambient_Temp"
	ColCoolantFlow   = "Coolant_Flow"
	ColIsoResistance = "Iso_Resistance"
	ColGasPPM        = "Gas_PPM"
	ColSoP           = "SoP"

	ColSoC           = "SoC"
	ColInternalRes   = "Internal_Res"
	ColCycleCount    = "Cycle_Count"
	ColDoD           = "DoD"
	ColCellImbalance = "Cell_Imbalance"
	ColCoulombicEff  = "Coulombic_Eff"
	ColPolVoltage    = "Pol_Voltage"
	ColStressIndex   = "Stress_Index"

	ColSpeedAvg          = "Speed_Avg"
	ColBrakeFrequency    = "Brake_Frequency"
	ColBrakeIntensity    = "Brake_Intensity"
	ColThrottleVariance  = "Throttle_Variance"
	ColEnergyConsumption = "Energy_Consumption"
	ColRangeEst          = "Range_Est"
)

// SafetySchema is the pack anomaly dataset layout.
func SafetySchema() Schema {
	return Schema{
		Domain: DomainSafety,
		Columns: []Column{
			Float(ColPackVoltage, 2).Abs(),
			Float(ColPackCurrent, 2).Abs(),
			Float(ColInstantPower, 2).Abs(),
			Float(ColCellMax, 2),
			Float(ColCellMin, 2),
			Float(ColPackTemp, 2),
			Float(ColThermalGrad, 2),
			Float(ColInverterTemp, 2),
			Float(ColAmbientTemp, 2).Unbounded(),
			Float(ColCoolantFlow, 2),
			Float(ColIsoResistance, 2),
			Float(ColGasPPM, 1),
			Float(ColSoP, 1),
		},
		LabelColumn: "Label_Safety",
		ClassNames:  []string{"Normal", "Warning", "Critical"},
	}
}

// HealthSchema is the State-of-Health dataset layout.
func HealthSchema() Schema {
	return Schema{
		Domain: DomainHealth,
		Columns: []Column{
			Float(ColSoC, 1),
			Float(ColInternalRes, 1).Min(50),
			Count(ColCycleCount),
			Float(ColDoD, 2),
			Float(ColCellImbalance, 3),
			Float(ColCoulombicEff, 2).Max(100),
			Float(ColPolVoltage, 2),
			Float(ColStressIndex, 2),
		},
		LabelColumn: "Label_Health",
		ClassNames:  []string{"Good", "Bad"},
	}
}

// DriverSchema is the driving-profile dataset layout.
func DriverSchema() Schema {
	return Schema{
		Domain: DomainDriver,
		Columns: []Column{
			Float(ColSpeedAvg, 1),
			Float(ColBrakeFrequency, 1),
			Float(ColBrakeIntensity, 1).Max(100),
			Float(ColThrottleVariance, 2),
			Float(ColEnergyConsumption, 3),
			Float(ColRangeEst, 1),
		},
		LabelColumn: "Label_Driver",
		ClassNames:  []string{"City", "Highway", "Emergency"},
	}
}

// SchemaFor returns the schema of a domain.
func SchemaFor(d Domain) (Schema, error) {
	switch d {
	case DomainSafety:
		return SafetySchema(), nil
	case DomainHealth:
		return HealthSchema(), nil
	case DomainDriver:
		return DriverSchema(), nil
	}
	return Schema{}, fmt.Errorf("unknown domain %q", d)
}

// DetectSchema finds the domain schema whose layout matches header exactly.
func DetectSchema(header []string) (Schema, error) {
	for _, d := range AllDomains() {
		s, _ := SchemaFor(d)
		if s.MatchesHeader(header) {
			return s, nil
		}
	}
	return Schema{}, fmt.Errorf("header does not match any known dataset schema (%d columns)", len(header))
}
