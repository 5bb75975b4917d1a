package synth

import (
	"fmt"
	"math/rand/v2"
)

// Draw is the result of class-conditional sampling for one row.
type Draw struct {
	Label int

	// Values holds base features keyed by profile feature name.
	Values map[string]float64

	// Scenario is the name of the scenario that fired, or "".
	Scenario string
}

// SampleFeatures draws the base features of one row of class label.
//
// The class's scenarios are rolled in declared order with one Bernoulli
// trial each; the first that fires supplies overrides and the rest are
// not rolled. Features are then drawn in the profile's BaseOrder.
func SampleFeatures(rng *rand.Rand, label int, p *Profile) (Draw, error) {
	if label < 0 || label >= len(p.Classes) {
		return Draw{}, fmt.Errorf("label %d outside %s label set [0,%d)", label, p.Domain, len(p.Classes))
	}
	cp := &p.Classes[label]

	var active *Scenario
	for i := range cp.Scenarios {
		if rng.Float64() < cp.Scenarios[i].Probability {
			active = &cp.Scenarios[i]
			break
		}
	}

	draw := Draw{Label: label, Values: make(map[string]float64, len(p.BaseOrder))}
	if active != nil {
		draw.Scenario = active.Name
	}
	for _, name := range p.BaseOrder {
		d, ok := cp.Features[name]
		if active != nil {
			if od, has := active.Overrides[name]; has {
				d, ok = od, true
			}
		}
		if !ok {
			return Draw{}, fmt.Errorf("class %s has no distribution for %s", cp.Name, name)
		}
		draw.Values[name] = d.Sample(rng)
	}
	return draw, nil
}
