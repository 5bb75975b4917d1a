package synth

import (
	"fmt"
	"math/rand/v2"
)

// FaultOutcome reports what the fault and annotation-noise trials did.
type FaultOutcome struct {
	Label     int
	Faulted   bool
	Relabeled bool
}

// ApplyFaults runs the two independent corruption trials on a raw row.
//
// Trial one, with the profile's fault probability, adds plus or minus the
// fault magnitude to the designated column of values. Trial two, with the
// mislabel probability, replaces the label with a uniform draw over the
// full label set, which may return the original label.
func ApplyFaults(rng *rand.Rand, values map[string]float64, label int, p *Profile) (FaultOutcome, error) {
	out := FaultOutcome{Label: label}

	if rng.Float64() < p.Fault.Probability {
		v, ok := values[p.Fault.Feature]
		if !ok {
			return out, fmt.Errorf("fault target %s missing from row", p.Fault.Feature)
		}
		offset := p.Fault.Magnitude
		if rng.IntN(2) == 0 {
			offset = -offset
		}
		values[p.Fault.Feature] = v + offset
		out.Faulted = true
	}

	if rng.Float64() < p.MislabelProb {
		out.Label = rng.IntN(len(p.Classes))
		out.Relabeled = true
	}
	return out, nil
}
