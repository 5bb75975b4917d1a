package synth

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// DistKind names a distribution family.
type DistKind string

const (
	KindNormal      DistKind = "normal"      // Mean, Spread = standard deviation
	KindExponential DistKind = "exponential" // Mean = scale
	KindUniform     DistKind = "uniform"     // [Low, High)
)

// Dist is a parametric univariate distribution. It is a plain value so
// profiles can be declared as data and overridden from YAML.
type Dist struct {
	Kind   DistKind `json:"kind" yaml:"kind"`
	Mean   float64  `json:"mean,omitempty" yaml:"mean,omitempty"`
	Spread float64  `json:"spread,omitempty" yaml:"spread,omitempty"`
	Low    float64  `json:"low,omitempty" yaml:"low,omitempty"`
	High   float64  `json:"high,omitempty" yaml:"high,omitempty"`
}

// Normal returns a Gaussian with the given mean and standard deviation.
func Normal(mean, std float64) Dist {
	return Dist{Kind: KindNormal, Mean: mean, Spread: std}
}

// Exponential returns an exponential distribution with the given mean.
func Exponential(mean float64) Dist {
	return Dist{Kind: KindExponential, Mean: mean}
}

// Uniform returns a uniform distribution over [low, high).
func Uniform(low, high float64) Dist {
	return Dist{Kind: KindUniform, Low: low, High: high}
}

// Sample draws one value. Every call consumes exactly one variate from rng.
func (d Dist) Sample(rng *rand.Rand) float64 {
	switch d.Kind {
	case KindNormal:
		return d.Mean + d.Spread*rng.NormFloat64()
	case KindExponential:
		return d.Mean * rng.ExpFloat64()
	case KindUniform:
		return d.Low + (d.High-d.Low)*rng.Float64()
	}
	return math.NaN()
}

// Validate rejects parameters that would make sampling undefined.
func (d Dist) Validate() error {
	for _, v := range []float64{d.Mean, d.Spread, d.Low, d.High} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return configErrorf("%s distribution has non-finite parameter", d.Kind)
		}
	}

	switch d.Kind {
	case KindNormal:
		if d.Spread < 0 {
			return configErrorf("normal distribution spread must be non-negative, got %g", d.Spread)
		}
	case KindExponential:
		if d.Mean <= 0 {
			return configErrorf("exponential distribution mean must be positive, got %g", d.Mean)
		}
	case KindUniform:
		if d.High < d.Low {
			return configErrorf("uniform distribution high (%g) is below low (%g)", d.High, d.Low)
		}
	default:
		return configErrorf("unknown distribution kind %q (valid: normal, exponential, uniform)", d.Kind)
	}
	return nil
}

// String renders the distribution in the notation used by docs and the schema command.
func (d Dist) String() string {
	switch d.Kind {
	case KindNormal:
		return fmt.Sprintf("N(%g, %g)", d.Mean, d.Spread)
	case KindExponential:
		return fmt.Sprintf("Exp(%g)", d.Mean)
	case KindUniform:
		return fmt.Sprintf("U(%g, %g)", d.Low, d.High)
	}
	return string(d.Kind)
}
