package synth

import (
	"math"
	"math/rand/v2"
)

// Inject adds zero-mean Gaussian noise whose standard deviation is
// |value*level|. A zero value comes back unchanged, but a variate is
// still consumed so the stream position never depends on the data.
func Inject(rng *rand.Rand, value, level float64) float64 {
	sigma := math.Abs(value * level)
	return value + sigma*rng.NormFloat64()
}
