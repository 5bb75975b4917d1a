package synth

import "math/rand/v2"

// RowStream returns the random stream owned by one row of a dataset.
//
// Derivation: both PCG seed words come from SplitMix64 applied to the
// dataset seed mixed with the row index, so neighbouring rows get
// unrelated streams and any row can be regenerated on its own.
func RowStream(seed int64, row int) *rand.Rand {
	base := splitmix64(uint64(seed))
	hi := splitmix64(base ^ splitmix64(uint64(row)+1))
	lo := splitmix64(hi ^ base)
	return rand.New(rand.NewPCG(hi, lo))
}

// newStream returns a single seeded stream for drawing outside a row.
func newStream(seed int64) *rand.Rand {
	s := splitmix64(uint64(seed))
	return rand.New(rand.NewPCG(s, splitmix64(s)))
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// DrawLabel picks a label index from a discrete prior by inverse CDF.
// The prior is assumed validated (non-negative, sums to one).
func DrawLabel(rng *rand.Rand, prior []float64) int {
	u := rng.Float64()
	var cum float64
	for i, p := range prior {
		cum += p
		if u < cum {
			return i
		}
	}
	return len(prior) - 1
}
