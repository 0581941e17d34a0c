package augment

import "math/rand/v2"

// RandomSource supplies the two random draws the augmenter makes: the
// rotation angle and the noise coordinates. *rand.Rand from math/rand/v2
// satisfies it.
type RandomSource interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
	// IntN returns a value in [0, n).
	IntN(n int) int
}

// NewSource returns an independent PCG stream. Workers processing different
// images should use the same seed with distinct stream numbers.
func NewSource(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}
