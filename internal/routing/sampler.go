package routing

import (
	"math/rand"
	"time"
)

// RandomSource is the randomness the sampler draws from. *rand.Rand
// satisfies it; tests substitute seeded or scripted sources.
type RandomSource interface {
	// Intn returns a uniform integer in [0, n). n > 0.
	Intn(n int) int
}

// NewRandomSource returns a generator for seed. Seed 0 seeds from the clock;
// any other seed is used verbatim so runs can be reproduced.
func NewRandomSource(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Shuffle returns a uniformly random permutation of seq using Fisher–Yates.
// The input is not modified.
func Shuffle[T any](seq []T, rng RandomSource) []T {
	out := make([]T, len(seq))
	copy(out, seq)

	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
