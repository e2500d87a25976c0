package utils

import (
	"math/rand"
	"sync"
	"time"
)

// RandSource is a seeded random number generator.
// It is not safe for concurrent use; the search engine draws from it sequentially.
type RandSource struct {
	rng  *rand.Rand
	seed int64
}

// NewRandSource creates a new random source with the given seed.
// A zero seed is replaced by the current time, which Seed() then reports.
func NewRandSource(seed int64) *RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandSource{
		rng:  rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the effective seed, so a time-seeded run can be replayed
func (r *RandSource) Seed() int64 {
	return r.seed
}

// Float64 returns a random float64 in [0.0, 1.0)
func (r *RandSource) Float64() float64 {
	return r.rng.Float64()
}

// Intn returns a random int in [0, n)
func (r *RandSource) Intn(n int) int {
	return r.rng.Intn(n)
}

// UniformFloat64 returns a uniformly distributed random number in [min, max)
func (r *RandSource) UniformFloat64(min, max float64) float64 {
	return min + r.rng.Float64()*(max-min)
}

// Symmetric returns a uniformly distributed random number in [-width, +width)
func (r *RandSource) Symmetric(width float64) float64 {
	return r.UniformFloat64(-width, width)
}

// IntnExcluding returns a random int in [0, n) different from skip.
// n must be at least 2.
func (r *RandSource) IntnExcluding(n, skip int) int {
	k := r.rng.Intn(n - 1)
	if k >= skip {
		k++
	}
	return k
}

// jitter is shared by backoff strategies; guarded because notifiers retry concurrently.
var (
	jitterMu  sync.Mutex
	jitterRng = NewRandSource(0)
)

// JitterFloat64 returns a random float64 in [0.0, 1.0) from a process-wide source
func JitterFloat64() float64 {
	jitterMu.Lock()
	defer jitterMu.Unlock()
	return jitterRng.Float64()
}
