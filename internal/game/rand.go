package game

import (
	mathrand "math/rand"
	"time"
)

// Rand is the randomness a game draws from. *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// NewRand returns a deterministic source for the given seed.
func NewRand(seed int64) Rand {
	return mathrand.New(mathrand.NewSource(seed))
}

// NewTimeRand seeds from the wall clock.
func NewTimeRand() Rand {
	return NewRand(time.Now().UnixNano())
}

// between returns a uniform integer in [lo, hi].
func between(r Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}

// spread returns a uniform float in [-width, width).
func spread(r Rand, width float64) float64 {
	return (r.Float64()*2 - 1) * width
}
