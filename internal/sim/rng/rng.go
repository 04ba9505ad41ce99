// Package rng isolates every random draw of the simulation behind Source so
// settlement can be replayed from a seed and probability bands can be tested.
package rng

import (
	"math/rand/v2"
)

// Source is the only randomness the simulation consumes.
type Source interface {
	// Float64 returns a value in [0,1).
	Float64() float64
	// IntN returns a value in [0,n). n must be > 0.
	IntN(n int) int
}

type pcgSource struct {
	r *rand.Rand
}

func (p pcgSource) Float64() float64 { return p.r.Float64() }
func (p pcgSource) IntN(n int) int   { return p.r.IntN(n) }

// New returns a deterministic source for seed.
func New(seed int64) Source {
	return pcgSource{r: rand.New(rand.NewPCG(uint64(seed), mix64(uint64(seed))))}
}

// ForQuarter derives the source used to settle one quarter, so a reloaded
// session settles the same quarter identically.
func ForQuarter(seed int64, quarterIndex int) Source {
	s := mix64(uint64(seed) ^ (uint64(quarterIndex+1) * 0x9e3779b97f4a7c15))
	return pcgSource{r: rand.New(rand.NewPCG(s, mix64(s)))}
}

// ForOp derives the source for the n-th randomized operation taken
// between settlements (recruiting, trait repair).
func ForOp(seed int64, n int) Source {
	s := mix64(^uint64(seed) + uint64(n)*0xd1b54a32d192ed03)
	return pcgSource{r: rand.New(rand.NewPCG(s, mix64(s)))}
}

// Roll returns an integer in [lo,hi] inclusive.
func Roll(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.IntN(hi-lo+1)
}

// Chance reports whether a draw lands under p.
func Chance(src Source, p float64) bool {
	if p <= 0 {
		return false
	}
	return src.Float64() < p
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
