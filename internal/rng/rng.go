// Package rng provides the uniform random source the simulation draws from.
// The engine only sees the Source interface, so tests can substitute a
// scripted sequence and get fully deterministic rounds.
package rng

import "math/rand/v2"

// Source yields uniform integers and floats in caller-specified ranges.
type Source interface {
	// Intn returns a uniform integer in [0, n). n must be positive.
	Intn(n int) int
	// Float64n returns a uniform float in [0, max).
	Float64n(max float64) float64
}

// PCG is a Source backed by a seeded PCG generator. It is not safe for
// concurrent use; every worker owns its own instance.
type PCG struct {
	r *rand.Rand
}

// NewPCG returns a Source seeded with seed and stream. Workers of the same run
// share the seed and use their index as the stream.
func NewPCG(seed uint64, stream uint64) *PCG {
	return &PCG{r: rand.New(rand.NewPCG(seed, stream))}
}

func (p *PCG) Intn(n int) int { return p.r.IntN(n) }

func (p *PCG) Float64n(max float64) float64 { return p.r.Float64() * max }
