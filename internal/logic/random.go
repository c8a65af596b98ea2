package logic

import (
	"math"
	"math/rand/v2"
	"sync"
)

// Sampler draws integers from an inclusive range.
type Sampler interface {
	Sample(min, max float64) int
}

// RandomRange samples uniformly over [ceil(min), floor(max)].
// It is safe for concurrent use.
type RandomRange struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomRange creates a RandomRange backed by src.
// A nil src seeds from the runtime's random source.
func NewRandomRange(src rand.Source) *RandomRange {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &RandomRange{rng: rand.New(src)}
}

// Sample returns an integer uniformly distributed over the inclusive range
// after min is rounded up and max is rounded down.
// The caller guarantees ceil(min) <= floor(max).
func (r *RandomRange) Sample(min, max float64) int {
	lo := int(math.Ceil(min))
	hi := int(math.Floor(max))

	r.mu.Lock()
	n := r.rng.IntN(hi - lo + 1)
	r.mu.Unlock()

	return lo + n
}
