// Package rng centralizes the seeded random source shared by the topology
// builder and the gossip engine.
//
// Every random draw in a simulation comes from one *rand.Rand owned by the
// engine, so equal seeds and equal call sequences replay identically.
// math/rand.Rand is not goroutine-safe; callers serialize access.
package rng

import (
	"math/rand"

	"github.com/nvandessel/gossipsim/internal/constants"
)

// New returns a deterministic *rand.Rand.
// Seed 0 maps to constants.DefaultSeed so the zero value still replays.
func New(seed int64) *rand.Rand {
	if seed == 0 {
		seed = constants.DefaultSeed
	}
	return rand.New(rand.NewSource(seed))
}

// Bernoulli runs one trial with success probability p.
// p >= 1 always succeeds and p <= 0 never does; both still consume a draw so
// that changing a probability never shifts the rest of the stream.
func Bernoulli(r *rand.Rand, p float64) bool {
	return r.Float64() < p
}

// Sample picks min(k, len(ids)) distinct elements of ids uniformly without
// replacement, using a partial Fisher–Yates shuffle over a copy. The input is
// never modified. The result order is the draw order.
func Sample(r *rand.Rand, ids []int, k int) []int {
	n := len(ids)
	if k <= 0 || n == 0 {
		return nil
	}
	if k > n {
		k = n
	}

	pool := make([]int, n)
	copy(pool, ids)
	for i := 0; i < k; i++ {
		j := i + r.Intn(n-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// Choice returns one element of ids chosen uniformly. ok is false for an
// empty slice, in which case no draw is consumed.
func Choice(r *rand.Rand, ids []int) (id int, ok bool) {
	if len(ids) == 0 {
		return 0, false
	}
	return ids[r.Intn(len(ids))], true
}
