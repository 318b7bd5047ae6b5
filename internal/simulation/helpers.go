package simulation

import (
	"strconv"

	"github.com/nvandessel/gossipsim/internal/gossip"
)

// Flood returns parameters under which every infected node messages all of
// its neighbors, every delivery lands and infects, and nobody recovers.
// On a connected topology the epidemic then reaches every node.
func Flood() *gossip.Parameters {
	p := gossip.DefaultParameters()
	p.Fanout = 1_000_000
	p.TransmissionProbability = 1
	p.InfectionProbability = 1
	p.RecoveryProbability = 0
	return &p
}

// Params returns the defaults with fn applied.
func Params(fn func(p *gossip.Parameters)) *gossip.Parameters {
	p := gossip.DefaultParameters()
	if fn != nil {
		fn(&p)
	}
	return &p
}

// SeedSweep copies base once per seed, suffixing the name with the seed.
func SeedSweep(base Scenario, seeds ...int64) []Scenario {
	out := make([]Scenario, len(seeds))
	for i, seed := range seeds {
		s := base
		s.Seed = seed
		s.Name = base.Name + "/seed=" + strconv.FormatInt(seed, 10)
		out[i] = s
	}
	return out
}
