package topology

import (
	"fmt"
	"math/rand"

	"github.com/nvandessel/gossipsim/internal/constants"
)

// Option customizes a Build call.
// Invalid values are recorded and surface as ErrConfiguration from Build.
type Option func(*buildConfig)

// buildConfig aggregates the knobs used by Build. Later options override earlier ones.
type buildConfig struct {
	seed         int64
	rng          *rand.Rand
	margin       float64
	radiusFactor float64

	// first invalid option, reported by Build
	err error
}

func newBuildConfig(opts ...Option) buildConfig {
	cfg := buildConfig{
		seed:         constants.DefaultSeed,
		margin:       constants.DefaultMargin,
		radiusFactor: constants.DefaultRadiusFactor,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithSeed seeds a fresh random source for this build.
// Ignored when WithRand is also supplied.
func WithSeed(seed int64) Option {
	return func(c *buildConfig) {
		c.seed = seed
	}
}

// WithRand draws positions and repair targets from r, so a caller that owns
// the stream (the gossip engine) keeps one reproducible sequence.
// Panics on nil to surface programmer error early.
func WithRand(r *rand.Rand) Option {
	if r == nil {
		panic("topology: WithRand(nil)")
	}
	return func(c *buildConfig) {
		c.rng = r
	}
}

// WithMargin sets the inset kept free on every side of the region.
func WithMargin(m float64) Option {
	return func(c *buildConfig) {
		if m < 0 || m != m {
			c.setErr(fmt.Errorf("%w: margin %v must be >= 0", ErrConfiguration, m))
			return
		}
		c.margin = m
	}
}

// WithRadiusFactor sets the fraction of min(width, height) used as the
// connection radius.
func WithRadiusFactor(f float64) Option {
	return func(c *buildConfig) {
		if f <= 0 || f != f {
			c.setErr(fmt.Errorf("%w: radius factor %v must be > 0", ErrConfiguration, f))
			return
		}
		c.radiusFactor = f
	}
}

func (c *buildConfig) setErr(err error) {
	if c.err == nil {
		c.err = err
	}
}
