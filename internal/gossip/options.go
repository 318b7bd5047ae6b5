package gossip

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/gossipsim/internal/topology"
)

// Option customizes NewEngine.
// Invalid values are recorded and surface as ErrConfiguration from NewEngine.
type Option func(*engineConfig)

type engineConfig struct {
	params   Parameters
	logger   *slog.Logger
	now      func() time.Time
	topoOpts []topology.Option

	err error
}

func newEngineConfig(opts ...Option) engineConfig {
	cfg := engineConfig{
		params: DefaultParameters(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithParameters replaces the default parameter set. It is validated by NewEngine.
func WithParameters(p Parameters) Option {
	return func(c *engineConfig) {
		if err := p.Validate(); err != nil {
			c.setErr(fmt.Errorf("%w: %w", ErrConfiguration, err))
			return
		}
		c.params = p
	}
}

// WithLogger routes engine logs to l. Panics on nil.
func WithLogger(l *slog.Logger) Option {
	if l == nil {
		panic("gossip: WithLogger(nil)")
	}
	return func(c *engineConfig) {
		c.logger = l
	}
}

// WithClock sets the timestamp source for messages. Panics on nil.
func WithClock(now func() time.Time) Option {
	if now == nil {
		panic("gossip: WithClock(nil)")
	}
	return func(c *engineConfig) {
		c.now = now
	}
}

// WithMargin forwards to topology.WithMargin.
func WithMargin(m float64) Option {
	return func(c *engineConfig) {
		c.topoOpts = append(c.topoOpts, topology.WithMargin(m))
	}
}

// WithRadiusFactor forwards to topology.WithRadiusFactor.
func WithRadiusFactor(f float64) Option {
	return func(c *engineConfig) {
		c.topoOpts = append(c.topoOpts, topology.WithRadiusFactor(f))
	}
}

func (c *engineConfig) setErr(err error) {
	if c.err == nil {
		c.err = err
	}
}
