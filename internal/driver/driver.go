// Package driver serializes access to a gossip engine so HTTP and MCP
// front-ends can share it, and runs the tick loop that advances it.
//
// The engine itself stays single-threaded; every Driver method takes the
// driver's mutex for the duration of one engine call. Observers are notified
// while the lock is held, so they see steps in order.
package driver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nvandessel/gossipsim/internal/gossip"
	"github.com/nvandessel/gossipsim/internal/logging"
	"github.com/nvandessel/gossipsim/internal/topology"
)

// RunStart describes a freshly started epidemic.
type RunStart struct {
	Seed       int64
	Topology   topology.Report
	Parameters gossip.Parameters
	Initial    []int
	Statistics gossip.Statistics
}

// Change names a state change that happened outside a step.
type Change string

const (
	ChangeReset      Change = "reset"
	ChangeRebuild    Change = "rebuild"
	ChangeParameters Change = "parameters"
)

// Observer receives lifecycle notifications. Implementations must not call
// back into the Driver.
type Observer interface {
	Started(run RunStart)
	Stepped(rep gossip.StepReport, stats gossip.Statistics)
	Changed(change Change, stats gossip.Statistics)
}

// Snapshot is a consistent read of everything a front-end renders.
type Snapshot struct {
	Nodes      []gossip.NodeView `json:"nodes"`
	Edges      [][2]int          `json:"edges"`
	Statistics gossip.Statistics `json:"statistics"`
	Parameters gossip.Parameters `json:"parameters"`
	Topology   topology.Report   `json:"topology"`
}

// Driver is a mutex-guarded handle on one engine.
type Driver struct {
	mu        sync.Mutex
	engine    *gossip.Engine
	observers []Observer
	logger    *slog.Logger
}

// Option customizes New.
type Option func(*Driver)

// WithObserver registers o for lifecycle notifications.
func WithObserver(o Observer) Option {
	return func(d *Driver) {
		if o != nil {
			d.observers = append(d.observers, o)
		}
	}
}

// WithLogger sets the driver's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// New wraps e.
func New(e *gossip.Engine, opts ...Option) *Driver {
	d := &Driver{engine: e, logger: logging.Discard()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddObserver registers o after construction.
func (d *Driver) AddObserver(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, o)
}

// Start begins a new epidemic from initial (nil means node 0).
func (d *Driver) Start(initial []int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.engine.StartGossip(initial); err != nil {
		return err
	}
	if initial == nil && d.engine.NodeCount() > 0 {
		initial = []int{0}
	}
	run := RunStart{
		Seed:       d.engine.Seed(),
		Topology:   d.engine.Topology(),
		Parameters: d.engine.Parameters(),
		Initial:    initial,
		Statistics: d.engine.Statistics(),
	}
	for _, o := range d.observers {
		o.Started(run)
	}
	return nil
}

// Step advances the engine once and notifies observers when it advanced.
func (d *Driver) Step() (gossip.StepReport, gossip.Statistics) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stepLocked()
}

func (d *Driver) stepLocked() (gossip.StepReport, gossip.Statistics) {
	rep := d.engine.Step()
	stats := d.engine.Statistics()
	if rep.Advanced {
		for _, o := range d.observers {
			o.Stepped(rep, stats)
		}
	}
	return rep, stats
}

// Reset stops the run and clears epidemic state.
func (d *Driver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.engine.Reset()
	d.notifyChanged(ChangeReset)
}

// Rebuild replaces the topology with one of nodeCount nodes.
func (d *Driver) Rebuild(nodeCount int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.engine.Rebuild(nodeCount); err != nil {
		return err
	}
	d.notifyChanged(ChangeRebuild)
	return nil
}

// UpdateParameters applies a typed update.
func (d *Driver) UpdateParameters(u gossip.ParameterUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.engine.UpdateParameters(u); err != nil {
		return err
	}
	d.notifyChanged(ChangeParameters)
	return nil
}

// UpdateParameterFields applies a loosely typed update.
func (d *Driver) UpdateParameterFields(fields map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.engine.UpdateParameterFields(fields); err != nil {
		return err
	}
	d.notifyChanged(ChangeParameters)
	return nil
}

func (d *Driver) notifyChanged(c Change) {
	stats := d.engine.Statistics()
	for _, o := range d.observers {
		o.Changed(c, stats)
	}
}

// Statistics returns the current statistics.
func (d *Driver) Statistics() gossip.Statistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.Statistics()
}

// Parameters returns the current parameters.
func (d *Driver) Parameters() gossip.Parameters {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.Parameters()
}

// Running reports whether the engine is running.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.Running()
}

// History returns node id's received messages.
func (d *Driver) History(id int) ([]gossip.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.History(id)
}

// State returns node id's SIR state.
func (d *Driver) State(id int) (gossip.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.State(id)
}

// Snapshot reads nodes, edges, statistics and parameters under one lock.
func (d *Driver) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		Nodes:      d.engine.Nodes(),
		Edges:      d.engine.Edges(),
		Statistics: d.engine.Statistics(),
		Parameters: d.engine.Parameters(),
		Topology:   d.engine.Topology(),
	}
}

// Run steps the engine every interval until it stops running, maxSteps steps
// have advanced (0 means no limit), or ctx is done. interval 0 steps without
// pausing. Returns the number of steps that advanced.
func (d *Driver) Run(ctx context.Context, interval time.Duration, maxSteps int) (int, error) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	steps := 0
	for {
		if maxSteps > 0 && steps >= maxSteps {
			return steps, nil
		}
		if !d.Running() {
			return steps, nil
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				return steps, ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return steps, err
		}

		if rep, _ := d.Step(); rep.Advanced {
			steps++
		}
	}
}

// Loop ticks every interval until ctx is done, stepping whenever the engine
// is running. It is the auto-stepper behind the snapshot server: runs started
// later through the API are picked up on the next tick.
func (d *Driver) Loop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.mu.Lock()
			if d.engine.Running() {
				rep, stats := d.stepLocked()
				if !stats.Running {
					d.logger.Info("auto-step run finished", "step", rep.Step, "removed", stats.Removed)
				}
			}
			d.mu.Unlock()
		}
	}
}
