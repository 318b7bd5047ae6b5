package simulation

import (
	"path/filepath"
	"testing"

	"github.com/nvandessel/gossipsim/internal/constants"
	"github.com/nvandessel/gossipsim/internal/driver"
	"github.com/nvandessel/gossipsim/internal/gossip"
	"github.com/nvandessel/gossipsim/internal/store"
)

// safetySteps bounds runs with no MaxSteps.
const safetySteps = 100_000

// Runner orchestrates simulation experiments against a real engine and an
// isolated SQLite trace store.
type Runner struct {
	t     *testing.T
	store *store.SQLiteTraceStore
}

// NewRunner creates a simulation runner with an isolated SQLite store.
func NewRunner(t *testing.T) *Runner {
	t.Helper()

	s, err := store.NewSQLiteTraceStore(filepath.Join(t.TempDir(), "trace.db"))
	if err != nil {
		t.Fatalf("NewRunner: failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &Runner{t: t, store: s}
}

// Run executes the scenario and returns the collected results.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()

	d, recorder := r.setup(scenario)

	if err := d.Start(scenario.InitialInfected); err != nil {
		r.t.Fatalf("%s: start: %v", scenario.Name, err)
	}

	result := SimulationResult{
		Scenario: scenario.Name,
		Topology: d.Snapshot().Topology,
		Initial:  capture(d, gossip.StepReport{}, d.Statistics()),
		Store:    r.store,
	}

	limit := scenario.MaxSteps
	if limit <= 0 {
		limit = safetySteps
	}
	for len(result.Steps) < limit && d.Running() {
		next := len(result.Steps) + 1
		if scenario.BeforeStep != nil {
			scenario.BeforeStep(next, d)
		}
		rep, stats := d.Step()
		if !rep.Advanced {
			break
		}
		result.Steps = append(result.Steps, capture(d, rep, stats))
	}
	if scenario.MaxSteps <= 0 && d.Running() {
		r.t.Fatalf("%s: still running after %d steps", scenario.Name, safetySteps)
	}

	result.Final = d.Snapshot()
	result.RunID = recorder.RunID()
	result.Driver = d
	if err := recorder.Err(); err != nil {
		r.t.Fatalf("%s: trace recorder: %v", scenario.Name, err)
	}
	return result
}

// Engine builds the scenario's engine without running it.
func (r *Runner) Engine(scenario Scenario) *gossip.Engine {
	r.t.Helper()

	width, height := scenario.Width, scenario.Height
	if width == 0 {
		width = constants.DefaultWidth
	}
	if height == 0 {
		height = constants.DefaultHeight
	}

	var opts []gossip.Option
	if scenario.Parameters != nil {
		opts = append(opts, gossip.WithParameters(*scenario.Parameters))
	}
	if scenario.RadiusFactor > 0 {
		opts = append(opts, gossip.WithRadiusFactor(scenario.RadiusFactor))
	}

	e, err := gossip.NewEngine(scenario.Nodes, width, height, scenario.Seed, opts...)
	if err != nil {
		r.t.Fatalf("%s: NewEngine: %v", scenario.Name, err)
	}
	return e
}

func (r *Runner) setup(scenario Scenario) (*driver.Driver, *driver.TraceRecorder) {
	r.t.Helper()
	recorder := driver.NewTraceRecorder(r.store, nil)
	d := driver.New(r.Engine(scenario), driver.WithObserver(recorder))
	return d, recorder
}

func capture(d *driver.Driver, rep gossip.StepReport, stats gossip.Statistics) StepResult {
	snap := d.Snapshot()
	states := make([]gossip.State, len(snap.Nodes))
	for i, n := range snap.Nodes {
		states[i] = n.State
	}
	return StepResult{Report: rep, Statistics: stats, States: states}
}
