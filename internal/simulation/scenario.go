package simulation

import (
	"github.com/nvandessel/gossipsim/internal/driver"
	"github.com/nvandessel/gossipsim/internal/gossip"
	"github.com/nvandessel/gossipsim/internal/store"
	"github.com/nvandessel/gossipsim/internal/topology"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name   string
	Nodes  int
	Width  float64 // 0 = 800
	Height float64 // 0 = 600
	Seed   int64

	// Parameters overrides the defaults when non-nil.
	Parameters *gossip.Parameters

	// RadiusFactor overrides the connection radius factor when positive.
	RadiusFactor float64

	// InitialInfected is passed to StartGossip; nil infects node 0.
	InitialInfected []int

	// MaxSteps caps the run. 0 runs until the epidemic dies out, bounded by
	// a hard safety limit.
	MaxSteps int

	// BeforeStep, when non-nil, is called before step n (1-based) executes.
	// Use it to change parameters mid-run.
	BeforeStep func(step int, d *driver.Driver)
}

// StepResult captures the state after one advanced step.
type StepResult struct {
	Report     gossip.StepReport
	Statistics gossip.Statistics
	States     []gossip.State
}

// SimulationResult captures the trajectory and the final network.
type SimulationResult struct {
	Scenario string
	Topology topology.Report

	// Initial is the state right after StartGossip.
	Initial StepResult

	// Steps holds one entry per advanced step, in order.
	Steps []StepResult

	// Final is the snapshot after the last step.
	Final driver.Snapshot

	RunID string
	Store store.TraceStore

	// Driver is left in its final state for follow-up queries.
	Driver *driver.Driver
}

// Last returns the last captured step, or Initial when nothing advanced.
func (r SimulationResult) Last() StepResult {
	if len(r.Steps) == 0 {
		return r.Initial
	}
	return r.Steps[len(r.Steps)-1]
}

// Finished reports whether the epidemic stopped on its own.
func (r SimulationResult) Finished() bool {
	return !r.Final.Statistics.Running
}
