// Package gossip implements an SIR (susceptible, infected, removed) gossip
// simulation over a random geometric network.
//
// The Engine is single-threaded and externally driven: callers start an
// epidemic, then advance it one Step at a time. All randomness comes from one
// seeded *rand.Rand owned by the engine and shared with the topology builder,
// so equal seeds and equal call sequences replay identically.
package gossip

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/nvandessel/gossipsim/internal/logging"
	"github.com/nvandessel/gossipsim/internal/rng"
	"github.com/nvandessel/gossipsim/internal/topology"
)

// StepReport summarizes one call to Step.
type StepReport struct {
	Step            int  `json:"step"`
	Propagators     int  `json:"propagators"`
	MessagesCreated int  `json:"messages_created"`
	Deliveries      int  `json:"deliveries"`
	Duplicates      int  `json:"duplicates"`
	NewInfections   int  `json:"new_infections"`
	Recoveries      int  `json:"recoveries"`
	Advanced        bool `json:"advanced"`
	Running         bool `json:"running"`
}

// Statistics is a point-in-time summary of the epidemic.
type Statistics struct {
	Step        int `json:"step"`
	Susceptible int `json:"susceptible"`
	Infected    int `json:"infected"`
	Removed     int `json:"removed"`

	// TotalMessages sums each node's distinct known message ids, so a message
	// held by three nodes counts three times.
	TotalMessages int `json:"total_messages"`

	// MessagesCreated counts messages originated since the last reset.
	MessagesCreated int  `json:"messages_created"`
	Running         bool `json:"running"`
}

// Engine owns the topology, the nodes and the epidemic state.
// It is not safe for concurrent use; see internal/driver for a locked wrapper.
type Engine struct {
	rng    *rand.Rand
	seed   int64
	width  float64
	height float64

	topoOpts []topology.Option
	topo     *topology.Topology
	nodes    []*Node

	params Parameters

	step           int
	messageCounter int
	generation     int
	running        bool

	logger *slog.Logger
	now    func() time.Time
}

// NewEngine builds a topology of nodeCount nodes in a width×height region and
// returns an idle engine. Seed 0 is an alias for constants.DefaultSeed: both
// produce the same topology and trajectory, though Seed reports what was passed.
func NewEngine(nodeCount int, width, height float64, seed int64, opts ...Option) (*Engine, error) {
	cfg := newEngineConfig(opts...)
	if cfg.err != nil {
		return nil, cfg.err
	}

	e := &Engine{
		rng:      rng.New(seed),
		seed:     seed,
		width:    width,
		height:   height,
		topoOpts: cfg.topoOpts,
		params:   cfg.params,
		logger:   cfg.logger,
		now:      cfg.now,
	}
	if e.logger == nil {
		e.logger = logging.Discard()
	}

	topo, err := e.build(nodeCount)
	if err != nil {
		return nil, err
	}
	e.install(topo)

	rep := topo.Report()
	e.logger.Info("gossip engine created",
		"nodes", rep.Nodes,
		"edges", rep.Edges,
		"radius", rep.Radius,
		"repair_edges", rep.RepairEdges,
		"seed", seed)
	return e, nil
}

func (e *Engine) build(nodeCount int) (*topology.Topology, error) {
	opts := append([]topology.Option{topology.WithRand(e.rng)}, e.topoOpts...)
	topo, err := topology.Build(nodeCount, e.width, e.height, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return topo, nil
}

// install replaces the node set with fresh nodes on topo.
func (e *Engine) install(topo *topology.Topology) {
	e.topo = topo
	e.nodes = make([]*Node, topo.Len())
	for id := range e.nodes {
		pos, _ := topo.Position(id)
		e.nodes[id] = newNode(id, pos, e.params.InfectionProbability, e.params.RecoveryProbability)
	}
}

// StartGossip resets every node, infects the given ids and marks the engine
// running. All ids are validated before anything changes. A nil slice infects
// node 0 when it exists; an empty non-nil slice starts a run that the next
// Step ends.
func (e *Engine) StartGossip(initial []int) error {
	if initial == nil && len(e.nodes) > 0 {
		initial = []int{0}
	}
	for _, id := range initial {
		if err := e.checkID(id); err != nil {
			return err
		}
	}

	e.resetNodes()
	for _, id := range initial {
		e.nodes[id].state = Infected
	}
	e.step = 0
	e.running = true

	e.logger.Info("gossip started", "initial_infected", initial, "generation", e.generation)
	return nil
}

// Step advances the simulation by one tick. It is a no-op when not running.
func (e *Engine) Step() StepReport {
	if !e.running {
		return StepReport{Step: e.step}
	}
	e.step++
	rep := StepReport{Step: e.step, Advanced: true}

	var propagators []int
	for _, n := range e.nodes {
		if n.state == Infected {
			propagators = append(propagators, n.id)
		}
	}
	if len(propagators) == 0 {
		e.running = false
		e.logger.Info("gossip finished", "step", e.step)
		return rep
	}
	rep.Propagators = len(propagators)

	for _, id := range propagators {
		e.propagate(id, &rep)
	}

	for _, n := range e.nodes {
		if n.recover(e.rng) {
			rep.Recoveries++
		}
	}

	rep.Running = e.running
	e.logger.Debug("gossip step",
		"step", rep.Step,
		"propagators", rep.Propagators,
		"deliveries", rep.Deliveries,
		"new_infections", rep.NewInfections,
		"recoveries", rep.Recoveries)
	return rep
}

// propagate sends one new message from id to up to Fanout distinct neighbors.
func (e *Engine) propagate(id int, rep *StepReport) {
	nbrs, _ := e.topo.Neighbors(id)
	if len(nbrs) == 0 {
		return
	}
	targets := rng.Sample(e.rng, nbrs, e.params.Fanout)

	msg := Message{
		ID:        messageID(e.generation, e.messageCounter, id),
		Content:   messageContent(id),
		Origin:    id,
		CreatedAt: e.now(),
	}
	e.messageCounter++
	rep.MessagesCreated++

	for _, target := range targets {
		if !rng.Bernoulli(e.rng, e.params.TransmissionProbability) {
			continue
		}
		if msg.HopCount >= e.params.MaxHopCount {
			continue
		}
		delivered := msg.forwarded()
		fresh, infected := e.nodes[target].receive(e.rng, delivered)
		rep.Deliveries++
		if !fresh {
			rep.Duplicates++
		}
		if infected {
			rep.NewInfections++
		}
		e.logger.Log(context.Background(), logging.LevelTrace, "delivery",
			"message", delivered.ID,
			"from", id,
			"to", target,
			"hops", delivered.HopCount,
			"infected", infected)
	}
}

// UpdateParameters merges u into the current parameters. The merged set is
// validated first; on error nothing changes. Infection and recovery values
// overwrite every node's probability.
func (e *Engine) UpdateParameters(u ParameterUpdate) error {
	next := u.Apply(e.params)
	if err := next.Validate(); err != nil {
		return err
	}
	e.params = next

	if u.InfectionProbability != nil || u.RecoveryProbability != nil {
		for _, n := range e.nodes {
			if u.InfectionProbability != nil {
				n.infectionProbability = *u.InfectionProbability
			}
			if u.RecoveryProbability != nil {
				n.recoveryProbability = *u.RecoveryProbability
			}
		}
	}
	e.logger.Info("parameters updated",
		"fanout", next.Fanout,
		"transmission_probability", next.TransmissionProbability,
		"max_hop_count", next.MaxHopCount,
		"infection_probability", next.InfectionProbability,
		"recovery_probability", next.RecoveryProbability)
	return nil
}

// UpdateParameterFields parses a loosely typed field map and applies it.
func (e *Engine) UpdateParameterFields(fields map[string]any) error {
	u, err := ParseParameterUpdate(fields)
	if err != nil {
		return err
	}
	return e.UpdateParameters(u)
}

// SetNodeProbabilities overrides one node's infection and recovery
// probabilities until the next parameter update touching them.
func (e *Engine) SetNodeProbabilities(id int, infection, recovery float64) error {
	if err := e.checkID(id); err != nil {
		return err
	}
	if err := validateProbability("infection_probability", infection); err != nil {
		return err
	}
	if err := validateProbability("recovery_probability", recovery); err != nil {
		return err
	}
	e.nodes[id].infectionProbability = infection
	e.nodes[id].recoveryProbability = recovery
	return nil
}

// Statistics counts nodes per state and known messages.
func (e *Engine) Statistics() Statistics {
	s := Statistics{
		Step:            e.step,
		MessagesCreated: e.messageCounter,
		Running:         e.running,
	}
	for _, n := range e.nodes {
		switch n.state {
		case Susceptible:
			s.Susceptible++
		case Infected:
			s.Infected++
		case Removed:
			s.Removed++
		}
		s.TotalMessages += len(n.known)
	}
	return s
}

// Reset stops the run, zeroes the counters and returns every node to
// Susceptible. The topology is kept.
func (e *Engine) Reset() {
	e.running = false
	e.step = 0
	e.messageCounter = 0
	e.resetNodes()
	e.logger.Info("gossip reset", "generation", e.generation)
}

// Rebuild draws a new topology of nodeCount nodes from the engine's random
// stream, then resets. Invalid counts leave the engine unchanged.
func (e *Engine) Rebuild(nodeCount int) error {
	topo, err := e.build(nodeCount)
	if err != nil {
		return err
	}
	e.install(topo)
	e.Reset()

	rep := topo.Report()
	e.logger.Info("topology rebuilt", "nodes", rep.Nodes, "edges", rep.Edges, "repair_edges", rep.RepairEdges)
	return nil
}

// resetNodes clears node state and opens a new message-id generation.
func (e *Engine) resetNodes() {
	for _, n := range e.nodes {
		n.reset()
	}
	e.generation++
}

func (e *Engine) checkID(id int) error {
	if id < 0 || id >= len(e.nodes) {
		return fmt.Errorf("%w: node %d out of range [0, %d)", ErrInvalidArgument, id, len(e.nodes))
	}
	return nil
}
