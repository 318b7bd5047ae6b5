package gossip

import (
	"github.com/nvandessel/gossipsim/internal/topology"
)

// NodeCount returns the number of nodes.
func (e *Engine) NodeCount() int { return len(e.nodes) }

// Running reports whether Step will advance the simulation.
func (e *Engine) Running() bool { return e.running }

// CurrentStep returns the step counter.
func (e *Engine) CurrentStep() int { return e.step }

// Seed returns the seed the engine was constructed with.
func (e *Engine) Seed() int64 { return e.seed }

// Parameters returns the current parameter set.
func (e *Engine) Parameters() Parameters { return e.params }

// Topology returns the build report of the current topology.
func (e *Engine) Topology() topology.Report { return e.topo.Report() }

// Position returns the position of node id.
func (e *Engine) Position(id int) (topology.Point, error) {
	if err := e.checkID(id); err != nil {
		return topology.Point{}, err
	}
	return e.nodes[id].position, nil
}

// State returns the SIR state of node id.
func (e *Engine) State(id int) (State, error) {
	if err := e.checkID(id); err != nil {
		return Susceptible, err
	}
	return e.nodes[id].state, nil
}

// Neighbors returns a copy of node id's sorted neighbor ids.
func (e *Engine) Neighbors(id int) ([]int, error) {
	if err := e.checkID(id); err != nil {
		return nil, err
	}
	return e.topo.Neighbors(id)
}

// Edges returns every edge once as {lo, hi}, sorted.
func (e *Engine) Edges() [][2]int { return e.topo.Edges() }

// History returns a copy of the messages node id has received, in receipt order.
func (e *Engine) History(id int) ([]Message, error) {
	if err := e.checkID(id); err != nil {
		return nil, err
	}
	h := e.nodes[id].history
	out := make([]Message, len(h))
	copy(out, h)
	return out, nil
}

// Nodes returns a view of every node in id order.
func (e *Engine) Nodes() []NodeView {
	views := make([]NodeView, len(e.nodes))
	for i, n := range e.nodes {
		nbrs, _ := e.topo.Neighbors(i)
		views[i] = NodeView{
			ID:                   n.id,
			Position:             n.position,
			State:                n.state,
			Neighbors:            nbrs,
			KnownMessages:        len(n.known),
			InfectionProbability: n.infectionProbability,
			RecoveryProbability:  n.recoveryProbability,
		}
	}
	return views
}
