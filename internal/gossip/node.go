package gossip

import (
	"math/rand"

	"github.com/nvandessel/gossipsim/internal/rng"
	"github.com/nvandessel/gossipsim/internal/topology"
)

// Node is one participant in the simulation. Nodes are owned by the engine;
// callers read them through NodeView.
type Node struct {
	id       int
	position topology.Point
	state    State

	known   map[string]struct{}
	history []Message

	infectionProbability float64
	recoveryProbability  float64
}

// NodeView is a read-only copy of a node's observable state.
type NodeView struct {
	ID                   int            `json:"id"`
	Position             topology.Point `json:"position"`
	State                State          `json:"state"`
	Neighbors            []int          `json:"neighbors"`
	KnownMessages        int            `json:"known_messages"`
	InfectionProbability float64        `json:"infection_probability"`
	RecoveryProbability  float64        `json:"recovery_probability"`
}

func newNode(id int, pos topology.Point, infection, recovery float64) *Node {
	return &Node{
		id:                   id,
		position:             pos,
		state:                Susceptible,
		known:                make(map[string]struct{}),
		infectionProbability: infection,
		recoveryProbability:  recovery,
	}
}

// receive records msg if its id is new. A susceptible node then runs one
// infection trial. Duplicates consume no randomness.
func (n *Node) receive(r *rand.Rand, msg Message) (fresh, infected bool) {
	if _, ok := n.known[msg.ID]; ok {
		return false, false
	}
	n.known[msg.ID] = struct{}{}
	n.history = append(n.history, msg)

	if n.state == Susceptible && rng.Bernoulli(r, n.infectionProbability) {
		n.state = Infected
		return true, true
	}
	return true, false
}

// recover runs one removal trial for an infected node.
func (n *Node) recover(r *rand.Rand) bool {
	if n.state != Infected {
		return false
	}
	if rng.Bernoulli(r, n.recoveryProbability) {
		n.state = Removed
		return true
	}
	return false
}

// reset returns the node to Susceptible and forgets every message.
// Probabilities are kept.
func (n *Node) reset() {
	n.state = Susceptible
	n.known = make(map[string]struct{})
	n.history = nil
}
