package simulation

import (
	"context"
	"slices"
	"testing"

	"github.com/nvandessel/gossipsim/internal/gossip"
)

// AssertMonotoneStates asserts that no node ever moves backwards through
// Susceptible -> Infected -> Removed across the captured trajectory.
func AssertMonotoneStates(t *testing.T, result SimulationResult) {
	t.Helper()
	prev := result.Initial.States
	for _, sr := range result.Steps {
		for id, s := range sr.States {
			if s < prev[id] {
				t.Errorf("AssertMonotoneStates: step %d: node %d went %s -> %s", sr.Statistics.Step, id, prev[id], s)
			}
		}
		prev = sr.States
	}
}

// AssertCountsConserved asserts S+I+R equals the node count at every step.
func AssertCountsConserved(t *testing.T, result SimulationResult) {
	t.Helper()
	n := result.Topology.Nodes
	check := func(s gossip.Statistics) {
		if got := s.Susceptible + s.Infected + s.Removed; got != n {
			t.Errorf("AssertCountsConserved: step %d: S+I+R = %d, want %d", s.Step, got, n)
		}
	}
	check(result.Initial.Statistics)
	for _, sr := range result.Steps {
		check(sr.Statistics)
	}
}

// AssertStepsConsecutive asserts step numbers run 1, 2, 3... with no gaps and
// that only the last step may report the run as stopped.
func AssertStepsConsecutive(t *testing.T, result SimulationResult) {
	t.Helper()
	for i, sr := range result.Steps {
		if sr.Statistics.Step != i+1 {
			t.Errorf("AssertStepsConsecutive: entry %d has step %d", i, sr.Statistics.Step)
		}
		if !sr.Statistics.Running && i != len(result.Steps)-1 {
			t.Errorf("AssertStepsConsecutive: step %d stopped but more steps followed", sr.Statistics.Step)
		}
	}
}

// AssertSymmetricNeighbors asserts every neighbor relation is mutual, sorted
// and free of self loops.
func AssertSymmetricNeighbors(t *testing.T, result SimulationResult) {
	t.Helper()
	nodes := result.Final.Nodes
	for _, n := range nodes {
		if !slices.IsSorted(n.Neighbors) {
			t.Errorf("AssertSymmetricNeighbors: node %d neighbors not sorted: %v", n.ID, n.Neighbors)
		}
		for _, m := range n.Neighbors {
			if m == n.ID {
				t.Errorf("AssertSymmetricNeighbors: node %d lists itself", n.ID)
				continue
			}
			if _, ok := slices.BinarySearch(nodes[m].Neighbors, n.ID); !ok {
				t.Errorf("AssertSymmetricNeighbors: %d lists %d but not the reverse", n.ID, m)
			}
		}
	}
}

// AssertSimpleGraph asserts neighbor lists are sets: strictly ascending, so no
// neighbor appears twice, and their total length matches the edge list.
func AssertSimpleGraph(t *testing.T, result SimulationResult) {
	t.Helper()
	degrees := 0
	for _, n := range result.Final.Nodes {
		for i := 1; i < len(n.Neighbors); i++ {
			if n.Neighbors[i-1] >= n.Neighbors[i] {
				t.Errorf("AssertSimpleGraph: node %d has repeated or unordered neighbors %v", n.ID, n.Neighbors)
				break
			}
		}
		degrees += len(n.Neighbors)
	}
	edges := len(result.Final.Edges)
	if edges != result.Topology.Edges {
		t.Errorf("AssertSimpleGraph: %d edges listed, report says %d", edges, result.Topology.Edges)
	}
	if degrees != 2*edges {
		t.Errorf("AssertSimpleGraph: degree sum %d, want %d", degrees, 2*edges)
	}
}

// AssertConnected asserts every node is reachable from node 0.
func AssertConnected(t *testing.T, result SimulationResult) {
	t.Helper()
	nodes := result.Final.Nodes
	if len(nodes) == 0 {
		return
	}
	seen := make([]bool, len(nodes))
	seen[0] = true
	queue := []int{0}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, m := range nodes[id].Neighbors {
			if !seen[m] {
				seen[m] = true
				queue = append(queue, m)
			}
		}
	}
	for id, ok := range seen {
		if !ok {
			t.Errorf("AssertConnected: node %d unreachable from node 0", id)
		}
	}
}

// AssertTerminates asserts the epidemic stopped on its own within maxSteps.
func AssertTerminates(t *testing.T, result SimulationResult, maxSteps int) {
	t.Helper()
	if !result.Finished() {
		t.Errorf("AssertTerminates: %s still running after %d steps", result.Scenario, len(result.Steps))
		return
	}
	if len(result.Steps) > maxSteps {
		t.Errorf("AssertTerminates: %s took %d steps, want at most %d", result.Scenario, len(result.Steps), maxSteps)
	}
	if last := result.Last().Statistics; last.Infected != 0 {
		t.Errorf("AssertTerminates: stopped with %d infected nodes", last.Infected)
	}
}

// AssertReachFraction asserts at least minFraction of the nodes left
// Susceptible by the end of the run.
func AssertReachFraction(t *testing.T, result SimulationResult, minFraction float64) {
	t.Helper()
	s := result.Final.Statistics
	n := s.Susceptible + s.Infected + s.Removed
	if n == 0 {
		return
	}
	reached := float64(s.Infected+s.Removed) / float64(n)
	if reached < minFraction {
		t.Errorf("AssertReachFraction: %s reached %.2f of nodes, want at least %.2f", result.Scenario, reached, minFraction)
	}
}

// AssertMessagesCreatedMatchPropagators asserts that every step created one
// message per propagator that had at least one neighbor. With a connected
// topology of two or more nodes that is every propagator.
func AssertMessagesCreatedMatchPropagators(t *testing.T, result SimulationResult) {
	t.Helper()
	if result.Topology.Nodes < 2 {
		return
	}
	for _, sr := range result.Steps {
		if sr.Report.MessagesCreated != sr.Report.Propagators {
			t.Errorf("AssertMessagesCreatedMatchPropagators: step %d: %d messages for %d propagators",
				sr.Report.Step, sr.Report.MessagesCreated, sr.Report.Propagators)
		}
	}
}

// AssertTraceMatches asserts the trace store holds step 0 plus one row per
// captured step, with matching counts.
func AssertTraceMatches(t *testing.T, result SimulationResult) {
	t.Helper()
	if result.Store == nil || result.RunID == "" {
		t.Fatal("AssertTraceMatches: result has no trace run")
	}
	recs, err := result.Store.Steps(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("AssertTraceMatches: Steps: %v", err)
	}
	if len(recs) != len(result.Steps)+1 {
		t.Fatalf("AssertTraceMatches: %d trace rows, want %d", len(recs), len(result.Steps)+1)
	}

	want := append([]StepResult{result.Initial}, result.Steps...)
	for i, rec := range recs {
		s := want[i].Statistics
		if rec.Step != s.Step || rec.Susceptible != s.Susceptible || rec.Infected != s.Infected ||
			rec.Removed != s.Removed || rec.TotalMessages != s.TotalMessages || rec.Running != s.Running {
			t.Errorf("AssertTraceMatches: row %d = %+v, want statistics %+v", i, rec, s)
		}
	}
}

// AssertSameTrajectory asserts two results passed through identical states.
func AssertSameTrajectory(t *testing.T, a, b SimulationResult) {
	t.Helper()
	if len(a.Steps) != len(b.Steps) {
		t.Fatalf("AssertSameTrajectory: %d steps vs %d", len(a.Steps), len(b.Steps))
	}
	if !slices.Equal(a.Initial.States, b.Initial.States) {
		t.Error("AssertSameTrajectory: initial states differ")
	}
	for i := range a.Steps {
		if a.Steps[i].Report != b.Steps[i].Report {
			t.Errorf("AssertSameTrajectory: step %d reports differ: %+v vs %+v", i+1, a.Steps[i].Report, b.Steps[i].Report)
		}
		if !slices.Equal(a.Steps[i].States, b.Steps[i].States) {
			t.Errorf("AssertSameTrajectory: step %d states differ", i+1)
		}
	}
}

// AssertOneHopDeliveries asserts every message a node holds arrived directly
// from its origin, a neighbor of the holder.
func AssertOneHopDeliveries(t *testing.T, result SimulationResult) {
	t.Helper()
	if result.Driver == nil {
		t.Fatal("AssertOneHopDeliveries: result has no driver")
	}
	for _, n := range result.Final.Nodes {
		msgs, err := result.Driver.History(n.ID)
		if err != nil {
			t.Fatalf("AssertOneHopDeliveries: History(%d): %v", n.ID, err)
		}
		for _, m := range msgs {
			if m.HopCount != 1 {
				t.Errorf("AssertOneHopDeliveries: node %d holds %s with hop count %d", n.ID, m.ID, m.HopCount)
			}
			if _, ok := slices.BinarySearch(n.Neighbors, m.Origin); !ok {
				t.Errorf("AssertOneHopDeliveries: node %d holds %s from non-neighbor %d", n.ID, m.ID, m.Origin)
			}
		}
	}
}
