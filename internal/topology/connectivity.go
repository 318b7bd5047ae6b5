package topology

import (
	"math/rand"
	"sort"

	"github.com/nvandessel/gossipsim/internal/rng"
)

// reachableFrom runs an iterative breadth-first traversal from start and
// returns the visited ids in visit order. Neighbor slices are sorted, so the
// order is deterministic.
func (t *Topology) reachableFrom(start int) []int {
	n := len(t.neighbors)
	if start < 0 || start >= n {
		return nil
	}

	seen := make([]bool, n)
	queue := []int{start}
	seen[start] = true

	for qi := 0; qi < len(queue); qi++ {
		u := queue[qi]
		for _, v := range t.neighbors[u] {
			if !seen[v] {
				seen[v] = true
				queue = append(queue, v)
			}
		}
	}
	return queue
}

// repair links every node the traversal from node 0 missed. Unreached nodes are
// handled in ascending id order; each gets one edge to a target drawn uniformly
// from the visited list as it stands, then joins that list. A target that is
// already a neighbor adds no edge, but the draw is still made.
// Returns the number of edges added.
func (t *Topology) repair(r *rand.Rand) int {
	n := len(t.neighbors)
	if n < 2 {
		return 0
	}

	visited := t.reachableFrom(0)
	if len(visited) == n {
		return 0
	}

	seen := make([]bool, n)
	for _, id := range visited {
		seen[id] = true
	}

	added := 0
	touched := make(map[int]struct{})
	for id := 0; id < n; id++ {
		if seen[id] {
			continue
		}
		target, _ := rng.Choice(r, visited)
		if t.link(id, target) {
			touched[id] = struct{}{}
			touched[target] = struct{}{}
			added++
		}

		seen[id] = true
		visited = append(visited, id)
	}

	// link appends, which breaks the ascending order for repaired nodes
	for id := range touched {
		sort.Ints(t.neighbors[id])
	}
	return added
}
