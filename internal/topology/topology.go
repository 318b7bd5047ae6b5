// Package topology builds the spatial network the gossip engine runs on.
//
// Nodes are placed uniformly inside an inset rectangle and every pair within
// the connection radius is linked, giving a random geometric graph. A repair
// pass then links every node the traversal from node 0 could not reach, so the
// result is always connected.
//
// The neighbor relation lives in a gonum simple.UndirectedGraph, which keeps it
// symmetric by construction. Sorted per-node neighbor slices are cached because
// gonum iterates neighbors in map order and the engine needs a stable order.
package topology

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/nvandessel/gossipsim/internal/rng"
)

// Point is a position in the placement region.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Report summarizes one Build.
type Report struct {
	Nodes                  int     `json:"nodes"`
	Edges                  int     `json:"edges"`
	Width                  float64 `json:"width"`
	Height                 float64 `json:"height"`
	Radius                 float64 `json:"radius"`
	ComponentsBeforeRepair int     `json:"components_before_repair"`
	RepairEdges            int     `json:"repair_edges"`
}

// Topology is an immutable, connected spatial graph over node ids 0..n-1.
type Topology struct {
	positions []Point
	graph     *simple.UndirectedGraph
	neighbors [][]int
	report    Report
}

// Build places nodeCount nodes in a width×height region and connects them.
//
// nodeCount == 0 yields an empty topology. Negative counts, non-positive or
// non-finite dimensions, and margins that leave no interior return
// ErrConfiguration. Equal seeds (or equal WithRand streams) give equal graphs.
func Build(nodeCount int, width, height float64, opts ...Option) (*Topology, error) {
	cfg := newBuildConfig(opts...)
	if cfg.err != nil {
		return nil, cfg.err
	}
	if err := validate(nodeCount, width, height, cfg.margin); err != nil {
		return nil, err
	}

	r := cfg.rng
	if r == nil {
		r = rng.New(cfg.seed)
	}

	t := &Topology{
		positions: make([]Point, nodeCount),
		graph:     simple.NewUndirectedGraph(),
		neighbors: make([][]int, nodeCount),
	}

	radius := math.Min(width, height) * cfg.radiusFactor
	t.place(r, width, height, cfg.margin)
	t.connectWithin(radius)

	components := 0
	if nodeCount > 0 {
		components = len(topo.ConnectedComponents(t.graph))
	}
	repaired := t.repair(r)

	t.report = Report{
		Nodes:                  nodeCount,
		Edges:                  t.graph.Edges().Len(),
		Width:                  width,
		Height:                 height,
		Radius:                 radius,
		ComponentsBeforeRepair: components,
		RepairEdges:            repaired,
	}
	return t, nil
}

func validate(nodeCount int, width, height, margin float64) error {
	if nodeCount < 0 {
		return fmt.Errorf("%w: node count %d must be >= 0", ErrConfiguration, nodeCount)
	}
	if !(width > 0) || math.IsInf(width, 0) {
		return fmt.Errorf("%w: width %v must be a positive finite number", ErrConfiguration, width)
	}
	if !(height > 0) || math.IsInf(height, 0) {
		return fmt.Errorf("%w: height %v must be a positive finite number", ErrConfiguration, height)
	}
	if width <= 2*margin || height <= 2*margin {
		return fmt.Errorf("%w: margin %v leaves no interior in %vx%v", ErrConfiguration, margin, width, height)
	}
	return nil
}

// place samples every position in ascending id order, x before y.
func (t *Topology) place(r *rand.Rand, width, height, margin float64) {
	for i := range t.positions {
		x := margin + r.Float64()*(width-2*margin)
		y := margin + r.Float64()*(height-2*margin)
		t.positions[i] = Point{X: x, Y: y}
		t.graph.AddNode(simple.Node(int64(i)))
	}
}

// connectWithin links every unordered pair no farther apart than radius.
// Pairs are scanned i ascending, j ascending, so neighbor slices come out sorted.
func (t *Topology) connectWithin(radius float64) {
	n := len(t.positions)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if distance(t.positions[i], t.positions[j]) <= radius {
				t.link(i, j)
			}
		}
	}
}

// link adds the undirected edge u-v. It reports false and changes nothing when
// the edge already exists.
func (t *Topology) link(u, v int) bool {
	if t.graph.HasEdgeBetween(int64(u), int64(v)) {
		return false
	}
	t.graph.SetEdge(t.graph.NewEdge(simple.Node(int64(u)), simple.Node(int64(v))))
	t.neighbors[u] = append(t.neighbors[u], v)
	t.neighbors[v] = append(t.neighbors[v], u)
	return true
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Len returns the number of nodes.
func (t *Topology) Len() int {
	return len(t.positions)
}

// Report returns the build summary.
func (t *Topology) Report() Report {
	return t.report
}

// Position returns the position of node id.
func (t *Topology) Position(id int) (Point, error) {
	if id < 0 || id >= len(t.positions) {
		return Point{}, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return t.positions[id], nil
}

// Neighbors returns a copy of the sorted neighbor ids of node id.
func (t *Topology) Neighbors(id int) ([]int, error) {
	if id < 0 || id >= len(t.neighbors) {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	out := make([]int, len(t.neighbors[id]))
	copy(out, t.neighbors[id])
	return out, nil
}

// Degree returns the neighbor count of node id, or 0 for unknown ids.
func (t *Topology) Degree(id int) int {
	if id < 0 || id >= len(t.neighbors) {
		return 0
	}
	return len(t.neighbors[id])
}

// HasEdge reports whether u and v are neighbors.
func (t *Topology) HasEdge(u, v int) bool {
	if u == v {
		return false
	}
	return t.graph.HasEdgeBetween(int64(u), int64(v))
}

// Edges returns every edge once as {lo, hi}, sorted.
func (t *Topology) Edges() [][2]int {
	edges := make([][2]int, 0, t.report.Edges)
	for u, nbrs := range t.neighbors {
		for _, v := range nbrs {
			if u < v {
				edges = append(edges, [2]int{u, v})
			}
		}
	}
	return edges
}

// Components returns the connected components, each sorted, ordered by their
// smallest id. A repaired topology has exactly one (or none when empty).
func (t *Topology) Components() [][]int {
	comps := topo.ConnectedComponents(t.graph)
	out := make([][]int, 0, len(comps))
	for _, comp := range comps {
		ids := make([]int, 0, len(comp))
		for _, n := range comp {
			ids = append(ids, int(n.ID()))
		}
		sort.Ints(ids)
		out = append(out, ids)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// Connected reports whether every node is reachable from every other.
func (t *Topology) Connected() bool {
	return len(t.positions) == 0 || len(t.reachableFrom(0)) == len(t.positions)
}
