// Package visualization renders simulation snapshots as Graphviz DOT, JSON
// and plain text, and serves them over HTTP.
package visualization

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nvandessel/gossipsim/internal/constants"
	"github.com/nvandessel/gossipsim/internal/driver"
	"github.com/nvandessel/gossipsim/internal/gossip"
)

// stateColors maps SIR states to fill colors.
var stateColors = map[gossip.State]string{
	gossip.Susceptible: "#9ecae1",
	gossip.Infected:    "#de2d26",
	gossip.Removed:     "#969696",
}

// Render renders snap in the given format.
func Render(format constants.Format, snap driver.Snapshot) ([]byte, error) {
	switch format {
	case constants.FormatDOT:
		return []byte(RenderDOT(snap)), nil
	case constants.FormatJSON:
		return RenderJSON(snap)
	case constants.FormatText:
		return []byte(RenderText(snap)), nil
	default:
		return nil, fmt.Errorf("unsupported format: %q", format)
	}
}

// RenderDOT produces an undirected Graphviz graph. Node positions are pinned
// so `neato -n` reproduces the simulated layout; y is flipped because
// Graphviz grows upward.
func RenderDOT(snap driver.Snapshot) string {
	var b strings.Builder
	b.WriteString("graph gossip {\n")
	b.WriteString("  node [shape=circle, style=filled, fontsize=8, width=0.25, fixedsize=true];\n")
	b.WriteString("  edge [color=\"#bdbdbd\"];\n")

	height := snap.Topology.Height
	for _, n := range snap.Nodes {
		fmt.Fprintf(&b, "  %d [label=\"%d\", fillcolor=%q, pos=\"%.2f,%.2f!\", tooltip=\"%s, %d known\"];\n",
			n.ID, n.ID, stateColors[n.State], n.Position.X, height-n.Position.Y, n.State, n.KnownMessages)
	}

	if len(snap.Edges) > 0 {
		b.WriteString("\n")
	}
	for _, e := range snap.Edges {
		fmt.Fprintf(&b, "  %d -- %d;\n", e[0], e[1])
	}

	b.WriteString("}\n")
	return b.String()
}

// RenderJSON produces indented JSON of the full snapshot.
func RenderJSON(snap driver.Snapshot) ([]byte, error) {
	if snap.Nodes == nil {
		snap.Nodes = []gossip.NodeView{}
	}
	if snap.Edges == nil {
		snap.Edges = [][2]int{}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// RenderText produces a short human-readable summary.
func RenderText(snap driver.Snapshot) string {
	var b strings.Builder
	t := snap.Topology
	s := snap.Statistics

	fmt.Fprintf(&b, "Topology: %d nodes, %d edges in %gx%g (radius %.1f", t.Nodes, t.Edges, t.Width, t.Height, t.Radius)
	if t.RepairEdges > 0 {
		fmt.Fprintf(&b, ", %d repair edges joined %d components", t.RepairEdges, t.ComponentsBeforeRepair)
	}
	b.WriteString(")\n")

	p := snap.Parameters
	fmt.Fprintf(&b, "Parameters: fanout=%d transmission=%.2f max_hops=%d infection=%.2f recovery=%.2f\n",
		p.Fanout, p.TransmissionProbability, p.MaxHopCount, p.InfectionProbability, p.RecoveryProbability)

	status := "stopped"
	if s.Running {
		status = "running"
	}
	fmt.Fprintf(&b, "Step %d (%s): S=%d I=%d R=%d, %d messages created, %d known\n",
		s.Step, status, s.Susceptible, s.Infected, s.Removed, s.MessagesCreated, s.TotalMessages)
	return b.String()
}
