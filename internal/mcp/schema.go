package mcp

import (
	"github.com/nvandessel/gossipsim/internal/gossip"
	"github.com/nvandessel/gossipsim/internal/topology"
)

// GossipStartInput defines the input for the gossip_start tool.
type GossipStartInput struct {
	InitialInfected []int `json:"initial_infected,omitempty" jsonschema:"Node ids to infect at start. Omit to infect node 0"`
}

// GossipStartOutput defines the output for the gossip_start tool.
type GossipStartOutput struct {
	InitialInfected []int             `json:"initial_infected" jsonschema:"Node ids infected at start"`
	Statistics      gossip.Statistics `json:"statistics" jsonschema:"Counts right after start"`
	Message         string            `json:"message" jsonschema:"Human-readable result message"`
}

// GossipStepInput defines the input for the gossip_step tool.
type GossipStepInput struct {
	Steps int `json:"steps,omitempty" jsonschema:"Number of steps to advance (default 1, max 1000). Stops early when the run ends"`
}

// GossipStepOutput defines the output for the gossip_step tool.
type GossipStepOutput struct {
	Advanced   int                 `json:"advanced" jsonschema:"Number of steps that advanced"`
	Reports    []gossip.StepReport `json:"reports" jsonschema:"One report per advanced step"`
	Statistics gossip.Statistics   `json:"statistics" jsonschema:"Counts after the last step"`
}

// GossipRunInput defines the input for the gossip_run tool.
type GossipRunInput struct {
	InitialInfected []int `json:"initial_infected,omitempty" jsonschema:"Node ids to infect. Omit to infect node 0"`
	MaxSteps        int   `json:"max_steps,omitempty" jsonschema:"Step cap (default and max 10000)"`
}

// GossipRunOutput defines the output for the gossip_run tool.
type GossipRunOutput struct {
	Steps      int               `json:"steps" jsonschema:"Steps that advanced"`
	Finished   bool              `json:"finished" jsonschema:"Whether the epidemic died out before the cap"`
	Statistics gossip.Statistics `json:"statistics" jsonschema:"Final counts"`
}

// GossipStatisticsInput defines the input for the gossip_statistics tool.
type GossipStatisticsInput struct{}

// GossipStatisticsOutput defines the output for the gossip_statistics tool.
type GossipStatisticsOutput struct {
	Statistics gossip.Statistics `json:"statistics"`
	Parameters gossip.Parameters `json:"parameters"`
	Topology   topology.Report   `json:"topology"`
}

// GossipSnapshotInput defines the input for the gossip_snapshot tool.
type GossipSnapshotInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: json (default), dot or text"`
}

// GossipSnapshotOutput defines the output for the gossip_snapshot tool.
type GossipSnapshotOutput struct {
	Format    string `json:"format" jsonschema:"Format used"`
	Snapshot  string `json:"snapshot" jsonschema:"Rendered snapshot"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
}

// GossipHistoryInput defines the input for the gossip_history tool.
type GossipHistoryInput struct {
	Node int `json:"node" jsonschema:"Node id"`
}

// GossipHistoryOutput defines the output for the gossip_history tool.
type GossipHistoryOutput struct {
	Node     int            `json:"node"`
	State    string         `json:"state" jsonschema:"susceptible, infected or removed"`
	Messages []HistoryEntry `json:"messages" jsonschema:"Messages received, in receipt order"`
}

// HistoryEntry is one received message.
type HistoryEntry struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Origin    int    `json:"origin"`
	HopCount  int    `json:"hop_count"`
	CreatedAt string `json:"created_at" jsonschema:"RFC 3339 creation time"`
}

// GossipResetInput defines the input for the gossip_reset tool.
type GossipResetInput struct{}

// GossipResetOutput defines the output for the gossip_reset tool.
type GossipResetOutput struct {
	Statistics gossip.Statistics `json:"statistics"`
}

// GossipRebuildInput defines the input for the gossip_rebuild tool.
type GossipRebuildInput struct {
	Nodes int `json:"nodes" jsonschema:"Node count for the new topology"`
}

// GossipRebuildOutput defines the output for the gossip_rebuild tool.
type GossipRebuildOutput struct {
	Topology topology.Report `json:"topology"`
}

// GossipUpdateParametersInput defines the input for the
// gossip_update_parameters tool. Omitted fields keep their value.
type GossipUpdateParametersInput struct {
	Fanout                  *int     `json:"fanout,omitempty" jsonschema:"Neighbors targeted per infected node per step (>= 1)"`
	TransmissionProbability *float64 `json:"transmission_probability,omitempty" jsonschema:"Chance each delivery succeeds (0-1)"`
	MaxHopCount             *int     `json:"max_hop_count,omitempty" jsonschema:"Hop limit for messages (>= 1)"`
	InfectionProbability    *float64 `json:"infection_probability,omitempty" jsonschema:"Chance a new message infects a susceptible node (0-1). Applies to every node"`
	RecoveryProbability     *float64 `json:"recovery_probability,omitempty" jsonschema:"Chance an infected node is removed per step (0-1). Applies to every node"`
}

// GossipUpdateParametersOutput defines the output for the
// gossip_update_parameters tool.
type GossipUpdateParametersOutput struct {
	Parameters gossip.Parameters `json:"parameters"`
}
