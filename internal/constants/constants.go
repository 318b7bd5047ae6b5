// Package constants provides named constants used throughout the gossipsim codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Topology defaults
const (
	// DefaultNodeCount is the number of nodes placed when no count is configured.
	DefaultNodeCount = 50

	// DefaultWidth is the width of the placement region.
	DefaultWidth = 800.0

	// DefaultHeight is the height of the placement region.
	DefaultHeight = 600.0

	// DefaultMargin is the inset kept free on every side of the placement region,
	// so that visualizers never clip a node at the border.
	DefaultMargin = 50.0

	// DefaultRadiusFactor scales min(width, height) into the connection radius.
	DefaultRadiusFactor = 0.15

	// DefaultSeed is used when callers pass seed 0.
	DefaultSeed int64 = 1

	// MaxNodeCount bounds the configured node count. The pairwise edge scan is
	// quadratic, and the engine is tuned for a few hundred nodes.
	MaxNodeCount = 1000
)

// Gossip parameter defaults
const (
	// DefaultFanout is the number of neighbors an infected node targets per round.
	DefaultFanout = 3

	// DefaultTransmissionProbability is the chance a single delivery succeeds.
	DefaultTransmissionProbability = 0.8

	// DefaultMaxHopCount caps how far a message may travel.
	DefaultMaxHopCount = 10

	// DefaultInfectionProbability is the chance a susceptible node becomes
	// infected on receiving a new message.
	DefaultInfectionProbability = 0.1

	// DefaultRecoveryProbability is the chance an infected node is removed per step.
	DefaultRecoveryProbability = 0.05
)

// Probability bounds, inclusive on both sides.
const (
	MinProbability = 0.0
	MaxProbability = 1.0
)

// Run defaults
const (
	// DefaultRunSteps is the step limit for headless runs. Zero means "until the
	// epidemic dies out".
	DefaultRunSteps = 0

	// DefaultIntervalMillis is the auto-stepping cadence used by the snapshot server.
	DefaultIntervalMillis = 100

	// DefaultServerAddr is the listen address for the snapshot server.
	DefaultServerAddr = "localhost:8088"

	// DefaultLogLevel is the operational log level.
	DefaultLogLevel = "info"
)
