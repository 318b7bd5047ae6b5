package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nvandessel/gossipsim/internal/config"
	"github.com/nvandessel/gossipsim/internal/constants"
)

// addTopologyFlags registers the network shape flags. Defaults come from the
// config, so only flags the user set override it.
func addTopologyFlags(cmd *cobra.Command) {
	cmd.Flags().Int("nodes", 0, "Number of nodes (default from config: 50)")
	cmd.Flags().Int64("seed", 0, fmt.Sprintf("Random seed; 0 is the same as seed %d", constants.DefaultSeed))
	cmd.Flags().Float64("width", 0, "Region width (default from config: 800)")
	cmd.Flags().Float64("height", 0, "Region height (default from config: 600)")
}

// addParameterFlags registers the propagation parameter flags.
func addParameterFlags(cmd *cobra.Command) {
	cmd.Flags().Int("fanout", 0, "Neighbors targeted per infected node per step")
	cmd.Flags().Float64("transmission", 0, "Probability a delivery succeeds")
	cmd.Flags().Float64("infection", 0, "Probability a delivery infects a susceptible node")
	cmd.Flags().Float64("recovery", 0, "Probability an infected node is removed each step")
	cmd.Flags().Int("max-hops", 0, "Maximum hop count per message")
}

func applyTopologyFlags(flags *pflag.FlagSet, cfg *config.SimConfig) error {
	if flags.Changed("nodes") {
		cfg.Topology.Nodes, _ = flags.GetInt("nodes")
	}
	if flags.Changed("seed") {
		cfg.Topology.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("width") {
		cfg.Topology.Width, _ = flags.GetFloat64("width")
	}
	if flags.Changed("height") {
		cfg.Topology.Height, _ = flags.GetFloat64("height")
	}
	return nil
}

func applyParameterFlags(flags *pflag.FlagSet, cfg *config.SimConfig) error {
	p := &cfg.Parameters
	if flags.Changed("fanout") {
		p.Fanout, _ = flags.GetInt("fanout")
	}
	if flags.Changed("transmission") {
		p.TransmissionProbability, _ = flags.GetFloat64("transmission")
	}
	if flags.Changed("infection") {
		p.InfectionProbability, _ = flags.GetFloat64("infection")
	}
	if flags.Changed("recovery") {
		p.RecoveryProbability, _ = flags.GetFloat64("recovery")
	}
	if flags.Changed("max-hops") {
		p.MaxHopCount, _ = flags.GetInt("max-hops")
	}
	return nil
}

// flagApplier layers one group of flags over the loaded config.
type flagApplier func(*pflag.FlagSet, *config.SimConfig) error

// resolveConfig loads the config, layers the command's flags over it and
// validates the result.
func resolveConfig(cmd *cobra.Command, apply ...flagApplier) (*config.SimConfig, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	for _, fn := range apply {
		if err := fn(cmd.Flags(), cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
