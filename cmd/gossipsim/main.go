package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by the release build via -ldflags.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gossipsim",
		Short: "Gossip protocol simulator",
		Long: `gossipsim simulates rumor spreading over a random geometric network.

Nodes are Susceptible, Infected or Removed. Each step every infected node
gossips to a few random neighbors, deliveries may infect susceptible
receivers, and infected nodes may recover. Runs are seeded and reproducible.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.gossipsim/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newTopologyCmd(),
		newServeCmd(),
		newMCPServerCmd(),
		newConfigCmd(),
		newTraceCmd(),
	)
	return rootCmd
}
