package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/gossipsim/internal/constants"
	"github.com/nvandessel/gossipsim/internal/driver"
	"github.com/nvandessel/gossipsim/internal/visualization"
)

func newTopologyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topology",
		Short: "Build a network and print it",
		Long: `Build the random geometric network for the configured seed and print it.

Formats:
  text  summary of nodes, edges, radius and repair (default)
  json  full snapshot with positions and neighbor lists
  dot   Graphviz; render with: neato -n2 -Tsvg

Examples:
  gossipsim topology --nodes 100 --seed 3
  gossipsim topology --format dot | neato -n2 -Tpng -o net.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			jsonOut, _ := cmd.Flags().GetBool("json")
			f := constants.Format(format)
			if jsonOut && !cmd.Flags().Changed("format") {
				f = constants.FormatJSON
			}
			if !f.Valid() {
				return fmt.Errorf("unknown format %q (valid: text, json, dot)", format)
			}

			cfg, err := resolveConfig(cmd, applyTopologyFlags)
			if err != nil {
				return err
			}
			engine, err := buildEngine(cfg, newLogger(cmd, cfg))
			if err != nil {
				return fmt.Errorf("build engine: %w", err)
			}

			out, err := visualization.Render(f, driver.New(engine).Snapshot())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	addTopologyFlags(cmd)
	cmd.Flags().String("format", string(constants.FormatText), "Output format: text, json or dot")
	return cmd
}
