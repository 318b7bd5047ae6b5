package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/gossipsim/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect gossipsim configuration",
		Long: `View and check gossipsim configuration.

Configuration is read from ~/.gossipsim/config.yaml (or --config), then
GOSSIPSIM_* environment variables, then command flags.

Examples:
  gossipsim config show                  # effective configuration as YAML
  gossipsim config show --json
  gossipsim config validate sim.yaml     # check a file without running it`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigValidateCmd(),
	)
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			data, err := cfg.Marshal()
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration file",
		Long:  `Validate the given file, or the effective configuration when no file is given.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			var (
				cfg    *config.SimConfig
				source string
				err    error
			)
			if len(args) == 1 {
				source = args[0]
				cfg, err = config.LoadFromFile(source)
			} else {
				source, _ = cmd.Flags().GetString("config")
				if source == "" {
					source = "(effective)"
				}
				cfg, err = loadConfig(cmd)
			}
			if err == nil {
				err = cfg.Validate()
			}

			if jsonOut {
				result := map[string]any{"source": source, "valid": err == nil}
				if err != nil {
					result["error"] = err.Error()
				}
				if encErr := json.NewEncoder(cmd.OutOrStdout()).Encode(result); encErr != nil {
					return encErr
				}
			}
			if err != nil {
				return fmt.Errorf("invalid configuration %s: %w", source, err)
			}
			if !jsonOut {
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration %s is valid.\n", source)
			}
			return nil
		},
	}
}
