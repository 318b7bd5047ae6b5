package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nvandessel/gossipsim/internal/store"
)

func newTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded runs",
		Long: `Read runs recorded with --trace.

Examples:
  gossipsim trace runs --db runs.db
  gossipsim trace export --db runs.db <run-id> > run.jsonl`,
	}
	cmd.PersistentFlags().String("db", "", "SQLite trace file (default from config)")

	cmd.AddCommand(
		newTraceRunsCmd(),
		newTraceExportCmd(),
	)
	return cmd
}

// openTraceStore opens --db, falling back to the configured trace path.
func openTraceStore(cmd *cobra.Command) (*store.SQLiteTraceStore, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		path = cfg.Trace.Path
	}
	if path == "" {
		return nil, fmt.Errorf("no trace file: pass --db or set trace.path")
	}
	ts, err := store.NewSQLiteTraceStore(path)
	if err != nil {
		return nil, fmt.Errorf("open trace store: %w", err)
	}
	return ts, nil
}

func newTraceRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			ts, err := openTraceStore(cmd)
			if err != nil {
				return err
			}
			defer closeQuietly(cmd.ErrOrStderr(), "trace store", ts)

			runs, err := ts.Runs(cmd.Context())
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			if jsonOut {
				if runs == nil {
					runs = []store.RunInfo{}
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tSEED\tNODES\tEDGES")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n",
					r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Seed, r.NodeCount, r.EdgeCount)
			}
			return tw.Flush()
		},
	}
}

func newTraceExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a run's steps as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := openTraceStore(cmd)
			if err != nil {
				return err
			}
			defer closeQuietly(cmd.ErrOrStderr(), "trace store", ts)

			return store.ExportJSONL(cmd.Context(), ts, args[0], cmd.OutOrStdout())
		},
	}
}
