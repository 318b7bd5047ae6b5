package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/gossipsim/internal/driver"
	"github.com/nvandessel/gossipsim/internal/mcp"
	"github.com/nvandessel/gossipsim/internal/store"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the simulation as MCP tools over stdio",
		Long: `Expose the simulation to an MCP client (an AI agent or IDE) over stdio.

Tools: gossip_start, gossip_step, gossip_run, gossip_statistics,
gossip_snapshot, gossip_history, gossip_reset, gossip_rebuild,
gossip_update_parameters. Every call is appended to audit.jsonl in the
events directory unless --no-audit is given.

Logs go to stderr; stdout carries the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, applyTopologyFlags, applyParameterFlags, applyRunFlags)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)

			engine, err := buildEngine(cfg, logger)
			if err != nil {
				return fmt.Errorf("build engine: %w", err)
			}
			opts := []driver.Option{driver.WithLogger(logger)}
			if cfg.Trace.Path != "" {
				ts, err := store.NewSQLiteTraceStore(cfg.Trace.Path)
				if err != nil {
					return fmt.Errorf("open trace store: %w", err)
				}
				defer closeQuietly(cmd.ErrOrStderr(), "trace store", ts)
				opts = append(opts, driver.WithObserver(driver.NewTraceRecorder(ts, logger)))
			}

			auditPath := ""
			if noAudit, _ := cmd.Flags().GetBool("no-audit"); !noAudit {
				auditPath = filepath.Join(eventsDir(cfg), mcp.AuditFile)
			}

			srv, err := mcp.NewServer(&mcp.Config{
				Name:      "gossipsim",
				Version:   version,
				AuditPath: auditPath,
				Logger:    logger,
			}, driver.New(engine, opts...))
			if err != nil {
				return fmt.Errorf("create MCP server: %w", err)
			}
			defer srv.Close()

			return srv.Run(cmd.Context())
		},
	}

	addTopologyFlags(cmd)
	addParameterFlags(cmd)
	cmd.Flags().String("trace", "", "SQLite file to record per-step statistics into")
	cmd.Flags().String("events", "", "Directory for audit.jsonl and events.jsonl")
	cmd.Flags().Bool("no-audit", false, "Do not write the tool call audit log")
	return cmd
}
