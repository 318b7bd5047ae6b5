package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/gossipsim/internal/config"
	"github.com/nvandessel/gossipsim/internal/gossip"
	"github.com/nvandessel/gossipsim/internal/logging"
)

// loadConfig resolves defaults, the config file and environment overrides,
// then applies --log-level. Command-specific flags are layered on by the
// caller before validation.
func loadConfig(cmd *cobra.Command) (*config.SimConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
	}
	return cfg, nil
}

// newLogger returns the operational logger. Logs go to stderr so stdout stays
// parseable.
func newLogger(cmd *cobra.Command, cfg *config.SimConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// eventsDir returns where events.jsonl and audit.jsonl are written.
func eventsDir(cfg *config.SimConfig) string {
	if cfg.Logging.EventsDir != "" {
		return cfg.Logging.EventsDir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".gossipsim")
	}
	return ".gossipsim"
}

// buildEngine constructs an engine from the topology and parameter sections.
func buildEngine(cfg *config.SimConfig, logger *slog.Logger) (*gossip.Engine, error) {
	t := cfg.Topology
	return gossip.NewEngine(t.Nodes, t.Width, t.Height, t.Seed,
		gossip.WithParameters(cfg.Parameters),
		gossip.WithMargin(t.Margin),
		gossip.WithRadiusFactor(t.RadiusFactor),
		gossip.WithLogger(logger),
	)
}

// signalContext is cancelled on the first interrupt.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// closeQuietly closes c and reports failures to w.
func closeQuietly(w io.Writer, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		fmt.Fprintf(w, "warning: closing %s: %v\n", name, err)
	}
}
