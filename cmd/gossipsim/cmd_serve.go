package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nvandessel/gossipsim/internal/config"
	"github.com/nvandessel/gossipsim/internal/driver"
	"github.com/nvandessel/gossipsim/internal/logging"
	"github.com/nvandessel/gossipsim/internal/ratelimit"
	"github.com/nvandessel/gossipsim/internal/store"
	"github.com/nvandessel/gossipsim/internal/telemetry"
	"github.com/nvandessel/gossipsim/internal/visualization"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulation over HTTP",
		Long: `Serve a JSON snapshot API for a front-end to poll and drive.

The engine is stepped automatically every --interval while a run is active.
Control endpoints (start, step, reset, rebuild, parameters) are rate limited.
Prometheus metrics are exposed at /metrics.

Examples:
  gossipsim serve                              # localhost:8088, 100ms steps
  gossipsim serve --addr :9000 --interval 0    # manual stepping only
  gossipsim serve --start --infected 0,10 --open`,
		RunE: runServe,
	}

	addTopologyFlags(cmd)
	addParameterFlags(cmd)
	cmd.Flags().String("addr", "", "Listen address (default from config: localhost:8088)")
	cmd.Flags().Duration("interval", 0, "Auto-step interval; 0 disables auto-stepping (default from config: 100ms)")
	cmd.Flags().Bool("start", false, "Start a run immediately")
	cmd.Flags().String("infected", "", "Comma-separated initial infected node ids for --start")
	cmd.Flags().Bool("open", false, "Open the index page in a browser")
	cmd.Flags().Float64("rate", 20, "Control requests per second per endpoint; 0 disables limiting")
	cmd.Flags().Int("burst", 40, "Control request burst per endpoint")
	cmd.Flags().String("trace", "", "SQLite file to record per-step statistics into")
	return cmd
}

func applyServeFlags(flags *pflag.FlagSet, cfg *config.SimConfig) error {
	if flags.Changed("addr") {
		cfg.Server.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("interval") {
		cfg.Run.Interval, _ = flags.GetDuration("interval")
	}
	if flags.Changed("trace") {
		cfg.Trace.Path, _ = flags.GetString("trace")
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, applyTopologyFlags, applyParameterFlags, applyServeFlags, applyInfectedFlag)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	metrics := telemetry.New()
	metrics.SetBuildInfo(version)
	opts := []driver.Option{
		driver.WithLogger(logger),
		driver.WithObserver(driver.MetricsObserver{Metrics: metrics}),
	}
	if cfg.Trace.Path != "" {
		ts, err := store.NewSQLiteTraceStore(cfg.Trace.Path)
		if err != nil {
			return fmt.Errorf("open trace store: %w", err)
		}
		defer closeQuietly(cmd.ErrOrStderr(), "trace store", ts)
		opts = append(opts, driver.WithObserver(driver.NewTraceRecorder(ts, logger)))
	}
	events := logging.NewEventLogger(eventsDir(cfg), cfg.Logging.Level)
	defer events.Close()
	if events != nil {
		opts = append(opts, driver.WithObserver(driver.EventObserver{Events: events}))
	}
	d := driver.New(engine, opts...)

	if start, _ := cmd.Flags().GetBool("start"); start {
		if err := d.Start(initialInfected(cfg)); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}

	rate, _ := cmd.Flags().GetFloat64("rate")
	burst, _ := cmd.Flags().GetInt("burst")
	serverOpts := []visualization.ServerOption{
		visualization.WithMetrics(metrics),
		visualization.WithServerLogger(logger),
		visualization.WithAutoStep(cfg.Run.Interval),
	}
	if rate > 0 {
		serverOpts = append(serverOpts, visualization.WithRateLimit(ratelimit.NewLimiter(rate, burst)))
	}
	srv := visualization.NewServer(d, cfg.Server.Addr, serverOpts...)

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	// Wait for server to start
	deadline := time.Now().Add(3 * time.Second)
	for srv.Addr() == "" && time.Now().Before(deadline) {
		select {
		case err := <-errCh:
			return fmt.Errorf("server error: %w", err)
		case <-time.After(10 * time.Millisecond):
		}
	}
	addr := srv.Addr()
	if addr == "" {
		return fmt.Errorf("server failed to start")
	}

	url := "http://" + addr
	fmt.Fprintf(cmd.OutOrStdout(), "Snapshot server running at %s\n", url)
	fmt.Fprintf(cmd.OutOrStdout(), "Press Ctrl-C to stop.\n")

	if open, _ := cmd.Flags().GetBool("open"); open {
		if err := visualization.OpenBrowser(url); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, url)
		}
	}

	if err := <-errCh; err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
