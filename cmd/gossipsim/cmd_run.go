package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nvandessel/gossipsim/internal/config"
	"github.com/nvandessel/gossipsim/internal/driver"
	"github.com/nvandessel/gossipsim/internal/gossip"
	"github.com/nvandessel/gossipsim/internal/logging"
	"github.com/nvandessel/gossipsim/internal/store"
)

// runSummary is the final JSON line of a run.
type runSummary struct {
	Steps       int               `json:"steps"`
	Finished    bool              `json:"finished"`
	Interrupted bool              `json:"interrupted,omitempty"`
	Statistics  gossip.Statistics `json:"statistics"`
	RunID       string            `json:"run_id,omitempty"`
	TracePath   string            `json:"trace_path,omitempty"`
	EventsPath  string            `json:"events_path,omitempty"`
}

// stepLine is one JSON line per advanced step.
type stepLine struct {
	Report     gossip.StepReport `json:"report"`
	Statistics gossip.Statistics `json:"statistics"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation headless",
		Long: `Build a network, infect the initial nodes and step until the epidemic
dies out or --steps is reached. One statistics line is printed per step.

Examples:
  gossipsim run                                  # defaults, node 0 infected
  gossipsim run --nodes 200 --seed 7 --interval 0
  gossipsim run --infected 0,5,9 --recovery 0.2 --steps 50
  gossipsim run --trace runs.db --json           # record to SQLite, JSON lines`,
		RunE: runSimulation,
	}

	addTopologyFlags(cmd)
	addParameterFlags(cmd)
	cmd.Flags().Int("steps", 0, "Stop after this many steps (0 = until the epidemic dies out)")
	cmd.Flags().String("infected", "", "Comma-separated initial infected node ids (default 0)")
	cmd.Flags().Duration("interval", 0, "Pause between steps (default from config: 100ms)")
	cmd.Flags().String("trace", "", "SQLite file to record per-step statistics into")
	cmd.Flags().String("events", "", "Directory for events.jsonl (written at debug or trace level)")
	return cmd
}

func applyRunFlags(flags *pflag.FlagSet, cfg *config.SimConfig) error {
	if flags.Changed("steps") {
		cfg.Run.Steps, _ = flags.GetInt("steps")
	}
	if flags.Changed("interval") {
		cfg.Run.Interval, _ = flags.GetDuration("interval")
	}
	if flags.Changed("trace") {
		cfg.Trace.Path, _ = flags.GetString("trace")
	}
	if flags.Changed("events") {
		cfg.Logging.EventsDir, _ = flags.GetString("events")
	}
	return nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	cfg, err := resolveConfig(cmd, applyTopologyFlags, applyParameterFlags, applyRunFlags, applyInfectedFlag)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	opts := []driver.Option{
		driver.WithLogger(logger),
		driver.WithObserver(stepPrinter(out, jsonOut)),
	}

	var recorder *driver.TraceRecorder
	if cfg.Trace.Path != "" {
		ts, err := store.NewSQLiteTraceStore(cfg.Trace.Path)
		if err != nil {
			return fmt.Errorf("open trace store: %w", err)
		}
		defer closeQuietly(cmd.ErrOrStderr(), "trace store", ts)
		recorder = driver.NewTraceRecorder(ts, logger)
		opts = append(opts, driver.WithObserver(recorder))
	}

	events := logging.NewEventLogger(eventsDir(cfg), cfg.Logging.Level)
	defer events.Close()
	if events != nil {
		opts = append(opts, driver.WithObserver(driver.EventObserver{Events: events}))
	}

	d := driver.New(engine, opts...)
	if err := d.Start(initialInfected(cfg)); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	steps, runErr := d.Run(ctx, cfg.Run.Interval, cfg.Run.Steps)
	interrupted := errors.Is(runErr, context.Canceled)
	if runErr != nil && !interrupted {
		return fmt.Errorf("run: %w", runErr)
	}

	summary := runSummary{
		Steps:       steps,
		Statistics:  d.Statistics(),
		Interrupted: interrupted,
		EventsPath:  events.Path(),
	}
	summary.Finished = !summary.Statistics.Running
	if recorder != nil {
		summary.RunID = recorder.RunID()
		summary.TracePath = cfg.Trace.Path
		if err := recorder.Err(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: trace incomplete: %v\n", err)
		}
	}
	return printSummary(out, summary, jsonOut)
}

// applyInfectedFlag parses --infected into the run section.
func applyInfectedFlag(flags *pflag.FlagSet, cfg *config.SimConfig) error {
	if !flags.Changed("infected") {
		return nil
	}
	raw, _ := flags.GetString("infected")
	ids, err := config.ParseIDList(raw)
	if err != nil {
		return fmt.Errorf("--infected: %w", err)
	}
	cfg.Run.InitialInfected = ids
	return nil
}

// initialInfected returns nil for an empty list so the engine infects node 0.
func initialInfected(cfg *config.SimConfig) []int {
	if len(cfg.Run.InitialInfected) == 0 {
		return nil
	}
	return cfg.Run.InitialInfected
}

func stepPrinter(w io.Writer, jsonOut bool) driver.Observer {
	enc := json.NewEncoder(w)
	return driver.Funcs{
		OnStep: func(rep gossip.StepReport, s gossip.Statistics) {
			if jsonOut {
				enc.Encode(stepLine{Report: rep, Statistics: s})
				return
			}
			fmt.Fprintf(w, "step %4d  S=%-4d I=%-4d R=%-4d  sent=%d delivered=%d infected=%d recovered=%d\n",
				s.Step, s.Susceptible, s.Infected, s.Removed,
				rep.MessagesCreated, rep.Deliveries, rep.NewInfections, rep.Recoveries)
		},
	}
}

func printSummary(w io.Writer, s runSummary, jsonOut bool) error {
	if jsonOut {
		return json.NewEncoder(w).Encode(s)
	}

	status := "step limit reached"
	switch {
	case s.Interrupted:
		status = "interrupted"
	case s.Finished:
		status = "epidemic died out"
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stopped after %d steps: %s\n", s.Steps, status)
	st := s.Statistics
	total := st.Susceptible + st.Infected + st.Removed
	reached := 0.0
	if total > 0 {
		reached = float64(st.Infected+st.Removed) / float64(total) * 100
	}
	fmt.Fprintf(w, "  susceptible: %d\n  infected:    %d\n  removed:     %d\n  reached:     %.1f%%\n",
		st.Susceptible, st.Infected, st.Removed, reached)
	fmt.Fprintf(w, "  messages:    %d created, %d known\n", st.MessagesCreated, st.TotalMessages)
	if s.RunID != "" {
		fmt.Fprintf(w, "  trace:       %s (run %s)\n", s.TracePath, s.RunID)
	}
	if s.EventsPath != "" {
		fmt.Fprintf(w, "  events:      %s\n", s.EventsPath)
	}
	return nil
}
