package driver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nvandessel/gossipsim/internal/gossip"
	"github.com/nvandessel/gossipsim/internal/logging"
	"github.com/nvandessel/gossipsim/internal/store"
	"github.com/nvandessel/gossipsim/internal/telemetry"
)

// Funcs adapts plain functions to Observer. Nil fields are skipped.
type Funcs struct {
	OnStart  func(run RunStart)
	OnStep   func(rep gossip.StepReport, stats gossip.Statistics)
	OnChange func(change Change, stats gossip.Statistics)
}

func (f Funcs) Started(run RunStart) {
	if f.OnStart != nil {
		f.OnStart(run)
	}
}

func (f Funcs) Stepped(rep gossip.StepReport, stats gossip.Statistics) {
	if f.OnStep != nil {
		f.OnStep(rep, stats)
	}
}

func (f Funcs) Changed(change Change, stats gossip.Statistics) {
	if f.OnChange != nil {
		f.OnChange(change, stats)
	}
}

// MetricsObserver mirrors the engine into Prometheus collectors.
type MetricsObserver struct {
	Metrics *telemetry.Metrics
}

func (o MetricsObserver) Started(run RunStart) {
	o.Metrics.SetStatistics(run.Statistics)
}

func (o MetricsObserver) Stepped(rep gossip.StepReport, stats gossip.Statistics) {
	o.Metrics.ObserveStep(rep, stats)
}

func (o MetricsObserver) Changed(_ Change, stats gossip.Statistics) {
	o.Metrics.SetStatistics(stats)
}

// EventObserver appends start, step and change events to a JSONL event log.
// A nil Events logger makes it a no-op.
type EventObserver struct {
	Events *logging.EventLogger
}

func (o EventObserver) Started(run RunStart) {
	o.Events.Log("start", map[string]any{
		"seed":       run.Seed,
		"nodes":      run.Topology.Nodes,
		"edges":      run.Topology.Edges,
		"initial":    run.Initial,
		"parameters": run.Parameters,
	})
}

func (o EventObserver) Stepped(rep gossip.StepReport, stats gossip.Statistics) {
	o.Events.Log("step", map[string]any{
		"step":             rep.Step,
		"propagators":      rep.Propagators,
		"deliveries":       rep.Deliveries,
		"duplicates":       rep.Duplicates,
		"new_infections":   rep.NewInfections,
		"recoveries":       rep.Recoveries,
		"susceptible":      stats.Susceptible,
		"infected":         stats.Infected,
		"removed":          stats.Removed,
		"total_messages":   stats.TotalMessages,
		"messages_created": stats.MessagesCreated,
		"running":          stats.Running,
	})
}

func (o EventObserver) Changed(change Change, stats gossip.Statistics) {
	o.Events.Log(string(change), map[string]any{
		"step":        stats.Step,
		"susceptible": stats.Susceptible,
		"infected":    stats.Infected,
		"removed":     stats.Removed,
		"running":     stats.Running,
	})
}

// TraceRecorder writes each run and its steps to a TraceStore. Every Start
// opens a new run and records the initial statistics as step 0. A reset or
// rebuild closes the current run.
// Store failures are logged and kept in Err; they never stop the simulation.
type TraceRecorder struct {
	store  store.TraceStore
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	runID string
	err   error
}

// NewTraceRecorder records into st. A nil logger discards.
func NewTraceRecorder(st store.TraceStore, logger *slog.Logger) *TraceRecorder {
	if logger == nil {
		logger = logging.Discard()
	}
	return &TraceRecorder{store: st, logger: logger, now: time.Now}
}

// RunID returns the current run id, or "" before the first start.
func (r *TraceRecorder) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// Err returns the first store error, if any.
func (r *TraceRecorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *TraceRecorder) Started(run RunStart) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := context.Background()
	id, err := r.store.BeginRun(ctx, store.RunInfo{
		Seed:       run.Seed,
		NodeCount:  run.Topology.Nodes,
		EdgeCount:  run.Topology.Edges,
		Parameters: run.Parameters,
		StartedAt:  r.now(),
	})
	if err != nil {
		r.fail("begin run", err)
		r.runID = ""
		return
	}
	r.runID = id
	r.logger.Debug("trace run started", "run_id", id)

	initial := store.NewStepRecord(gossip.StepReport{}, run.Statistics, r.now())
	if err := r.store.RecordStep(ctx, id, initial); err != nil {
		r.fail("record step 0", err)
	}
}

func (r *TraceRecorder) Stepped(rep gossip.StepReport, stats gossip.Statistics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runID == "" {
		return
	}
	rec := store.NewStepRecord(rep, stats, r.now())
	if err := r.store.RecordStep(context.Background(), r.runID, rec); err != nil {
		r.fail("record step", err)
	}
}

func (r *TraceRecorder) Changed(change Change, _ gossip.Statistics) {
	if change != ChangeReset && change != ChangeRebuild {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runID = ""
}

func (r *TraceRecorder) fail(op string, err error) {
	r.logger.Warn("trace store failure", "op", op, "error", err)
	if r.err == nil {
		r.err = err
	}
}
