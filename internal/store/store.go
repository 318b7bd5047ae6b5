// Package store defines the TraceStore interface for recording per-step
// simulation statistics.
//
// A trace is append-only output: one run row per started simulation and one
// step row per tick. Nothing in a trace is ever read back into an engine.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/gossipsim/internal/gossip"
)

var (
	// ErrRunNotFound is returned when recording into or reading an unknown run.
	ErrRunNotFound = errors.New("store: run not found")

	// ErrDuplicateStep is returned when a step number is recorded twice for a run.
	ErrDuplicateStep = errors.New("store: duplicate step")

	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("store: closed")
)

// RunInfo describes one simulation run.
type RunInfo struct {
	ID         string            `json:"id"`
	Seed       int64             `json:"seed"`
	NodeCount  int               `json:"node_count"`
	EdgeCount  int               `json:"edge_count"`
	Parameters gossip.Parameters `json:"parameters"`
	StartedAt  time.Time         `json:"started_at"`
}

// StepRecord is the statistics snapshot taken after one step.
type StepRecord struct {
	Step            int       `json:"step"`
	Susceptible     int       `json:"susceptible"`
	Infected        int       `json:"infected"`
	Removed         int       `json:"removed"`
	TotalMessages   int       `json:"total_messages"`
	MessagesCreated int       `json:"messages_created"`
	Deliveries      int       `json:"deliveries"`
	NewInfections   int       `json:"new_infections"`
	Recoveries      int       `json:"recoveries"`
	Running         bool      `json:"running"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// NewStepRecord combines a step report with the statistics that followed it.
func NewStepRecord(rep gossip.StepReport, stats gossip.Statistics, at time.Time) StepRecord {
	return StepRecord{
		Step:            stats.Step,
		Susceptible:     stats.Susceptible,
		Infected:        stats.Infected,
		Removed:         stats.Removed,
		TotalMessages:   stats.TotalMessages,
		MessagesCreated: stats.MessagesCreated,
		Deliveries:      rep.Deliveries,
		NewInfections:   rep.NewInfections,
		Recoveries:      rep.Recoveries,
		Running:         stats.Running,
		RecordedAt:      at,
	}
}

// TraceStore records runs and their steps.
type TraceStore interface {
	// BeginRun stores info and returns its run id. An empty info.ID is
	// replaced by a fresh UUID.
	BeginRun(ctx context.Context, info RunInfo) (string, error)

	// RecordStep appends one step to a run.
	RecordStep(ctx context.Context, runID string, rec StepRecord) error

	// Steps returns a run's steps in ascending step order.
	Steps(ctx context.Context, runID string) ([]StepRecord, error)

	// Runs returns every run, oldest first.
	Runs(ctx context.Context) ([]RunInfo, error)

	// Close releases resources.
	Close() error
}
