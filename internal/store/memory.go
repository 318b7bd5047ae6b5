package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryTraceStore implements TraceStore for testing and short-lived runs.
type MemoryTraceStore struct {
	mu     sync.RWMutex
	runs   []RunInfo
	steps  map[string][]StepRecord
	closed bool
}

// NewMemoryTraceStore creates an empty in-memory trace store.
func NewMemoryTraceStore() *MemoryTraceStore {
	return &MemoryTraceStore{
		steps: make(map[string][]StepRecord),
	}
}

// BeginRun stores info.
func (s *MemoryTraceStore) BeginRun(ctx context.Context, info RunInfo) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	if _, exists := s.steps[info.ID]; exists {
		return "", fmt.Errorf("run %s already exists", info.ID)
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}

	s.runs = append(s.runs, info)
	s.steps[info.ID] = nil
	return info.ID, nil
}

// RecordStep appends rec to runID.
func (s *MemoryTraceStore) RecordStep(ctx context.Context, runID string, rec StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	recs, ok := s.steps[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	for _, r := range recs {
		if r.Step == rec.Step {
			return fmt.Errorf("%w: run %s step %d", ErrDuplicateStep, runID, rec.Step)
		}
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	s.steps[runID] = append(recs, rec)
	return nil
}

// Steps returns a copy of runID's steps in ascending step order.
func (s *MemoryTraceStore) Steps(ctx context.Context, runID string) ([]StepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	recs, ok := s.steps[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	out := make([]StepRecord, len(recs))
	copy(out, recs)
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}

// Runs returns a copy of every run, oldest first.
func (s *MemoryTraceStore) Runs(ctx context.Context) ([]RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	out := make([]RunInfo, len(s.runs))
	copy(out, s.runs)
	return out, nil
}

// Close marks the store closed.
func (s *MemoryTraceStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
