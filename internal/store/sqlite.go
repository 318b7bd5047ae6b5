package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteTraceStore implements TraceStore on a SQLite database file.
type SQLiteTraceStore struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
}

// NewSQLiteTraceStore opens (or creates) the trace database at path.
// The parent directory is created if needed.
func NewSQLiteTraceStore(path string) (*SQLiteTraceStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create trace directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteTraceStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteTraceStore) Path() string {
	return s.path
}

// BeginRun inserts a run row.
func (s *SQLiteTraceStore) BeginRun(ctx context.Context, info RunInfo) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}

	params, err := json.Marshal(info.Parameters)
	if err != nil {
		return "", fmt.Errorf("marshal parameters: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, seed, node_count, edge_count, parameters, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		info.ID, info.Seed, info.NodeCount, info.EdgeCount, string(params),
		info.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("failed to insert run %s: %w", info.ID, err)
	}
	return info.ID, nil
}

// RecordStep inserts a step row.
func (s *SQLiteTraceStore) RecordStep(ctx context.Context, runID string, rec StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.requireRun(ctx, runID); err != nil {
		return err
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO steps (run_id, step, susceptible, infected, removed, total_messages,
			messages_created, deliveries, new_infections, recoveries, running, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Step, rec.Susceptible, rec.Infected, rec.Removed, rec.TotalMessages,
		rec.MessagesCreated, rec.Deliveries, rec.NewInfections, rec.Recoveries,
		boolToInt(rec.Running), rec.RecordedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: run %s step %d", ErrDuplicateStep, runID, rec.Step)
		}
		return fmt.Errorf("failed to insert step %d: %w", rec.Step, err)
	}
	return nil
}

// Steps returns the steps of runID in ascending order.
func (s *SQLiteTraceStore) Steps(ctx context.Context, runID string) ([]StepRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT step, susceptible, infected, removed, total_messages, messages_created,
			deliveries, new_infections, recoveries, running, recorded_at
		FROM steps WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var rec StepRecord
		var running int
		var recordedAt string
		if err := rows.Scan(&rec.Step, &rec.Susceptible, &rec.Infected, &rec.Removed,
			&rec.TotalMessages, &rec.MessagesCreated, &rec.Deliveries, &rec.NewInfections,
			&rec.Recoveries, &running, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		rec.Running = running != 0
		rec.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Runs returns every run ordered by start time.
func (s *SQLiteTraceStore) Runs(ctx context.Context) ([]RunInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seed, node_count, edge_count, parameters, started_at
		FROM runs ORDER BY started_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var info RunInfo
		var params, startedAt string
		if err := rows.Scan(&info.ID, &info.Seed, &info.NodeCount, &info.EdgeCount, &params, &startedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &info.Parameters); err != nil {
			return nil, fmt.Errorf("failed to decode parameters of run %s: %w", info.ID, err)
		}
		info.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Close closes the database. Calling Close twice is a no-op.
func (s *SQLiteTraceStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteTraceStore) requireRun(ctx context.Context, runID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return fmt.Errorf("failed to look up run %s: %w", runID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isConstraintError matches SQLite primary key and unique violations without
// depending on driver-specific error types.
func isConstraintError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
