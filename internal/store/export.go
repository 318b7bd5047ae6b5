package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// ExportJSONL writes every step of runID to w, one JSON object per line.
func ExportJSONL(ctx context.Context, s TraceStore, runID string, w io.Writer) error {
	steps, err := s.Steps(ctx, runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	for _, rec := range steps {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to write step %d: %w", rec.Step, err)
		}
	}
	return nil
}
