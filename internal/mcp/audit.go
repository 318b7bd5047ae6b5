package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AuditFile is the audit log name inside the events directory.
const AuditFile = "audit.jsonl"

// AuditEntry records one MCP tool invocation.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Tool       string            `json:"tool"`
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"` // "success", "error" or "rate_limited"
	Error      string            `json:"error,omitempty"`
	Step       int               `json:"step"`
	Params     map[string]string `json:"params,omitempty"`
}

// AuditLogger appends entries to a JSONL file. It is safe for concurrent
// use, and a nil AuditLogger is a no-op.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewAuditLogger opens (or creates) path for appending. On failure a warning
// is printed to stderr and nil is returned; auditing is never fatal.
func NewAuditLogger(path string) *AuditLogger {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create audit log directory %s: %v\n", filepath.Dir(path), err)
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open audit log %s: %v\n", path, err)
		return nil
	}
	return &AuditLogger{file: f, path: path}
}

// Path returns the log file path, or "" for a nil logger.
func (a *AuditLogger) Path() string {
	if a == nil {
		return ""
	}
	return a.path
}

// Log appends entry as one JSON line.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		_, _ = a.file.Write(data)
	}
}

// Close closes the file. Safe to call on nil and more than once.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// listParams are summarized by length instead of logged in full.
var listParams = map[string]bool{
	"initial_infected": true,
}

// sanitizeToolParams flattens tool arguments for the audit log. Unset
// pointers and empty values are dropped, lists are logged as their length.
// A "_param_count" key records how many arguments were set.
func sanitizeToolParams(params map[string]any) map[string]string {
	if params == nil {
		return nil
	}

	result := make(map[string]string)
	set := 0
	for key, val := range params {
		if ids, ok := val.([]int); ok && listParams[key] {
			if ids != nil {
				result[key] = fmt.Sprintf("(%d ids)", len(ids))
				set++
			}
			continue
		}
		s, ok := auditValue(val)
		if !ok {
			continue
		}
		result[key] = s
		set++
	}
	result["_param_count"] = fmt.Sprintf("%d", set)
	return result
}

func auditValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case *int:
		if x == nil {
			return "", false
		}
		return fmt.Sprintf("%d", *x), true
	case *float64:
		if x == nil {
			return "", false
		}
		return fmt.Sprintf("%g", *x), true
	case string:
		return x, x != ""
	case []int:
		if x == nil {
			return "", false
		}
		parts := make([]string, len(x))
		for i, id := range x {
			parts[i] = fmt.Sprintf("%d", id)
		}
		return "[" + strings.Join(parts, ",") + "]", true
	default:
		return fmt.Sprintf("%v", x), true
	}
}

// auditTool records a tool call. rate-limit rejections get their own status.
func (s *Server) auditTool(toolName string, start time.Time, err error, params map[string]string) {
	status := "success"
	errMsg := ""
	if err != nil {
		status = "error"
		if isRateLimited(err) {
			status = "rate_limited"
		}
		errMsg = err.Error()
	}

	s.auditLogger.Log(AuditEntry{
		Timestamp:  start,
		Tool:       toolName,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     status,
		Error:      errMsg,
		Step:       s.driver.Statistics().Step,
		Params:     params,
	})
}
