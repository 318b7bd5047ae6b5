package main

import (
	"bufio"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunCmdImmediateRecovery(t *testing.T) {
	isolateHome(t)

	out, _, err := execute(t, "run",
		"--nodes", "30", "--seed", "4", "--interval", "0",
		"--infection", "0", "--recovery", "1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := strings.Count(out, "step "); got != 2 {
		t.Errorf("step lines = %d, want 2\n%s", got, out)
	}
	if !strings.Contains(out, "Stopped after 2 steps: epidemic died out") {
		t.Errorf("missing summary:\n%s", out)
	}
	if !strings.Contains(out, "removed:     1") {
		t.Errorf("expected one removed node:\n%s", out)
	}
}

func TestRunCmdJSONLines(t *testing.T) {
	isolateHome(t)

	out, _, err := execute(t, "run", "--json",
		"--nodes", "30", "--seed", "4", "--interval", "0",
		"--infection", "0", "--recovery", "1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var lines []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 2 steps + summary\n%s", len(lines), out)
	}

	var first stepLine
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode step line: %v", err)
	}
	if first.Report.Step != 1 || first.Report.MessagesCreated != 1 || first.Statistics.Removed != 1 {
		t.Errorf("step 1 = %+v", first)
	}

	var summary runSummary
	if err := json.Unmarshal([]byte(lines[2]), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Steps != 2 || !summary.Finished || summary.Statistics.Susceptible != 29 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunCmdStepLimit(t *testing.T) {
	isolateHome(t)

	out, _, err := execute(t, "run",
		"--nodes", "40", "--interval", "0", "--steps", "3", "--recovery", "0")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "Stopped after 3 steps: step limit reached") {
		t.Errorf("missing step limit summary:\n%s", out)
	}
}

func TestRunCmdConfigFile(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "sim.yaml")
	writeFile(t, path, `
topology:
  nodes: 12
  seed: 3
parameters:
  infection_probability: 0
  recovery_probability: 1
run:
  interval: 0s
`)

	out, _, err := execute(t, "run", "--config", path, "--json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var summary runSummary
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if got := summary.Statistics.Susceptible + summary.Statistics.Removed; got != 12 {
		t.Errorf("node count from config = %d, want 12", got)
	}
}

func TestRunCmdRejectsBadInput(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero fanout", []string{"--fanout", "0"}, "fanout"},
		{"probability above one", []string{"--transmission", "1.5"}, "transmission"},
		{"malformed infected list", []string{"--infected", "0,x"}, "--infected"},
		{"infected out of range", []string{"--nodes", "10", "--infected", "10"}, "out of range"},
		{"too many nodes", []string{"--nodes", "5000"}, "topology.nodes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"run", "--interval", "0"}, tt.args...)
			_, _, err := execute(t, args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestRunCmdTraceRoundTrip(t *testing.T) {
	isolateHome(t)
	db := filepath.Join(t.TempDir(), "runs.db")

	out, _, err := execute(t, "run", "--json", "--trace", db,
		"--nodes", "20", "--seed", "6", "--interval", "0",
		"--infection", "0", "--recovery", "1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var summary runSummary
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("summary has no run id")
	}

	out, _, err = execute(t, "trace", "runs", "--db", db)
	if err != nil {
		t.Fatalf("trace runs: %v", err)
	}
	if !strings.Contains(out, summary.RunID) {
		t.Errorf("run %s not listed:\n%s", summary.RunID, out)
	}

	out, _, err = execute(t, "trace", "export", "--db", db, summary.RunID)
	if err != nil {
		t.Fatalf("trace export: %v", err)
	}
	// step 0 plus two advanced steps
	if got := len(strings.Split(strings.TrimSpace(out), "\n")); got != 3 {
		t.Errorf("exported %d lines, want 3:\n%s", got, out)
	}

	if _, _, err := execute(t, "trace", "export", "--db", db, "no-such-run"); err == nil {
		t.Error("expected error exporting unknown run")
	}
}

func TestTraceCmdNeedsDatabase(t *testing.T) {
	isolateHome(t)

	_, _, err := execute(t, "trace", "runs")
	if err == nil || !strings.Contains(err.Error(), "no trace file") {
		t.Errorf("err = %v, want no trace file", err)
	}
}

func TestRunCmdWritesEventsAtDebug(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	out, _, err := execute(t, "run", "--json", "--log-level", "debug", "--events", dir,
		"--nodes", "10", "--interval", "0", "--infection", "0", "--recovery", "1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var summary runSummary
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.EventsPath != filepath.Join(dir, "events.jsonl") {
		t.Errorf("events path = %q", summary.EventsPath)
	}
	data := readFile(t, summary.EventsPath)
	if !strings.Contains(data, `"event":"start"`) {
		t.Errorf("events file missing start event:\n%s", data)
	}
}
