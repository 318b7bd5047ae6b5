package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTopologyCmdFormats(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out string)
	}{
		{
			name: "text default",
			args: nil,
			check: func(t *testing.T, out string) {
				if !strings.HasPrefix(out, "Topology: 20 nodes") {
					t.Errorf("text output = %q", out)
				}
			},
		},
		{
			name: "dot",
			args: []string{"--format", "dot"},
			check: func(t *testing.T, out string) {
				if !strings.HasPrefix(out, "graph gossip {") || !strings.HasSuffix(strings.TrimSpace(out), "}") {
					t.Errorf("dot output = %q", out)
				}
				if !strings.Contains(out, " -- ") {
					t.Error("dot output has no edges")
				}
			},
		},
		{
			name: "json flag implies json format",
			args: []string{"--json"},
			check: func(t *testing.T, out string) {
				var snap struct {
					Nodes []struct {
						ID        int   `json:"id"`
						Neighbors []int `json:"neighbors"`
					} `json:"nodes"`
				}
				if err := json.Unmarshal([]byte(out), &snap); err != nil {
					t.Fatalf("decode: %v\n%s", err, out)
				}
				if len(snap.Nodes) != 20 {
					t.Errorf("nodes = %d, want 20", len(snap.Nodes))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"topology", "--nodes", "20", "--seed", "5"}, tt.args...)
			out, _, err := execute(t, args...)
			if err != nil {
				t.Fatalf("topology: %v", err)
			}
			tt.check(t, out)
		})
	}
}

func TestTopologyCmdSameSeedSameOutput(t *testing.T) {
	isolateHome(t)

	a, _, err := execute(t, "topology", "--format", "dot", "--seed", "9")
	if err != nil {
		t.Fatalf("topology: %v", err)
	}
	b, _, err := execute(t, "topology", "--format", "dot", "--seed", "9")
	if err != nil {
		t.Fatalf("topology: %v", err)
	}
	if a != b {
		t.Error("same seed produced different topologies")
	}
}

func TestTopologyCmdUnknownFormat(t *testing.T) {
	isolateHome(t)

	_, _, err := execute(t, "topology", "--format", "svg")
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("err = %v, want unknown format", err)
	}
}
