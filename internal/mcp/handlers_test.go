package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/gossipsim/internal/gossip"
	"github.com/nvandessel/gossipsim/internal/ratelimit"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// certain makes every delivery succeed and infect, with no recovery.
func certain(t *testing.T, s *Server) {
	t.Helper()
	_, _, err := s.handleGossipUpdateParameters(context.Background(), nil, GossipUpdateParametersInput{
		TransmissionProbability: floatPtr(1),
		InfectionProbability:    floatPtr(1),
		RecoveryProbability:     floatPtr(0),
	})
	if err != nil {
		t.Fatalf("update parameters failed: %v", err)
	}
}

func TestHandleGossipStart_DefaultsToNodeZero(t *testing.T) {
	server := setupTestServer(t, 10)

	_, out, err := server.handleGossipStart(context.Background(), nil, GossipStartInput{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if len(out.InitialInfected) != 1 || out.InitialInfected[0] != 0 {
		t.Errorf("InitialInfected = %v, want [0]", out.InitialInfected)
	}
	if out.Statistics.Infected != 1 || out.Statistics.Susceptible != 9 || !out.Statistics.Running {
		t.Errorf("unexpected statistics: %+v", out.Statistics)
	}
	if !strings.Contains(out.Message, "1 infected of 10") {
		t.Errorf("unexpected message %q", out.Message)
	}
}

func TestHandleGossipStart_InvalidID(t *testing.T) {
	server := setupTestServer(t, 10)

	_, _, err := server.handleGossipStart(context.Background(), nil, GossipStartInput{InitialInfected: []int{2, -1}})
	if !errors.Is(err, gossip.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if server.driver.Running() {
		t.Error("a rejected start must not start the run")
	}
}

func TestHandleGossipStep(t *testing.T) {
	server := setupTestServer(t, 2)
	certain(t, server)
	ctx := context.Background()

	if _, _, err := server.handleGossipStart(ctx, nil, GossipStartInput{}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	_, out, err := server.handleGossipStep(ctx, nil, GossipStepInput{})
	if err != nil {
		t.Fatalf("step failed: %v", err)
	}
	if out.Advanced != 1 || len(out.Reports) != 1 {
		t.Fatalf("expected one advanced step, got %+v", out)
	}
	if out.Statistics.Infected != 2 {
		t.Errorf("both nodes should be infected, got %+v", out.Statistics)
	}
}

func TestHandleGossipStep_StopsWhenRunEnds(t *testing.T) {
	server := setupTestServer(t, 5)
	ctx := context.Background()
	_, _, err := server.handleGossipUpdateParameters(ctx, nil, GossipUpdateParametersInput{
		RecoveryProbability:  floatPtr(1),
		InfectionProbability: floatPtr(0),
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, _, err := server.handleGossipStart(ctx, nil, GossipStartInput{}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// step 1 removes the only infected node, step 2 finds nobody infected
	_, out, err := server.handleGossipStep(ctx, nil, GossipStepInput{Steps: 50})
	if err != nil {
		t.Fatalf("step failed: %v", err)
	}
	if out.Advanced != 2 {
		t.Errorf("Advanced = %d, want 2", out.Advanced)
	}
	if out.Statistics.Running {
		t.Error("run should have ended")
	}

	_, out, err = server.handleGossipStep(ctx, nil, GossipStepInput{})
	if err != nil {
		t.Fatalf("step on idle engine failed: %v", err)
	}
	if out.Advanced != 0 || len(out.Reports) != 0 {
		t.Errorf("idle engine should not advance, got %+v", out)
	}
}

func TestHandleGossipStep_NegativeSteps(t *testing.T) {
	server := setupTestServer(t, 5)
	if _, _, err := server.handleGossipStep(context.Background(), nil, GossipStepInput{Steps: -1}); err == nil {
		t.Error("expected error for negative steps")
	}
}

func TestHandleGossipRun(t *testing.T) {
	server := setupTestServer(t, 30)

	_, out, err := server.handleGossipRun(context.Background(), nil, GossipRunInput{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !out.Finished {
		t.Errorf("expected the epidemic to die out, got %+v", out)
	}
	if out.Statistics.Infected != 0 {
		t.Errorf("finished run should have no infected nodes, got %d", out.Statistics.Infected)
	}
	if out.Steps != out.Statistics.Step {
		t.Errorf("Steps = %d, statistics step = %d", out.Steps, out.Statistics.Step)
	}
}

func TestHandleGossipRun_Capped(t *testing.T) {
	server := setupTestServer(t, 20)
	ctx := context.Background()
	_, _, err := server.handleGossipUpdateParameters(ctx, nil, GossipUpdateParametersInput{RecoveryProbability: floatPtr(0)})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	_, out, err := server.handleGossipRun(ctx, nil, GossipRunInput{MaxSteps: 3})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out.Steps != 3 || out.Finished {
		t.Errorf("expected 3 steps and an unfinished run, got %+v", out)
	}
}

func TestHandleGossipStatistics(t *testing.T) {
	server := setupTestServer(t, 12)

	_, out, err := server.handleGossipStatistics(context.Background(), nil, GossipStatisticsInput{})
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}
	if out.Statistics.Susceptible != 12 || out.Topology.Nodes != 12 {
		t.Errorf("unexpected output: %+v", out)
	}
	if out.Parameters != gossip.DefaultParameters() {
		t.Errorf("expected default parameters, got %+v", out.Parameters)
	}
}

func TestHandleGossipSnapshot(t *testing.T) {
	server := setupTestServer(t, 8)
	ctx := context.Background()

	tests := []struct {
		format string
		want   string
	}{
		{"", `"nodes"`},
		{"json", `"edges"`},
		{"dot", "graph gossip {"},
		{"text", "Topology: 8 nodes"},
	}
	for _, tt := range tests {
		t.Run("format="+tt.format, func(t *testing.T) {
			_, out, err := server.handleGossipSnapshot(ctx, nil, GossipSnapshotInput{Format: tt.format})
			if err != nil {
				t.Fatalf("snapshot failed: %v", err)
			}
			if !strings.Contains(out.Snapshot, tt.want) {
				t.Errorf("snapshot missing %q", tt.want)
			}
			if out.NodeCount != 8 {
				t.Errorf("NodeCount = %d, want 8", out.NodeCount)
			}
		})
	}

	if _, _, err := server.handleGossipSnapshot(ctx, nil, GossipSnapshotInput{Format: "html"}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestHandleGossipSnapshot_JSONDecodes(t *testing.T) {
	server := setupTestServer(t, 6)

	_, out, err := server.handleGossipSnapshot(context.Background(), nil, GossipSnapshotInput{Format: "json"})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out.Snapshot), &decoded); err != nil {
		t.Fatalf("snapshot is not JSON: %v", err)
	}
	if nodes, _ := decoded["nodes"].([]any); len(nodes) != 6 {
		t.Errorf("expected 6 nodes, got %v", decoded["nodes"])
	}
}

func TestHandleGossipHistory(t *testing.T) {
	server := setupTestServer(t, 2)
	certain(t, server)
	ctx := context.Background()

	server.handleGossipStart(ctx, nil, GossipStartInput{InitialInfected: []int{0}})
	server.handleGossipStep(ctx, nil, GossipStepInput{})

	_, out, err := server.handleGossipHistory(ctx, nil, GossipHistoryInput{Node: 1})
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if out.State != "infected" {
		t.Errorf("State = %q, want infected", out.State)
	}
	if len(out.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out.Messages))
	}
	m := out.Messages[0]
	if m.Origin != 0 || m.HopCount != 1 || !strings.HasPrefix(m.ID, "msg_") || m.CreatedAt == "" {
		t.Errorf("unexpected message: %+v", m)
	}

	if _, _, err := server.handleGossipHistory(ctx, nil, GossipHistoryInput{Node: 5}); !errors.Is(err, gossip.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unknown node, got %v", err)
	}
}

func TestHandleGossipReset(t *testing.T) {
	server := setupTestServer(t, 10)
	ctx := context.Background()
	server.handleGossipStart(ctx, nil, GossipStartInput{InitialInfected: []int{1, 2, 3}})

	_, out, err := server.handleGossipReset(ctx, nil, GossipResetInput{})
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if out.Statistics.Susceptible != 10 || out.Statistics.Running || out.Statistics.Step != 0 {
		t.Errorf("unexpected statistics after reset: %+v", out.Statistics)
	}
}

func TestHandleGossipRebuild(t *testing.T) {
	server := setupTestServer(t, 10)
	ctx := context.Background()

	_, out, err := server.handleGossipRebuild(ctx, nil, GossipRebuildInput{Nodes: 25})
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if out.Topology.Nodes != 25 {
		t.Errorf("Nodes = %d, want 25", out.Topology.Nodes)
	}

	if _, _, err := server.handleGossipRebuild(ctx, nil, GossipRebuildInput{Nodes: -3}); !errors.Is(err, gossip.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestHandleGossipRebuild_TooLarge(t *testing.T) {
	server := setupTestServer(t, 10)
	_, _, err := server.handleGossipRebuild(context.Background(), nil, GossipRebuildInput{Nodes: 1_000_000})
	if !errors.Is(err, gossip.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestHandleGossipUpdateParameters(t *testing.T) {
	server := setupTestServer(t, 10)
	ctx := context.Background()

	_, out, err := server.handleGossipUpdateParameters(ctx, nil, GossipUpdateParametersInput{
		Fanout:      intPtr(5),
		MaxHopCount: intPtr(2),
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if out.Parameters.Fanout != 5 || out.Parameters.MaxHopCount != 2 {
		t.Errorf("unexpected parameters: %+v", out.Parameters)
	}
	if out.Parameters.TransmissionProbability != gossip.DefaultParameters().TransmissionProbability {
		t.Error("omitted fields should keep their value")
	}
}

func TestHandleGossipUpdateParameters_Rejected(t *testing.T) {
	server := setupTestServer(t, 10)
	ctx := context.Background()

	tests := []struct {
		name string
		in   GossipUpdateParametersInput
	}{
		{"empty", GossipUpdateParametersInput{}},
		{"zero fanout", GossipUpdateParametersInput{Fanout: intPtr(0)}},
		{"probability above one", GossipUpdateParametersInput{InfectionProbability: floatPtr(1.5)}},
		{"negative probability", GossipUpdateParametersInput{RecoveryProbability: floatPtr(-0.1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := server.handleGossipUpdateParameters(ctx, nil, tt.in); !errors.Is(err, gossip.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
	if server.driver.Parameters() != gossip.DefaultParameters() {
		t.Error("rejected updates must not change parameters")
	}
}

func TestHandleGossipRebuild_RateLimited(t *testing.T) {
	server := setupTestServer(t, 10)
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	// gossip_rebuild has burst=2
	for i := 0; i < 2; i++ {
		if _, _, err := server.handleGossipRebuild(ctx, req, GossipRebuildInput{Nodes: 10}); err != nil {
			t.Fatalf("rebuild %d should succeed: %v", i+1, err)
		}
	}
	_, _, err := server.handleGossipRebuild(ctx, req, GossipRebuildInput{Nodes: 10})
	if !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Errorf("expected rate limit error, got: %v", err)
	}
}

func TestHandleStatisticsResource(t *testing.T) {
	server := setupTestServer(t, 7)

	res, err := server.handleStatisticsResource(context.Background(), nil)
	if err != nil {
		t.Fatalf("resource failed: %v", err)
	}
	if len(res.Contents) != 1 {
		t.Fatalf("expected one content block, got %d", len(res.Contents))
	}
	c := res.Contents[0]
	if c.URI != statisticsURI || c.MIMEType != "text/markdown" {
		t.Errorf("unexpected content metadata: %+v", c)
	}
	if !strings.Contains(c.Text, "S=7 I=0 R=0") {
		t.Errorf("unexpected text:\n%s", c.Text)
	}
}
