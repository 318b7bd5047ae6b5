package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/gossipsim/internal/constants"
	"github.com/nvandessel/gossipsim/internal/gossip"
	"github.com/nvandessel/gossipsim/internal/ratelimit"
	"github.com/nvandessel/gossipsim/internal/visualization"
)

const (
	maxStepsPerCall = 1000
	maxRunSteps     = 10000

	statisticsURI = "gossip://statistics"
)

// registerTools registers all gossip MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gossip_start",
		Description: "Reset every node and start a new epidemic from the given initial infected nodes",
	}, s.handleGossipStart)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gossip_step",
		Description: "Advance the running epidemic by one or more steps",
	}, s.handleGossipStep)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gossip_run",
		Description: "Start an epidemic and step it until no node is infected or the step cap is reached",
	}, s.handleGossipRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gossip_statistics",
		Description: "Report susceptible, infected and removed counts plus the current parameters and topology",
	}, s.handleGossipStatistics)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gossip_snapshot",
		Description: "Render the network and node states as JSON, Graphviz DOT or a text summary",
	}, s.handleGossipSnapshot)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gossip_history",
		Description: "List the messages a node has received",
	}, s.handleGossipHistory)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gossip_reset",
		Description: "Stop the run and return every node to susceptible, keeping the topology",
	}, s.handleGossipReset)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gossip_rebuild",
		Description: "Draw a new random geometric topology with the given node count",
	}, s.handleGossipRebuild)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "gossip_update_parameters",
		Description: "Change fanout, transmission, hop limit, infection or recovery probability. Omitted fields are kept",
	}, s.handleGossipUpdateParameters)
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         statisticsURI,
		Name:        "gossip-statistics",
		Description: "Current topology, parameters and epidemic counts.",
		MIMEType:    "text/markdown",
	}, s.handleStatisticsResource)
}

// handleStatisticsResource renders the text snapshot.
func (s *Server) handleStatisticsResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	text := "# Gossip simulation\n\n" + visualization.RenderText(s.driver.Snapshot())
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      statisticsURI,
				MIMEType: "text/markdown",
				Text:     text,
			},
		},
	}, nil
}

// handleGossipStart implements the gossip_start tool.
func (s *Server) handleGossipStart(ctx context.Context, req *sdk.CallToolRequest, args GossipStartInput) (_ *sdk.CallToolResult, _ GossipStartOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("gossip_start", start, retErr, sanitizeToolParams(map[string]any{
			"initial_infected": args.InitialInfected,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gossip_start"); err != nil {
		return nil, GossipStartOutput{}, err
	}

	initial := args.InitialInfected
	if len(initial) == 0 {
		initial = nil
	}
	if err := s.driver.Start(initial); err != nil {
		return nil, GossipStartOutput{}, fmt.Errorf("start: %w", err)
	}
	if initial == nil {
		initial = []int{0}
	}

	stats := s.driver.Statistics()
	return nil, GossipStartOutput{
		InitialInfected: initial,
		Statistics:      stats,
		Message:         fmt.Sprintf("Epidemic started with %d infected of %d nodes", stats.Infected, stats.Susceptible+stats.Infected+stats.Removed),
	}, nil
}

// handleGossipStep implements the gossip_step tool.
func (s *Server) handleGossipStep(ctx context.Context, req *sdk.CallToolRequest, args GossipStepInput) (_ *sdk.CallToolResult, _ GossipStepOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("gossip_step", start, retErr, sanitizeToolParams(map[string]any{
			"steps": args.Steps,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gossip_step"); err != nil {
		return nil, GossipStepOutput{}, err
	}

	n := args.Steps
	switch {
	case n < 0:
		return nil, GossipStepOutput{}, fmt.Errorf("steps must be non-negative, got %d", n)
	case n == 0:
		n = 1
	case n > maxStepsPerCall:
		n = maxStepsPerCall
	}

	out := GossipStepOutput{Reports: []gossip.StepReport{}}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, GossipStepOutput{}, err
		}
		rep, stats := s.driver.Step()
		out.Statistics = stats
		if !rep.Advanced {
			break
		}
		out.Advanced++
		out.Reports = append(out.Reports, rep)
		if !stats.Running {
			break
		}
	}
	if out.Advanced == 0 {
		out.Statistics = s.driver.Statistics()
	}
	return nil, out, nil
}

// handleGossipRun implements the gossip_run tool.
func (s *Server) handleGossipRun(ctx context.Context, req *sdk.CallToolRequest, args GossipRunInput) (_ *sdk.CallToolResult, _ GossipRunOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("gossip_run", start, retErr, sanitizeToolParams(map[string]any{
			"initial_infected": args.InitialInfected,
			"max_steps":        args.MaxSteps,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gossip_run"); err != nil {
		return nil, GossipRunOutput{}, err
	}

	limit := args.MaxSteps
	if limit < 0 {
		return nil, GossipRunOutput{}, fmt.Errorf("max_steps must be non-negative, got %d", limit)
	}
	if limit == 0 || limit > maxRunSteps {
		limit = maxRunSteps
	}

	initial := args.InitialInfected
	if len(initial) == 0 {
		initial = nil
	}
	if err := s.driver.Start(initial); err != nil {
		return nil, GossipRunOutput{}, fmt.Errorf("start: %w", err)
	}

	steps, err := s.driver.Run(ctx, 0, limit)
	if err != nil {
		return nil, GossipRunOutput{}, fmt.Errorf("run interrupted after %d steps: %w", steps, err)
	}
	stats := s.driver.Statistics()
	return nil, GossipRunOutput{
		Steps:      steps,
		Finished:   !stats.Running,
		Statistics: stats,
	}, nil
}

// handleGossipStatistics implements the gossip_statistics tool.
func (s *Server) handleGossipStatistics(ctx context.Context, req *sdk.CallToolRequest, args GossipStatisticsInput) (_ *sdk.CallToolResult, _ GossipStatisticsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("gossip_statistics", start, retErr, nil)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gossip_statistics"); err != nil {
		return nil, GossipStatisticsOutput{}, err
	}

	snap := s.driver.Snapshot()
	return nil, GossipStatisticsOutput{
		Statistics: snap.Statistics,
		Parameters: snap.Parameters,
		Topology:   snap.Topology,
	}, nil
}

// handleGossipSnapshot implements the gossip_snapshot tool.
func (s *Server) handleGossipSnapshot(ctx context.Context, req *sdk.CallToolRequest, args GossipSnapshotInput) (_ *sdk.CallToolResult, _ GossipSnapshotOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("gossip_snapshot", start, retErr, sanitizeToolParams(map[string]any{
			"format": args.Format,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gossip_snapshot"); err != nil {
		return nil, GossipSnapshotOutput{}, err
	}

	format := constants.Format(args.Format)
	if format == "" {
		format = constants.FormatJSON
	}
	if !format.Valid() {
		return nil, GossipSnapshotOutput{}, fmt.Errorf("unsupported format %q (use 'json', 'dot', or 'text')", args.Format)
	}

	snap := s.driver.Snapshot()
	data, err := visualization.Render(format, snap)
	if err != nil {
		return nil, GossipSnapshotOutput{}, fmt.Errorf("render %s: %w", format, err)
	}
	return nil, GossipSnapshotOutput{
		Format:    format.String(),
		Snapshot:  string(data),
		NodeCount: len(snap.Nodes),
		EdgeCount: len(snap.Edges),
	}, nil
}

// handleGossipHistory implements the gossip_history tool.
func (s *Server) handleGossipHistory(ctx context.Context, req *sdk.CallToolRequest, args GossipHistoryInput) (_ *sdk.CallToolResult, _ GossipHistoryOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("gossip_history", start, retErr, sanitizeToolParams(map[string]any{
			"node": args.Node,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gossip_history"); err != nil {
		return nil, GossipHistoryOutput{}, err
	}

	history, err := s.driver.History(args.Node)
	if err != nil {
		return nil, GossipHistoryOutput{}, err
	}
	state, err := s.driver.State(args.Node)
	if err != nil {
		return nil, GossipHistoryOutput{}, err
	}

	out := GossipHistoryOutput{
		Node:     args.Node,
		State:    state.String(),
		Messages: make([]HistoryEntry, 0, len(history)),
	}
	for _, m := range history {
		out.Messages = append(out.Messages, HistoryEntry{
			ID:        m.ID,
			Content:   m.Content,
			Origin:    m.Origin,
			HopCount:  m.HopCount,
			CreatedAt: m.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	return nil, out, nil
}

// handleGossipReset implements the gossip_reset tool.
func (s *Server) handleGossipReset(ctx context.Context, req *sdk.CallToolRequest, args GossipResetInput) (_ *sdk.CallToolResult, _ GossipResetOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("gossip_reset", start, retErr, nil)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gossip_reset"); err != nil {
		return nil, GossipResetOutput{}, err
	}

	s.driver.Reset()
	return nil, GossipResetOutput{Statistics: s.driver.Statistics()}, nil
}

// handleGossipRebuild implements the gossip_rebuild tool.
func (s *Server) handleGossipRebuild(ctx context.Context, req *sdk.CallToolRequest, args GossipRebuildInput) (_ *sdk.CallToolResult, _ GossipRebuildOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("gossip_rebuild", start, retErr, sanitizeToolParams(map[string]any{
			"nodes": args.Nodes,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gossip_rebuild"); err != nil {
		return nil, GossipRebuildOutput{}, err
	}

	if args.Nodes > constants.MaxNodeCount {
		return nil, GossipRebuildOutput{}, fmt.Errorf("%w: nodes must be at most %d, got %d",
			gossip.ErrInvalidArgument, constants.MaxNodeCount, args.Nodes)
	}
	if err := s.driver.Rebuild(args.Nodes); err != nil {
		return nil, GossipRebuildOutput{}, err
	}
	return nil, GossipRebuildOutput{Topology: s.driver.Snapshot().Topology}, nil
}

// handleGossipUpdateParameters implements the gossip_update_parameters tool.
func (s *Server) handleGossipUpdateParameters(ctx context.Context, req *sdk.CallToolRequest, args GossipUpdateParametersInput) (_ *sdk.CallToolResult, _ GossipUpdateParametersOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("gossip_update_parameters", start, retErr, sanitizeToolParams(map[string]any{
			"fanout":                   args.Fanout,
			"transmission_probability": args.TransmissionProbability,
			"max_hop_count":            args.MaxHopCount,
			"infection_probability":    args.InfectionProbability,
			"recovery_probability":     args.RecoveryProbability,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "gossip_update_parameters"); err != nil {
		return nil, GossipUpdateParametersOutput{}, err
	}

	u := gossip.ParameterUpdate(args)
	if u.Empty() {
		return nil, GossipUpdateParametersOutput{}, fmt.Errorf("%w: no parameters given", gossip.ErrInvalidArgument)
	}
	if err := s.driver.UpdateParameters(u); err != nil {
		return nil, GossipUpdateParametersOutput{}, err
	}
	return nil, GossipUpdateParametersOutput{Parameters: s.driver.Parameters()}, nil
}

func isRateLimited(err error) bool {
	return errors.Is(err, ratelimit.ErrRateLimited)
}
