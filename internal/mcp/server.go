// Package mcp provides an MCP (Model Context Protocol) server that lets an
// agent drive a gossip simulation.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/gossipsim/internal/driver"
	"github.com/nvandessel/gossipsim/internal/logging"
	"github.com/nvandessel/gossipsim/internal/ratelimit"
)

// Server wraps the MCP SDK server around a simulation driver.
type Server struct {
	server       *sdk.Server
	driver       *driver.Driver
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	logger       *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "gossipsim")
	Version string // Server version

	// AuditPath is the JSONL file tool calls are appended to. Empty disables auditing.
	AuditPath string

	Logger *slog.Logger
}

// NewServer creates an MCP server exposing d through the gossip_* tools.
func NewServer(cfg *Config, d *driver.Driver) (*Server, error) {
	if d == nil {
		return nil, fmt.Errorf("mcp: nil driver")
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server:       mcpServer,
		driver:       d,
		toolLimiters: ratelimit.NewToolLimiters(),
		logger:       cfg.Logger,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if cfg.AuditPath != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditPath)
	}

	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves over stdio until the client disconnects, the context is
// cancelled, or the process is interrupted.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server starting", "transport", "stdio")
	err := s.server.Run(ctx, &sdk.StdioTransport{})
	s.auditLogger.Close()
	return err
}

// Close releases the audit log.
func (s *Server) Close() error {
	return s.auditLogger.Close()
}
