package mcp

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/engine"
	"github.com/nvandessel/swarmlod/internal/ratelimit"
)

// Server wraps the MCP SDK server around a running simulation engine.
type Server struct {
	server       *sdk.Server
	engine       *engine.Engine
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
}

// Config holds server configuration.
type Config struct {
	Name    string // server name (e.g., "swarmlod")
	Version string // server version
	DataDir string // directory for audit logs; empty disables auditing
}

// NewServer creates a new MCP server exposing simulation tools over the
// given engine. The engine must outlive the server.
func NewServer(cfg *Config, eng *engine.Engine) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			// Client initialized, ready to serve
		},
	})

	s := &Server{
		server:       mcpServer,
		engine:       eng,
		toolLimiters: ratelimit.NewToolLimiters(),
	}
	if cfg.DataDir != "" {
		s.auditLogger = NewAuditLogger(cfg.DataDir)
	}

	s.registerTools()
	s.registerResources()
	return s, nil
}

// registerTools registers all simulation tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "swarm_status",
		Description: "Get the current tick, per-tier populations, and active trigger mask",
	}, s.handleStatus)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "swarm_tick",
		Description: "Advance the simulation by one or more ticks and return the resulting metrics",
	}, s.handleTick)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "swarm_metrics",
		Description: "Sample population metrics (health, activity, roles, signal mass) without advancing time",
	}, s.handleMetrics)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "swarm_set_triggers",
		Description: "Set the global trigger bitmask that wakes dormant agents",
	}, s.handleSetTriggers)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "swarm_add_agents",
		Description: "Bulk-insert dormant agents with a shared wake mask",
	}, s.handleAddAgents)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "swarm_shock",
		Description: "Inject a localized signal shock that startles nearby cognitive agents",
	}, s.handleShock)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "swarm_shield_add",
		Description: "Register a harmful action-sequence template with the safety shield",
	}, s.handleShieldAdd)
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         "swarm://status",
		Name:        "swarm-status",
		Description: "Live summary of the simulation: tick, tier populations, and signal field mass.",
		MIMEType:    "text/markdown",
	}, s.handleStatusResource)
}

// handleStatusResource renders the live simulation summary as markdown.
func (s *Server) handleStatusResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	m := s.engine.SampleMetrics()

	var sb strings.Builder
	sb.WriteString("# Swarm Status\n\n")
	sb.WriteString(fmt.Sprintf("Tick %d, %d agents live.\n\n", m.Tick, m.Total))
	for t := 0; t < agent.TierCount; t++ {
		sb.WriteString(fmt.Sprintf("- %s: %d\n", agent.Tier(t), m.Populations[t]))
	}
	sb.WriteString(fmt.Sprintf("\nRoles: %d brokers, %d hoarders, %d neutral.\n", m.Brokers, m.Hoarders, m.Neutrals))
	sb.WriteString(fmt.Sprintf("Signal mass: %.3f. Trigger mask: %#x.\n", m.SignalTotal, uint64(s.engine.GlobalTriggers())))

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      "swarm://status",
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}

// Run starts the MCP server over stdio transport. It blocks until the client
// disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		cancel()
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	s.engine.CancelInflight()
	return err
}

// Close releases server resources. The engine is owned by the caller and is
// not closed here.
func (s *Server) Close() error {
	return s.auditLogger.Close()
}
