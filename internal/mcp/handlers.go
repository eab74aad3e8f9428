package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/engine"
	"github.com/nvandessel/swarmlod/internal/ratelimit"
	"github.com/nvandessel/swarmlod/internal/shield"
)

// maxTickSteps bounds how far one swarm_tick call may advance the clock.
const maxTickSteps = 100

// handleStatus implements the swarm_status tool.
func (s *Server) handleStatus(ctx context.Context, req *sdk.CallToolRequest, args SwarmStatusInput) (_ *sdk.CallToolResult, _ SwarmStatusOutput, retErr error) {
	start := time.Now()
	defer func() { s.auditTool("swarm_status", start, retErr, nil) }()

	if err := ratelimit.CheckLimit(s.toolLimiters, "swarm_status"); err != nil {
		return nil, SwarmStatusOutput{}, err
	}

	m := s.engine.SampleMetrics()
	pops := make(map[string]int, agent.TierCount)
	for t := 0; t < agent.TierCount; t++ {
		pops[agent.Tier(t).String()] = m.Populations[t]
	}

	return nil, SwarmStatusOutput{
		Tick:        m.Tick,
		Total:       m.Total,
		Populations: pops,
		Triggers:    uint64(s.engine.GlobalTriggers()),
		Templates:   len(s.engine.Shield().Templates()),
	}, nil
}

// handleTick implements the swarm_tick tool.
func (s *Server) handleTick(ctx context.Context, req *sdk.CallToolRequest, args SwarmTickInput) (_ *sdk.CallToolResult, _ SwarmTickOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("swarm_tick", start, retErr, sanitizeToolParams(map[string]interface{}{
			"steps": args.Steps,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "swarm_tick"); err != nil {
		return nil, SwarmTickOutput{}, err
	}

	steps := args.Steps
	if steps <= 0 {
		steps = 1
	}
	if steps > maxTickSteps {
		return nil, SwarmTickOutput{}, fmt.Errorf("steps %d exceeds maximum %d", steps, maxTickSteps)
	}

	var last engine.Metrics
	for i := 0; i < steps; i++ {
		m, err := s.engine.Tick(ctx)
		if err != nil {
			return nil, SwarmTickOutput{}, fmt.Errorf("tick %d of %d failed: %w", i+1, steps, err)
		}
		last = m
	}

	return nil, SwarmTickOutput{TicksRun: steps, Metrics: last}, nil
}

// handleMetrics implements the swarm_metrics tool.
func (s *Server) handleMetrics(ctx context.Context, req *sdk.CallToolRequest, args SwarmMetricsInput) (_ *sdk.CallToolResult, _ SwarmMetricsOutput, retErr error) {
	start := time.Now()
	defer func() { s.auditTool("swarm_metrics", start, retErr, nil) }()

	if err := ratelimit.CheckLimit(s.toolLimiters, "swarm_metrics"); err != nil {
		return nil, SwarmMetricsOutput{}, err
	}

	return nil, SwarmMetricsOutput{Metrics: s.engine.SampleMetrics()}, nil
}

// handleSetTriggers implements the swarm_set_triggers tool.
func (s *Server) handleSetTriggers(ctx context.Context, req *sdk.CallToolRequest, args SwarmSetTriggersInput) (_ *sdk.CallToolResult, _ SwarmSetTriggersOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("swarm_set_triggers", start, retErr, sanitizeToolParams(map[string]interface{}{
			"mask": args.Mask,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "swarm_set_triggers"); err != nil {
		return nil, SwarmSetTriggersOutput{}, err
	}

	prev := uint64(s.engine.GlobalTriggers())
	s.engine.SetGlobalTriggers(agent.TriggerMask(args.Mask))

	return nil, SwarmSetTriggersOutput{Previous: prev, Current: args.Mask}, nil
}

// handleAddAgents implements the swarm_add_agents tool. Duplicate IDs are
// skipped and reported rather than failing the whole insert.
func (s *Server) handleAddAgents(ctx context.Context, req *sdk.CallToolRequest, args SwarmAddAgentsInput) (_ *sdk.CallToolResult, _ SwarmAddAgentsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("swarm_add_agents", start, retErr, sanitizeToolParams(map[string]interface{}{
			"count":           args.Count,
			"start_id":        args.StartID,
			"wake_mask":       args.WakeMask,
			"predicted_state": args.PredictedState,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "swarm_add_agents"); err != nil {
		return nil, SwarmAddAgentsOutput{}, err
	}

	if args.Count <= 0 {
		return nil, SwarmAddAgentsOutput{}, fmt.Errorf("count must be positive, got %d", args.Count)
	}
	predicted := args.PredictedState
	if predicted == 0 {
		predicted = 0.5
	}
	if predicted < 0 || predicted > 1 {
		return nil, SwarmAddAgentsOutput{}, fmt.Errorf("predicted_state must be in [0,1], got %v", predicted)
	}

	seeds := make([]agent.Seed, args.Count)
	for i := range seeds {
		seeds[i] = agent.Seed{
			ID:             agent.ID(args.StartID) + agent.ID(i),
			PredictedState: predicted,
			WakeMask:       agent.TriggerMask(args.WakeMask),
		}
	}

	added, err := s.engine.AddDormantAgents(seeds)
	msg := fmt.Sprintf("inserted %d dormant agents", added)
	if err != nil {
		var partial *engine.PartialInsertError
		if !errors.As(err, &partial) {
			return nil, SwarmAddAgentsOutput{}, err
		}
		msg = fmt.Sprintf("inserted %d dormant agents, skipped %d duplicate IDs", added, len(partial.Errors))
	}

	return nil, SwarmAddAgentsOutput{
		Added:   added,
		Total:   s.engine.SampleMetrics().Total,
		Message: msg,
	}, nil
}

// handleShock implements the swarm_shock tool.
func (s *Server) handleShock(ctx context.Context, req *sdk.CallToolRequest, args SwarmShockInput) (_ *sdk.CallToolResult, _ SwarmShockOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("swarm_shock", start, retErr, sanitizeToolParams(map[string]interface{}{
			"x": args.X, "y": args.Y, "radius": args.Radius, "intensity": args.Intensity,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "swarm_shock"); err != nil {
		return nil, SwarmShockOutput{}, err
	}

	radius := args.Radius
	if radius <= 0 {
		radius = 8
	}
	intensity := args.Intensity
	if intensity <= 0 {
		intensity = 1.0
	}

	s.engine.ApplyShock(args.X, args.Y, radius, intensity)
	m := s.engine.SampleMetrics()

	return nil, SwarmShockOutput{
		SignalTotal: m.SignalTotal,
		Message:     fmt.Sprintf("shock applied at (%d,%d) radius %.1f intensity %.2f", args.X, args.Y, radius, intensity),
	}, nil
}

// handleShieldAdd implements the swarm_shield_add tool.
func (s *Server) handleShieldAdd(ctx context.Context, req *sdk.CallToolRequest, args SwarmShieldAddInput) (_ *sdk.CallToolResult, _ SwarmShieldAddOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("swarm_shield_add", start, retErr, sanitizeToolParams(map[string]interface{}{
			"name": args.Name, "sequence": args.Sequence,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "swarm_shield_add"); err != nil {
		return nil, SwarmShieldAddOutput{}, err
	}

	if args.Name == "" {
		return nil, SwarmShieldAddOutput{}, fmt.Errorf("template name is required")
	}
	if err := s.engine.Shield().Register(shield.Template{Name: args.Name, Sequence: args.Sequence}); err != nil {
		return nil, SwarmShieldAddOutput{}, fmt.Errorf("registering template: %w", err)
	}

	n := len(s.engine.Shield().Templates())
	return nil, SwarmShieldAddOutput{
		Templates: n,
		Message:   fmt.Sprintf("registered template %q (%d total)", args.Name, n),
	}, nil
}
