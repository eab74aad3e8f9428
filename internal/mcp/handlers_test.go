package mcp

import (
	"context"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/engine"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	eng, err := engine.New(engine.DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}

	server, err := NewServer(&Config{
		Name:    "test-server",
		Version: "v1.0.0",
		DataDir: t.TempDir(),
	}, eng)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server
}

func TestHandleStatusEmpty(t *testing.T) {
	server := setupTestServer(t)

	_, out, err := server.handleStatus(context.Background(), &sdk.CallToolRequest{}, SwarmStatusInput{})
	if err != nil {
		t.Fatalf("handleStatus failed: %v", err)
	}
	if out.Tick != 0 || out.Total != 0 {
		t.Errorf("tick=%d total=%d, want zero on fresh engine", out.Tick, out.Total)
	}
	if len(out.Populations) != agent.TierCount {
		t.Errorf("populations = %v, want one entry per tier", out.Populations)
	}
}

func TestHandleAddAgentsAndTick(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	_, added, err := server.handleAddAgents(ctx, &sdk.CallToolRequest{}, SwarmAddAgentsInput{
		Count:    100,
		WakeMask: 1,
	})
	if err != nil {
		t.Fatalf("handleAddAgents failed: %v", err)
	}
	if added.Added != 100 || added.Total != 100 {
		t.Errorf("added=%d total=%d, want 100 and 100", added.Added, added.Total)
	}

	_, out, err := server.handleTick(ctx, &sdk.CallToolRequest{}, SwarmTickInput{Steps: 3})
	if err != nil {
		t.Fatalf("handleTick failed: %v", err)
	}
	if out.TicksRun != 3 || out.Metrics.Tick != 3 {
		t.Errorf("ticks_run=%d metrics.tick=%d, want 3 and 3", out.TicksRun, out.Metrics.Tick)
	}
	if out.Metrics.Total != 100 {
		t.Errorf("metrics.total = %d, want 100", out.Metrics.Total)
	}
}

func TestHandleAddAgentsDuplicatesAreReported(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	if _, _, err := server.handleAddAgents(ctx, &sdk.CallToolRequest{}, SwarmAddAgentsInput{Count: 10}); err != nil {
		t.Fatal(err)
	}
	_, out, err := server.handleAddAgents(ctx, &sdk.CallToolRequest{}, SwarmAddAgentsInput{Count: 15})
	if err != nil {
		t.Fatalf("overlapping insert should partially succeed, got %v", err)
	}
	if out.Added != 5 || out.Total != 15 {
		t.Errorf("added=%d total=%d, want 5 and 15", out.Added, out.Total)
	}
	if !strings.Contains(out.Message, "skipped 10") {
		t.Errorf("message = %q, want duplicate count", out.Message)
	}
}

func TestHandleAddAgentsRejectsBadInput(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	if _, _, err := server.handleAddAgents(ctx, &sdk.CallToolRequest{}, SwarmAddAgentsInput{Count: 0}); err == nil {
		t.Error("zero count should fail")
	}
	if _, _, err := server.handleAddAgents(ctx, &sdk.CallToolRequest{}, SwarmAddAgentsInput{
		Count: 1, PredictedState: 1.5,
	}); err == nil {
		t.Error("predicted_state above 1 should fail")
	}
}

func TestHandleTickWithoutAgents(t *testing.T) {
	server := setupTestServer(t)

	if _, _, err := server.handleTick(context.Background(), &sdk.CallToolRequest{}, SwarmTickInput{}); err == nil {
		t.Error("tick on empty population should fail")
	}
}

func TestHandleTickStepLimit(t *testing.T) {
	server := setupTestServer(t)

	_, _, err := server.handleTick(context.Background(), &sdk.CallToolRequest{}, SwarmTickInput{Steps: maxTickSteps + 1})
	if err == nil {
		t.Error("steps above the limit should fail")
	}
}

func TestHandleSetTriggers(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleSetTriggers(ctx, &sdk.CallToolRequest{}, SwarmSetTriggersInput{Mask: 0b101})
	if err != nil {
		t.Fatalf("handleSetTriggers failed: %v", err)
	}
	if out.Previous != 0 || out.Current != 0b101 {
		t.Errorf("previous=%#x current=%#x, want 0 and 0x5", out.Previous, out.Current)
	}

	_, status, err := server.handleStatus(ctx, &sdk.CallToolRequest{}, SwarmStatusInput{})
	if err != nil {
		t.Fatal(err)
	}
	if status.Triggers != 0b101 {
		t.Errorf("status triggers = %#x, want 0x5", status.Triggers)
	}
}

func TestHandleShock(t *testing.T) {
	server := setupTestServer(t)

	_, out, err := server.handleShock(context.Background(), &sdk.CallToolRequest{}, SwarmShockInput{X: 10, Y: 10})
	if err != nil {
		t.Fatalf("handleShock failed: %v", err)
	}
	if out.SignalTotal <= 0 {
		t.Errorf("signal total = %v, want positive after shock", out.SignalTotal)
	}
}

func TestHandleShieldAdd(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleShieldAdd(ctx, &sdk.CallToolRequest{}, SwarmShieldAddInput{
		Name:     "drop-pattern",
		Sequence: []string{"auth", "delay", "drop"},
	})
	if err != nil {
		t.Fatalf("handleShieldAdd failed: %v", err)
	}
	if out.Templates != 1 {
		t.Errorf("templates = %d, want 1", out.Templates)
	}

	if _, _, err := server.handleShieldAdd(ctx, &sdk.CallToolRequest{}, SwarmShieldAddInput{Name: ""}); err == nil {
		t.Error("empty name should fail")
	}
	if _, _, err := server.handleShieldAdd(ctx, &sdk.CallToolRequest{}, SwarmShieldAddInput{
		Name: "empty", Sequence: nil,
	}); err == nil {
		t.Error("empty sequence should fail")
	}
}

func TestHandleMetricsDoesNotAdvanceTime(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	if _, _, err := server.handleAddAgents(ctx, &sdk.CallToolRequest{}, SwarmAddAgentsInput{Count: 5}); err != nil {
		t.Fatal(err)
	}
	_, m1, err := server.handleMetrics(ctx, &sdk.CallToolRequest{}, SwarmMetricsInput{})
	if err != nil {
		t.Fatal(err)
	}
	_, m2, err := server.handleMetrics(ctx, &sdk.CallToolRequest{}, SwarmMetricsInput{})
	if err != nil {
		t.Fatal(err)
	}
	if m1.Metrics.Tick != m2.Metrics.Tick {
		t.Errorf("tick moved from %d to %d without a tick call", m1.Metrics.Tick, m2.Metrics.Tick)
	}
}

func TestStatusResource(t *testing.T) {
	server := setupTestServer(t)

	res, err := server.handleStatusResource(context.Background(), &sdk.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("handleStatusResource failed: %v", err)
	}
	if len(res.Contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(res.Contents))
	}
	if !strings.Contains(res.Contents[0].Text, "Swarm Status") {
		t.Errorf("resource text missing header: %q", res.Contents[0].Text)
	}
}
