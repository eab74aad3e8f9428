package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/dispatch"
	"github.com/nvandessel/swarmlod/internal/shield"
	"github.com/nvandessel/swarmlod/internal/signalgrid"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Grid = signalgrid.Config{Width: 32, Height: 32, DiffuseRate: 0.2, EvaporationRate: 0.01}
	cfg.HeavyTimeout = 50 * time.Millisecond
	cfg.HeavyWait = 200 * time.Millisecond
	return cfg
}

func newEngine(t *testing.T, cfg Config, d dispatch.Dispatcher) *Engine {
	t.Helper()
	e, err := New(cfg, d, nil)
	if err != nil {
		t.Fatalf("New = %v", err)
	}
	t.Cleanup(e.CancelInflight)
	return e
}

func TestTickWithoutAgents(t *testing.T) {
	e := newEngine(t, testConfig(), nil)

	_, err := e.Tick(context.Background())
	var ise *agent.InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("Tick on empty engine = %v, want InvalidStateError", err)
	}
}

func TestAddDormantAgentsPartialFailure(t *testing.T) {
	e := newEngine(t, testConfig(), nil)

	added, err := e.AddDormantAgents([]agent.Seed{
		{ID: 1, PredictedState: 0.9, WakeMask: 1},
		{ID: 2, PredictedState: 0.9, WakeMask: 1},
		{ID: 1, PredictedState: 0.1, WakeMask: 2}, // duplicate
		{ID: 3, PredictedState: 0.9, WakeMask: 1},
	})
	if added != 3 {
		t.Errorf("added = %d, want 3", added)
	}

	var pe *PartialInsertError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PartialInsertError", err)
	}
	if len(pe.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(pe.Errors))
	}
	var dup *agent.DuplicateIDError
	if !errors.As(pe.Errors[0], &dup) || dup.ID != 1 {
		t.Errorf("record error = %v, want DuplicateIDError{1}", pe.Errors[0])
	}

	// The accepted records stayed in.
	m := e.SampleMetrics()
	if m.Total != 3 {
		t.Errorf("Total = %d, want 3", m.Total)
	}
}

func TestBulkInsertWakesExactTriggerSet(t *testing.T) {
	if testing.Short() {
		t.Skip("bulk population test")
	}
	e := newEngine(t, testConfig(), nil)

	const n = 1_000_000
	seeds := make([]agent.Seed, n)
	want := make(map[agent.ID]bool)
	for i := range seeds {
		id := agent.ID(i)
		mask := agent.TriggerMask(1) << (i % 8)
		pred := float64(i%10) / 10 // 0.0 .. 0.9
		seeds[i] = agent.Seed{ID: id, PredictedState: pred, WakeMask: mask}
		// Wake rule: mask bit 3 set and prediction strictly above 0.5.
		if i%8 == 3 && pred > 0.5 {
			want[id] = true
		}
	}
	if added, err := e.AddDormantAgents(seeds); err != nil || added != n {
		t.Fatalf("AddDormantAgents = %d, %v", added, err)
	}

	e.SetGlobalTriggers(1 << 3)
	if _, err := e.Tick(context.Background()); err != nil {
		t.Fatalf("Tick = %v", err)
	}

	got := e.PopPromotions()
	if len(got) != len(want) {
		t.Fatalf("promotions = %d, want %d", len(got), len(want))
	}
	for _, p := range got {
		if !want[p.ID] {
			t.Fatalf("agent %d promoted but not eligible", p.ID)
		}
		if p.From != agent.TierDormant || p.To != agent.TierSimplified {
			t.Fatalf("promotion = %+v", p)
		}
	}

	m := e.SampleMetrics()
	if m.Populations[agent.TierSimplified] != len(want) {
		t.Errorf("simplified population = %d, want %d", m.Populations[agent.TierSimplified], len(want))
	}
	if m.Total != n {
		t.Errorf("Total = %d, want %d", m.Total, n)
	}
}

func climbToHeavy(t *testing.T, e *Engine) {
	t.Helper()
	if _, err := e.AddDormantAgents([]agent.Seed{{ID: 1, PredictedState: 0.9, WakeMask: 1}}); err != nil {
		t.Fatal(err)
	}
	e.SetGlobalTriggers(1)
	for i := 0; i < 3; i++ {
		if _, err := e.Tick(context.Background()); err != nil {
			t.Fatalf("tick %d: %v", i+1, err)
		}
	}
	m := e.SampleMetrics()
	if m.Populations[agent.TierHeavy] != 1 {
		t.Fatalf("heavy population = %d, want 1", m.Populations[agent.TierHeavy])
	}
	e.SetGlobalTriggers(0)
}

func TestHeavyDispatchAppliesPlan(t *testing.T) {
	mock := dispatch.NewMockDispatcher().WithResponse(dispatch.Response{
		Actions:    []string{"harvest", "signal_nest"},
		Confidence: 0.9,
	})
	e := newEngine(t, testConfig(), mock)
	climbToHeavy(t, e)

	if _, err := e.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if mock.CallCount() == 0 {
		t.Fatal("dispatcher was never called")
	}

	row, ok := e.store.Row(1)
	if !ok {
		t.Fatal("agent 1 missing")
	}
	found := false
	for _, a := range row.Actions {
		if a == "harvest" {
			found = true
		}
	}
	if !found {
		t.Errorf("history %v missing dispatched action", row.Actions)
	}
	if row.RL.Eagerness <= 0 {
		t.Errorf("Eagerness = %v, want positive after confident plan", row.RL.Eagerness)
	}
}

func TestHeavyTimeoutEscalatesToDemotion(t *testing.T) {
	cfg := testConfig()
	cfg.HeavyTimeout = 10 * time.Millisecond
	cfg.HeavyWait = 100 * time.Millisecond
	cfg.MaxRetries = 2
	mock := dispatch.NewMockDispatcher().WithDelay(time.Minute)
	e := newEngine(t, cfg, mock)
	climbToHeavy(t, e) // the climb tick itself burns the first retry

	// Each tick: dispatch, per-unit deadline fires, retry counter grows.
	m1, err := e.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if m1.DispatchTimeouts == 0 {
		t.Error("first failing tick recorded no timeout")
	}
	if m1.Populations[agent.TierHeavy] != 1 {
		t.Fatal("demoted before retries were exhausted")
	}

	m2, err := e.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if m2.Populations[agent.TierHeavy] != 0 {
		t.Errorf("heavy population = %d after exhausted retries, want 0", m2.Populations[agent.TierHeavy])
	}
	if m2.Populations[agent.TierFull] != 1 {
		t.Errorf("full population = %d, want 1", m2.Populations[agent.TierFull])
	}
}

func TestShieldBlocksDispatchedPlan(t *testing.T) {
	cfg := testConfig()
	mock := dispatch.NewMockDispatcher().WithResponse(dispatch.Response{
		Actions:    []string{"drain", "exfiltrate"},
		Confidence: 1.0,
	})
	e := newEngine(t, cfg, mock)
	if err := e.Shield().Register(shield.Template{
		Name:     "exfiltration",
		Sequence: []string{"drain", "exfiltrate"},
	}); err != nil {
		t.Fatal(err)
	}
	climbToHeavy(t, e)

	m, err := e.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if m.Blocked == 0 {
		t.Error("blocked counter = 0, want > 0")
	}
	row, _ := e.store.Row(1)
	for _, a := range row.Actions {
		if a == "drain" || a == "exfiltrate" {
			t.Fatalf("blocked action %q reached the history", a)
		}
	}
	if row.RL.Eagerness >= 0 {
		t.Errorf("Eagerness = %v, want negative after punished block", row.RL.Eagerness)
	}
}

func TestTickHonorsCancellation(t *testing.T) {
	e := newEngine(t, testConfig(), nil)
	if _, err := e.AddDormantAgents([]agent.Seed{{ID: 1, PredictedState: 0.9, WakeMask: 1}}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Tick(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Tick = %v, want context.Canceled", err)
	}

	// The aborted tick left the store consistent and the counter unmoved.
	if err := e.store.Verify(); err != nil {
		t.Errorf("Verify = %v", err)
	}
	if got := e.SampleMetrics().Tick; got != 0 {
		t.Errorf("Tick counter = %d, want 0", got)
	}
}

func TestRegisterSitesValidatesBounds(t *testing.T) {
	e := newEngine(t, testConfig(), nil)

	if err := e.RegisterSites([]Site{{Name: "village", Kind: SiteHarvest, X: 5, Y: 5, Yield: 1}}); err != nil {
		t.Errorf("in-bounds site rejected: %v", err)
	}
	if err := e.RegisterSites([]Site{{Name: "ghost", X: 99, Y: 5}}); err == nil {
		t.Error("out-of-bounds site accepted")
	}
}

func TestSitesFeedTheField(t *testing.T) {
	e := newEngine(t, testConfig(), nil)
	if _, err := e.AddDormantAgents([]agent.Seed{{ID: 1, PredictedState: 0.1, WakeMask: 0}}); err != nil {
		t.Fatal(err)
	}
	if err := e.RegisterSites([]Site{{Name: "village", Kind: SiteHarvest, X: 16, Y: 16, Yield: 2}}); err != nil {
		t.Fatal(err)
	}

	m, err := e.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if m.SignalTotal <= 0 {
		t.Errorf("SignalTotal = %v, want > 0 with an emitting site", m.SignalTotal)
	}
}

func TestApplyShockForcesMemories(t *testing.T) {
	e := newEngine(t, testConfig(), dispatch.NewMockDispatcher())
	climbToHeavy(t, e)

	row, _ := e.store.Row(1)
	before := row.Memory.Len()

	e.ApplyShock(int(row.X), int(row.Y), 5, 3)

	row, _ = e.store.Row(1)
	if row.Memory.Len() != before+1 {
		t.Errorf("memory len = %d, want %d", row.Memory.Len(), before+1)
	}
	if row.Activity != 1 {
		t.Errorf("Activity = %v, want 1 after shock", row.Activity)
	}
	if e.grid.Total() <= 0 {
		t.Error("shock deposited no signal")
	}
}

func TestMetricsRoles(t *testing.T) {
	e := newEngine(t, testConfig(), dispatch.NewMockDispatcher())
	climbToHeavy(t, e)

	m := e.SampleMetrics()
	if m.Brokers+m.Hoarders+m.Neutrals != 1 {
		t.Errorf("role counts %d+%d+%d, want 1 classified agent",
			m.Brokers, m.Hoarders, m.Neutrals)
	}
	if m.MeanShareProb <= 0 || m.MeanShareProb >= 1 {
		t.Errorf("MeanShareProb = %v, want in (0, 1)", m.MeanShareProb)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"negative dt", func(c *Config) { c.DT = -1 }},
		{"zero history", func(c *Config) { c.HistoryLimit = 0 }},
		{"zero demote streak", func(c *Config) { c.Tiering.DemoteStreak = 0 }},
		{"zero memory capacity", func(c *Config) { c.Tiering.Memory.Capacity = 0 }},
		{"bad grid", func(c *Config) { c.Grid.Width = 0 }},
		{"zero heavy timeout", func(c *Config) { c.HeavyTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg, nil, nil); err == nil {
				t.Error("New accepted invalid config")
			}
			var ce *agent.ConfigError
			_, err := New(cfg, nil, nil)
			if !errors.As(err, &ce) {
				t.Errorf("err = %v, want ConfigError", err)
			}
		})
	}
}
