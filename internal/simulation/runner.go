package simulation

import (
	"context"
	"testing"

	"github.com/nvandessel/swarmlod/internal/engine"
)

// Runner orchestrates multi-tick simulation experiments against a real
// engine.
type Runner struct {
	t *testing.T
}

// NewRunner creates a simulation runner.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	return &Runner{t: t}
}

// Run executes the scenario and returns the collected results.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()
	ctx := context.Background()

	cfg := engine.DefaultConfig()
	if scenario.Config != nil {
		cfg = *scenario.Config
	}

	eng, err := engine.New(cfg, scenario.Dispatcher, nil)
	if err != nil {
		r.t.Fatalf("%s: engine.New: %v", scenario.Name, err)
	}
	r.t.Cleanup(eng.CancelInflight)

	if len(scenario.Agents) > 0 {
		if _, err := eng.AddDormantAgents(scenario.Agents); err != nil {
			r.t.Fatalf("%s: AddDormantAgents: %v", scenario.Name, err)
		}
	}
	if len(scenario.Sites) > 0 {
		if err := eng.RegisterSites(scenario.Sites); err != nil {
			r.t.Fatalf("%s: RegisterSites: %v", scenario.Name, err)
		}
	}
	for _, tpl := range scenario.Templates {
		if err := eng.Shield().Register(tpl); err != nil {
			r.t.Fatalf("%s: Shield.Register(%s): %v", scenario.Name, tpl.Name, err)
		}
	}

	records := make([]TickRecord, 0, scenario.Ticks)
	for i := 0; i < scenario.Ticks; i++ {
		if scenario.Triggers != nil {
			if mask, ok := scenario.Triggers(i); ok {
				eng.SetGlobalTriggers(mask)
			}
		}
		if scenario.Shocks != nil {
			for _, s := range scenario.Shocks(i) {
				eng.ApplyShock(s.X, s.Y, s.Radius, s.Intensity)
			}
		}
		if scenario.BeforeTick != nil {
			scenario.BeforeTick(i, eng)
		}

		m, err := eng.Tick(ctx)
		if err != nil {
			r.t.Fatalf("%s: tick %d: %v", scenario.Name, i, err)
		}
		records = append(records, TickRecord{
			Index:      i,
			Metrics:    m,
			Promotions: eng.PopPromotions(),
		})
	}

	return SimulationResult{Ticks: records, Engine: eng}
}
