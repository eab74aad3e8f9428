package simulation

import (
	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/dispatch"
	"github.com/nvandessel/swarmlod/internal/engine"
	"github.com/nvandessel/swarmlod/internal/shield"
	"github.com/nvandessel/swarmlod/internal/tiering"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name   string
	Agents []agent.Seed
	Sites  []engine.Site
	// Templates are registered with the shield before the first tick.
	Templates []shield.Template
	Ticks     int

	// Config, when non-nil, replaces the default engine configuration.
	Config *engine.Config

	// Dispatcher, when non-nil, drives heavy-tier agents. Nil uses the
	// engine's heuristic default.
	Dispatcher dispatch.Dispatcher

	// Triggers, when non-nil, is consulted before each tick. When the
	// second return is true, the global trigger mask is set to the first.
	Triggers func(tick int) (agent.TriggerMask, bool)

	// Shocks, when non-nil, is consulted before each tick and applies a
	// signal shock for every returned event.
	Shocks func(tick int) []Shock

	// BeforeTick, when non-nil, runs before each tick for arbitrary
	// manipulation of the engine.
	BeforeTick func(tick int, eng *engine.Engine)
}

// Shock describes one localized signal injection.
type Shock struct {
	X, Y      int
	Radius    float64
	Intensity float64
}

// TickRecord captures the outcome of a single tick.
type TickRecord struct {
	Index      int
	Metrics    engine.Metrics
	Promotions []tiering.Promotion
}

// SimulationResult captures all ticks and the final engine state.
type SimulationResult struct {
	Ticks  []TickRecord
	Engine *engine.Engine
}

// Final returns the last tick's metrics. It panics on an empty result.
func (r SimulationResult) Final() engine.Metrics {
	return r.Ticks[len(r.Ticks)-1].Metrics
}

// UniformPopulation builds n dormant seeds sharing one predicted state and
// wake mask, with IDs 0..n-1.
func UniformPopulation(n int, predicted float64, wake agent.TriggerMask) []agent.Seed {
	seeds := make([]agent.Seed, n)
	for i := range seeds {
		seeds[i] = agent.Seed{
			ID:             agent.ID(i),
			PredictedState: predicted,
			WakeMask:       wake,
		}
	}
	return seeds
}

// StaggeredPopulation builds n dormant seeds with predicted states cycling
// through 0.0 to 0.9 and wake masks cycling through the low maskBits bits.
func StaggeredPopulation(n int, maskBits int) []agent.Seed {
	seeds := make([]agent.Seed, n)
	for i := range seeds {
		seeds[i] = agent.Seed{
			ID:             agent.ID(i),
			PredictedState: float64(i%10) / 10.0,
			WakeMask:       1 << (i % maskBits),
		}
	}
	return seeds
}
