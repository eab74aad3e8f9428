package simulation

import (
	"testing"

	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/dispatch"
	"github.com/nvandessel/swarmlod/internal/shield"
)

// sustained returns a trigger schedule that holds the mask from tick 0.
func sustained(mask agent.TriggerMask) func(int) (agent.TriggerMask, bool) {
	return func(tick int) (agent.TriggerMask, bool) {
		return mask, tick == 0
	}
}

func TestConsistentRewardBreedsABroker(t *testing.T) {
	mock := dispatch.NewMockDispatcher().WithResponse(dispatch.Response{
		Actions:    []string{"survey_flora"},
		Confidence: 1.0,
	})

	r := NewRunner(t)
	result := r.Run(Scenario{
		Name:       "broker-emergence",
		Agents:     UniformPopulation(1, 0.9, 1),
		Ticks:      15,
		Dispatcher: mock,
		Triggers:   sustained(1),
	})

	AssertTierReached(t, result, agent.TierHeavy, 1, 2)
	AssertNoDispatchTimeouts(t, result)
	AssertBlockedActions(t, result, 0)
	// Full-confidence proposals accepted every tick drive the behavioral
	// weight up past the broker band.
	AssertRolesEmerge(t, result, 1, 0)
}

func TestBlockedPlansBreedAHoarder(t *testing.T) {
	plan := []string{"auth", "delay", "drop"}
	mock := dispatch.NewMockDispatcher().WithResponse(dispatch.Response{
		Actions:    plan,
		Confidence: 1.0,
	})

	r := NewRunner(t)
	result := r.Run(Scenario{
		Name:   "hoarder-emergence",
		Agents: UniformPopulation(1, 0.9, 1),
		Templates: []shield.Template{
			{Name: "exfil-pattern", Sequence: plan},
		},
		Ticks:      15,
		Dispatcher: mock,
		Triggers:   sustained(1),
	})

	AssertTierReached(t, result, agent.TierHeavy, 1, 2)
	// Every proposal matches the template exactly, so every heavy tick
	// blocks and punishes.
	AssertBlockedActions(t, result, 5)
	AssertRolesEmerge(t, result, 0, 1)
	if result.Final().Brokers != 0 {
		t.Errorf("brokers = %d, want 0 under constant punishment", result.Final().Brokers)
	}
}
