package simulation

import (
	"testing"

	"github.com/nvandessel/swarmlod/internal/agent"
)

// AssertPopulationConserved asserts that the total agent count equals want in
// every tick. Tier moves relocate agents; they never create or destroy them.
func AssertPopulationConserved(t *testing.T, result SimulationResult, want int) {
	t.Helper()
	for _, tr := range result.Ticks {
		if tr.Metrics.Total != want {
			t.Errorf("AssertPopulationConserved: tick %d: total %d, want %d", tr.Index, tr.Metrics.Total, want)
		}
	}
}

// AssertTierReached asserts that at least minCount agents occupy the tier by
// the given tick and in every tick after it.
func AssertTierReached(t *testing.T, result SimulationResult, tier agent.Tier, minCount, byTick int) {
	t.Helper()
	for _, tr := range result.Ticks {
		if tr.Index < byTick {
			continue
		}
		if got := tr.Metrics.Populations[tier]; got < minCount {
			t.Errorf("AssertTierReached: tick %d: %s population %d, want >= %d", tr.Index, tier, got, minCount)
		}
	}
}

// AssertTierEmpty asserts that the tier holds no agents from the given tick
// onward.
func AssertTierEmpty(t *testing.T, result SimulationResult, tier agent.Tier, fromTick int) {
	t.Helper()
	for _, tr := range result.Ticks {
		if tr.Index < fromTick {
			continue
		}
		if got := tr.Metrics.Populations[tier]; got != 0 {
			t.Errorf("AssertTierEmpty: tick %d: %s population %d, want 0", tr.Index, tier, got)
		}
	}
}

// AssertSingleStepPromotions asserts that every recorded promotion moves
// exactly one tier up or down.
func AssertSingleStepPromotions(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, tr := range result.Ticks {
		for _, p := range tr.Promotions {
			diff := int(p.To) - int(p.From)
			if diff != 1 && diff != -1 {
				t.Errorf("AssertSingleStepPromotions: tick %d: agent %d moved %s -> %s", tr.Index, p.ID, p.From, p.To)
			}
		}
	}
}

// AssertSignalBounded asserts that total signal mass never exceeds max in any
// tick.
func AssertSignalBounded(t *testing.T, result SimulationResult, max float64) {
	t.Helper()
	for _, tr := range result.Ticks {
		if tr.Metrics.SignalTotal > max {
			t.Errorf("AssertSignalBounded: tick %d: signal mass %.6f > max %.4f", tr.Index, tr.Metrics.SignalTotal, max)
		}
	}
}

// AssertSignalDecays asserts that signal mass strictly decreases between the
// two ticks. Use after emission has stopped.
func AssertSignalDecays(t *testing.T, result SimulationResult, fromTick, toTick int) {
	t.Helper()
	if fromTick >= len(result.Ticks) || toTick >= len(result.Ticks) {
		t.Fatalf("AssertSignalDecays: ticks [%d, %d] out of range (%d recorded)", fromTick, toTick, len(result.Ticks))
	}
	from := result.Ticks[fromTick].Metrics.SignalTotal
	to := result.Ticks[toTick].Metrics.SignalTotal
	if to >= from {
		t.Errorf("AssertSignalDecays: mass %.6f at tick %d did not decay by tick %d (%.6f)", from, fromTick, toTick, to)
	}
}

// AssertBlockedActions asserts that the shield blocked at least minBlocked
// actions across all ticks.
func AssertBlockedActions(t *testing.T, result SimulationResult, minBlocked int) {
	t.Helper()
	total := 0
	for _, tr := range result.Ticks {
		total += tr.Metrics.Blocked
	}
	if total < minBlocked {
		t.Errorf("AssertBlockedActions: %d actions blocked across run, want >= %d", total, minBlocked)
	}
}

// AssertRolesEmerge asserts that the final tick classifies at least
// minBrokers brokers and minHoarders hoarders.
func AssertRolesEmerge(t *testing.T, result SimulationResult, minBrokers, minHoarders int) {
	t.Helper()
	final := result.Final()
	if final.Brokers < minBrokers {
		t.Errorf("AssertRolesEmerge: %d brokers in final tick, want >= %d", final.Brokers, minBrokers)
	}
	if final.Hoarders < minHoarders {
		t.Errorf("AssertRolesEmerge: %d hoarders in final tick, want >= %d", final.Hoarders, minHoarders)
	}
}

// AssertNoDispatchTimeouts asserts that no heavy-tier dispatch timed out.
func AssertNoDispatchTimeouts(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, tr := range result.Ticks {
		if tr.Metrics.DispatchTimeouts > 0 {
			t.Errorf("AssertNoDispatchTimeouts: tick %d: %d timeouts", tr.Index, tr.Metrics.DispatchTimeouts)
		}
	}
}
