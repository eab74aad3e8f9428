package simulation

import (
	"testing"
)

func TestShockMassEvaporates(t *testing.T) {
	r := NewRunner(t)
	result := r.Run(Scenario{
		Name:   "shock-evaporation",
		Agents: UniformPopulation(10, 0.1, 1),
		Ticks:  10,
		Shocks: func(tick int) []Shock {
			if tick == 2 {
				return []Shock{{X: 128, Y: 128, Radius: 8, Intensity: 1.0}}
			}
			return nil
		},
	})

	if result.Ticks[1].Metrics.SignalTotal != 0 {
		t.Errorf("signal before shock = %v, want 0", result.Ticks[1].Metrics.SignalTotal)
	}
	if result.Ticks[2].Metrics.SignalTotal <= 0 {
		t.Error("shock should leave signal mass in the grid")
	}

	// No emitters after the shock: evaporation strictly drains the field.
	AssertSignalDecays(t, result, 3, 9)
	AssertSignalBounded(t, result, 250)
}

func TestRepeatedShocksStayBounded(t *testing.T) {
	r := NewRunner(t)
	result := r.Run(Scenario{
		Name:   "shock-saturation",
		Agents: UniformPopulation(10, 0.1, 1),
		Ticks:  50,
		Shocks: func(tick int) []Shock {
			return []Shock{{X: 64, Y: 64, Radius: 4, Intensity: 0.5}}
		},
	})

	// Per-tick injection is finite and evaporation is proportional, so the
	// field saturates instead of growing without bound.
	AssertSignalBounded(t, result, 5000)

	lastQuarter := result.Ticks[40].Metrics.SignalTotal
	final := result.Final().SignalTotal
	if final > lastQuarter*1.5 {
		t.Errorf("signal still growing late in the run: tick 40 %.3f, tick 49 %.3f", lastQuarter, final)
	}
}
