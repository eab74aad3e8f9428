// Package simulation provides a multi-tick test harness for validating
// emergent dynamics of the swarm engine.
//
// The simulation exercises the real Engine, Controller, Grid, and Shield
// pipeline with no mocks except the heavy-tier dispatcher. Scenarios are Go
// builders that construct seeded populations and run configurable numbers of
// ticks, capturing per-tick metrics and tier transitions for property-based
// assertions.
//
// Usage:
//
//	func TestWakeCascade(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:   "wake-cascade",
//	        Agents: simulation.UniformPopulation(1000, 0.9, 1),
//	        Ticks:  20,
//	        Triggers: func(tick int) (agent.TriggerMask, bool) {
//	            return 1, tick == 0
//	        },
//	    })
//	    simulation.AssertPopulationConserved(t, result, 1000)
//	}
package simulation
