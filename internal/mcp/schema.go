// Package mcp provides an MCP (Model Context Protocol) server for driving a
// running swarm simulation.
package mcp

import (
	"github.com/nvandessel/swarmlod/internal/engine"
)

// SwarmStatusInput defines the input for the swarm_status tool.
type SwarmStatusInput struct{}

// SwarmStatusOutput defines the output for the swarm_status tool.
type SwarmStatusOutput struct {
	Tick        uint64         `json:"tick" jsonschema:"Current tick counter"`
	Total       int            `json:"total" jsonschema:"Total live agents across all tiers"`
	Populations map[string]int `json:"populations" jsonschema:"Agent count per tier"`
	Triggers    uint64         `json:"triggers" jsonschema:"Active global trigger mask"`
	Templates   int            `json:"templates" jsonschema:"Registered shield templates"`
}

// SwarmTickInput defines the input for the swarm_tick tool.
type SwarmTickInput struct {
	Steps int `json:"steps,omitempty" jsonschema:"Number of ticks to advance (default: 1, max: 100)"`
}

// SwarmTickOutput defines the output for the swarm_tick tool.
type SwarmTickOutput struct {
	TicksRun int            `json:"ticks_run" jsonschema:"Number of ticks actually executed"`
	Metrics  engine.Metrics `json:"metrics" jsonschema:"Metrics sampled after the last tick"`
}

// SwarmMetricsInput defines the input for the swarm_metrics tool.
type SwarmMetricsInput struct{}

// SwarmMetricsOutput defines the output for the swarm_metrics tool.
type SwarmMetricsOutput struct {
	Metrics engine.Metrics `json:"metrics" jsonschema:"Current population metrics"`
}

// SwarmSetTriggersInput defines the input for the swarm_set_triggers tool.
type SwarmSetTriggersInput struct {
	Mask uint64 `json:"mask" jsonschema:"Global trigger bitmask; dormant agents whose wake mask overlaps it become promotion candidates"`
}

// SwarmSetTriggersOutput defines the output for the swarm_set_triggers tool.
type SwarmSetTriggersOutput struct {
	Previous uint64 `json:"previous" jsonschema:"Trigger mask before the change"`
	Current  uint64 `json:"current" jsonschema:"Trigger mask now in effect"`
}

// SwarmAddAgentsInput defines the input for the swarm_add_agents tool.
type SwarmAddAgentsInput struct {
	Count          int     `json:"count" jsonschema:"Number of dormant agents to insert"`
	StartID        uint32  `json:"start_id,omitempty" jsonschema:"First agent ID; subsequent agents use consecutive IDs (default: 0)"`
	WakeMask       uint64  `json:"wake_mask,omitempty" jsonschema:"Wake trigger mask assigned to every inserted agent"`
	PredictedState float64 `json:"predicted_state,omitempty" jsonschema:"Initial predicted activity in [0,1] (default: 0.5)"`
}

// SwarmAddAgentsOutput defines the output for the swarm_add_agents tool.
type SwarmAddAgentsOutput struct {
	Added   int    `json:"added" jsonschema:"Agents actually inserted"`
	Total   int    `json:"total" jsonschema:"Total live agents after the insert"`
	Message string `json:"message" jsonschema:"Human-readable result message"`
}

// SwarmShockInput defines the input for the swarm_shock tool.
type SwarmShockInput struct {
	X         int     `json:"x" jsonschema:"Shock epicenter X cell"`
	Y         int     `json:"y" jsonschema:"Shock epicenter Y cell"`
	Radius    float64 `json:"radius,omitempty" jsonschema:"Blast radius in cells (default: 8)"`
	Intensity float64 `json:"intensity,omitempty" jsonschema:"Peak signal intensity at the epicenter (default: 1.0)"`
}

// SwarmShockOutput defines the output for the swarm_shock tool.
type SwarmShockOutput struct {
	SignalTotal float64 `json:"signal_total" jsonschema:"Total signal mass in the grid after the shock"`
	Message     string  `json:"message" jsonschema:"Human-readable result message"`
}

// SwarmShieldAddInput defines the input for the swarm_shield_add tool.
type SwarmShieldAddInput struct {
	Name     string   `json:"name" jsonschema:"Unique template name"`
	Sequence []string `json:"sequence" jsonschema:"Ordered action sequence describing the harmful pattern"`
}

// SwarmShieldAddOutput defines the output for the swarm_shield_add tool.
type SwarmShieldAddOutput struct {
	Templates int    `json:"templates" jsonschema:"Registered templates after the change"`
	Message   string `json:"message" jsonschema:"Human-readable result message"`
}
