// Package dispatch provides the heavy-tier reasoning boundary. Heavy agents
// do not run a fixed update rule; their observation, memory extract, and
// recent actions are handed to a Dispatcher which proposes the next action
// plan. The orchestrator awaits the response under a deadline and escalates
// repeated failures into a tier demotion.
package dispatch

import (
	"context"
	"errors"

	"github.com/nvandessel/swarmlod/internal/agent"
)

// ErrTimeout is returned when a proposal does not arrive within the
// orchestrator's per-dispatch deadline.
var ErrTimeout = errors.New("dispatch: proposal timed out")

// ErrUnavailable is returned by dispatchers whose backend is not compiled in
// or not reachable.
var ErrUnavailable = errors.New("dispatch: backend unavailable")

// Request carries one heavy agent's situation to the reasoner.
type Request struct {
	AgentID agent.ID
	Tick    uint64

	// Observation is a short description of the agent's local situation.
	Observation string

	// Memories are the event tags of the strongest retained memories,
	// strongest first.
	Memories []string

	// History is the agent's recent action trail, oldest first.
	History []string

	// Candidates are the action symbols the agent may choose from.
	Candidates []string
}

// Response is the reasoner's proposed plan.
type Response struct {
	// Actions is the proposed action sequence, first action next.
	Actions []string

	// Confidence is the reasoner's self-reported confidence in [0, 1].
	Confidence float64
}

// Dispatcher proposes action plans for heavy-tier agents.
type Dispatcher interface {
	// Propose returns a plan for the request. Implementations must honor
	// ctx cancellation and return ctx.Err() promptly.
	Propose(ctx context.Context, req Request) (Response, error)

	// Available reports whether the backend can serve proposals, as a
	// cheap check that does not initialize the backend.
	Available() bool

	// Close releases backend resources.
	Close() error
}
