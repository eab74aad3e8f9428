// Package agent defines the core identity and tier vocabulary shared by the
// simulation engine: agent IDs, compute tiers, trigger masks, and the derived
// role classification.
package agent

// ID is a stable numeric agent identifier. It is immutable and globally
// unique for the agent's lifetime, across all tier relocations.
type ID uint32

// TriggerMask is a bitmask of environmental trigger flags. A dormant agent
// wakes when its wake mask shares at least one bit with the active global
// trigger mask.
type TriggerMask uint64

// Tier represents the compute fidelity class an agent currently occupies.
// An agent belongs to exactly one tier at a time.
type Tier int

const (
	// TierDormant agents carry minimal state and cost near-zero compute.
	TierDormant Tier = iota
	// TierSimplified agents receive vectorized batch physics updates.
	TierSimplified
	// TierFull agents receive per-agent updates including memory decay,
	// adaptation, and safety gating.
	TierFull
	// TierHeavy agents are driven by asynchronous external dispatch.
	TierHeavy

	// TierCount is the number of tiers.
	TierCount = int(TierHeavy) + 1
)

// String returns a string representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierDormant:
		return "dormant"
	case TierSimplified:
		return "simplified"
	case TierFull:
		return "full"
	case TierHeavy:
		return "heavy"
	default:
		return "unknown"
	}
}

// Role is the emergent caste classification derived from an agent's
// stabilized behavioral weight. It is a read-only view, never stored.
type Role int

const (
	// RoleNeutral agents share information at baseline rates.
	RoleNeutral Role = iota
	// RoleBroker agents have learned that sharing pays off.
	RoleBroker
	// RoleHoarder agents have learned to withhold information.
	RoleHoarder
)

// String returns a string representation of the role.
func (r Role) String() string {
	switch r {
	case RoleNeutral:
		return "neutral"
	case RoleBroker:
		return "broker"
	case RoleHoarder:
		return "hoarder"
	default:
		return "unknown"
	}
}

// Seed describes one agent to be bulk-inserted into the dormant tier.
type Seed struct {
	ID             ID          `json:"id"`
	PredictedState float64     `json:"predicted_state"`
	WakeMask       TriggerMask `json:"wakeup_conditions"`
}
