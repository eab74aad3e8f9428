// Package adaptation implements the pollination reinforcement loop: per-agent
// behavioral weights tuned by temporal-difference updates on reward and
// punishment events. The weight drives an agent's eagerness to broadcast
// context to neighbors; the emergent broker/hoarder/neutral castes are a
// pure threshold read on the stabilized weight, never stored separately.
package adaptation

import (
	"math"

	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/vecmath"
)

// Config holds the fixed TD learning parameters.
type Config struct {
	// Alpha is the TD learning rate. Default: 0.1.
	Alpha float64

	// Gamma is the future discount factor. Default: 0.9.
	Gamma float64

	// LowerBound and UpperBound hard-clamp the raw weight. Repeated
	// punishment drives the weight toward LowerBound asymptotically but
	// never past it. Defaults: -4.0 and 4.0.
	LowerBound float64
	UpperBound float64

	// SigmoidTemperature governs how sharply share probability responds
	// to the raw weight. Default: 1.0.
	SigmoidTemperature float64

	// SurpriseBroadcastWeight scales how strongly local surprise dilates
	// the effective broadcast probability. High surprise keeps emergency
	// information flowing even from agents that lean selfish. Default: 0.5.
	SurpriseBroadcastWeight float64

	// BrokerThreshold and HoarderThreshold are the share-probability bands
	// for the derived caste classification. Defaults: 0.65 and 0.35.
	BrokerThreshold  float64
	HoarderThreshold float64
}

// DefaultConfig returns the default adaptation configuration.
func DefaultConfig() Config {
	return Config{
		Alpha:                   0.1,
		Gamma:                   0.9,
		LowerBound:              -4.0,
		UpperBound:              4.0,
		SigmoidTemperature:      1.0,
		SurpriseBroadcastWeight: 0.5,
		BrokerThreshold:         0.65,
		HoarderThreshold:        0.35,
	}
}

// State is one agent's RL state. It is owned by the agent's row in the
// columnar store; updates for independent agents never share mutable state,
// so per-tick updates are commutative across agents.
type State struct {
	// Eagerness is the raw expected value of sharing, V(share).
	Eagerness float64

	// ShareProb is the sigmoid-bounded share probability in (0, 1),
	// kept in sync with Eagerness.
	ShareProb float64

	// Eligibility scales how strongly the next TD error applies.
	// 1.0 means full credit.
	Eligibility float64
}

// NewState returns a neutral starting state (share probability 0.5).
func NewState(cfg Config) State {
	s := State{Eagerness: 0, Eligibility: 1}
	s.ShareProb = shareProbability(s.Eagerness, cfg)
	return s
}

// Update applies one temporal-difference step for the given reward signal:
//
//	V <- V + alpha * (reward + gamma*V' - V) * eligibility
//
// using the single-state approximation V' = V, and hard-clamps the result to
// [LowerBound, UpperBound]. The share probability is refreshed from the new
// weight. Returns the TD error.
func Update(s *State, reward float64, cfg Config) float64 {
	v := s.Eagerness
	tdErr := reward + cfg.Gamma*v - v
	v += cfg.Alpha * tdErr * s.Eligibility
	s.Eagerness = vecmath.Clamp(v, cfg.LowerBound, cfg.UpperBound)
	s.ShareProb = shareProbability(s.Eagerness, cfg)
	return tdErr
}

// ShouldBroadcast reports whether the agent intends to share context this
// tick, given a uniform random draw and the agent's current surprise.
// Surprise dilates the effective probability so anomalies propagate even
// through hoarders.
func ShouldBroadcast(s *State, randomVal, surprise float64, cfg Config) bool {
	effective := s.ShareProb + surprise*cfg.SurpriseBroadcastWeight
	if effective > 1 {
		effective = 1
	}
	return randomVal < effective
}

// Classify returns the emergent caste for the given state: a threshold read
// on the stabilized share probability.
func Classify(s *State, cfg Config) agent.Role {
	switch {
	case s.ShareProb >= cfg.BrokerThreshold:
		return agent.RoleBroker
	case s.ShareProb <= cfg.HoarderThreshold:
		return agent.RoleHoarder
	default:
		return agent.RoleNeutral
	}
}

// shareProbability maps the raw weight through a temperature-scaled sigmoid:
// 1 / (1 + e^(-x/T)).
func shareProbability(eagerness float64, cfg Config) float64 {
	t := cfg.SigmoidTemperature
	if t <= 0 {
		t = 1
	}
	return 1.0 / (1.0 + math.Exp(-eagerness/t))
}
