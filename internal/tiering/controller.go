// Package tiering implements the level-of-detail controller: per tick it
// decides which agents move up or down the simulation fidelity ladder
// (dormant, simplified, full, heavy) and relocates their rows between the
// columnar partitions. Promotion is trigger-driven; demotion
// requires a sustained streak of low activity so agents do not flap at a
// threshold boundary. An agent moves at most one tier step per tick.
package tiering

import (
	"sync"

	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/columnar"
	"github.com/nvandessel/swarmlod/internal/memory"
)

// Config holds the tier transition thresholds.
type Config struct {
	// WakeThreshold gates dormant promotion: a matching wake trigger alone
	// is not enough, the agent's predicted state must also exceed this.
	// Higher tiers promote on a trigger match alone. Default: 0.5.
	WakeThreshold float64

	// DemoteFloor is the activity level below which a tick counts toward
	// the demotion streak. Default: 0.2.
	DemoteFloor float64

	// DemoteStreak is the number of consecutive below-floor ticks required
	// before an agent is demoted one tier. Default: 3.
	DemoteStreak int

	// Memory configures the episodic buffer allocated when an agent first
	// reaches the full tier.
	Memory memory.Config

	// Place positions newly woken agents in the world. Nil leaves them at
	// the origin.
	Place func(id agent.ID) (x, y float32)
}

// DefaultConfig returns the default tiering configuration.
func DefaultConfig() Config {
	return Config{
		WakeThreshold: 0.5,
		DemoteFloor:   0.2,
		DemoteStreak:  3,
		Memory:        memory.DefaultConfig(),
	}
}

// Promotion records one upward tier move, published for observers that react
// to newly woken or escalated agents.
type Promotion struct {
	ID   agent.ID
	From agent.Tier
	To   agent.Tier
	Tick uint64
}

// Summary reports what one maintenance pass did.
type Summary struct {
	Promoted int
	Demoted  int
}

// Controller owns the tier transition logic over a columnar store.
// Step must be called from the orchestrator's structural phase with no
// concurrent store access; PopPromotions is safe to call from any goroutine.
type Controller struct {
	cfg   Config
	store *columnar.Store

	mu      sync.Mutex
	pending []Promotion
}

// NewController returns a controller over the given store.
func NewController(cfg Config, store *columnar.Store) *Controller {
	return &Controller{cfg: cfg, store: store}
}

// PopPromotions atomically drains and returns the promotions recorded since
// the previous call, in decision order. Returns nil when none are pending.
func (c *Controller) PopPromotions() []Promotion {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out
}

type decision struct {
	id      agent.ID
	from    agent.Tier
	promote bool
}

// Step runs one tier maintenance pass against the trigger snapshot for this
// tick: wakes dormant agents whose mask matches and whose predicted state
// clears the wake threshold, promotes active-tier agents on a trigger match,
// and demotes agents whose activity has stayed below the floor for the full
// streak. All decisions are
// taken against the pre-move state, so an agent moves at most one tier per
// pass; an agent eligible for both directions stays put.
func (c *Controller) Step(triggers agent.TriggerMask, tick uint64) Summary {
	decisions := c.decide(triggers)

	var sum Summary
	for _, d := range decisions {
		loc, ok := c.store.Lookup(d.id)
		if !ok || loc.Tier != d.from {
			continue
		}
		c.apply(d, loc.Row, tick, &sum)
	}
	return sum
}

func (c *Controller) decide(triggers agent.TriggerMask) []decision {
	var out []decision

	d := &c.store.Dormant
	for i := 0; i < d.Len(); i++ {
		if d.Wake[i]&triggers != 0 && d.Predicted[i] > c.cfg.WakeThreshold {
			out = append(out, decision{id: d.IDs[i], from: agent.TierDormant, promote: true})
		}
	}

	s := &c.store.Simplified
	for i := 0; i < s.Len(); i++ {
		up := s.Wake[i]&triggers != 0
		down := c.bumpStreak(&s.LowStreak[i], s.Activity[i])
		if dec, ok := resolve(s.IDs[i], agent.TierSimplified, up, down); ok {
			out = append(out, dec)
		}
	}

	f := &c.store.Full
	for i := 0; i < f.Len(); i++ {
		up := f.Wake[i]&triggers != 0
		down := c.bumpStreak(&f.LowStreak[i], f.Activity[i])
		if dec, ok := resolve(f.IDs[i], agent.TierFull, up, down); ok {
			out = append(out, dec)
		}
	}

	h := &c.store.Heavy
	for i := 0; i < h.Len(); i++ {
		down := c.bumpStreak(&h.LowStreak[i], h.Activity[i])
		if dec, ok := resolve(h.IDs[i], agent.TierHeavy, false, down); ok {
			out = append(out, dec)
		}
	}
	return out
}

func (c *Controller) apply(d decision, row int, tick uint64, sum *Summary) {
	switch {
	case d.from == agent.TierDormant:
		r := c.store.TakeDormant(row)
		var x, y float32
		if c.cfg.Place != nil {
			x, y = c.cfg.Place(r.ID)
		}
		c.store.PutSimplified(columnar.MotionRow{
			DormantRow: r,
			X:          x,
			Y:          y,
			Health:     1,
			// Newly woken agents start with their predicted state as
			// activity so they are not demoted before acting once.
			Activity: float32(r.Predicted),
		})
		c.record(Promotion{ID: r.ID, From: agent.TierDormant, To: agent.TierSimplified, Tick: tick})
		sum.Promoted++

	case d.from == agent.TierSimplified && d.promote:
		r := c.store.TakeSimplified(row)
		r.LowStreak = 0
		c.store.PutCognitive(agent.TierFull, columnar.CognitiveRow{
			MotionRow: r,
			Memory:    memory.NewBuffer(c.cfg.Memory),
		})
		c.record(Promotion{ID: r.ID, From: agent.TierSimplified, To: agent.TierFull, Tick: tick})
		sum.Promoted++

	case d.from == agent.TierSimplified:
		r := c.store.TakeSimplified(row)
		// Sleep with the latest behavior as the next wake prior.
		r.Predicted = float64(r.Activity)
		c.store.PutDormant(r.DormantRow)
		sum.Demoted++

	case d.from == agent.TierFull && d.promote:
		r := c.store.TakeCognitive(agent.TierFull, row)
		r.LowStreak = 0
		r.Retries = 0
		c.store.PutCognitive(agent.TierHeavy, r)
		c.record(Promotion{ID: r.ID, From: agent.TierFull, To: agent.TierHeavy, Tick: tick})
		sum.Promoted++

	case d.from == agent.TierFull:
		// Full -> simplified drops the episodic buffer; only what a
		// simplified agent carries survives.
		r := c.store.TakeCognitive(agent.TierFull, row)
		r.LowStreak = 0
		c.store.PutSimplified(r.MotionRow)
		sum.Demoted++

	case d.from == agent.TierHeavy:
		r := c.store.TakeCognitive(agent.TierHeavy, row)
		r.LowStreak = 0
		r.Retries = 0
		c.store.PutCognitive(agent.TierFull, r)
		sum.Demoted++
	}
}

// Demote forces an agent one tier down regardless of streak state, used when
// heavy-tier dispatch exhausts its retries. Reports whether a move happened.
func (c *Controller) Demote(id agent.ID) bool {
	loc, ok := c.store.Lookup(id)
	if !ok || loc.Tier == agent.TierDormant {
		return false
	}
	var sum Summary
	c.apply(decision{id: id, from: loc.Tier}, loc.Row, 0, &sum)
	return sum.Demoted > 0
}

// bumpStreak advances the hysteresis counter for one row and reports whether
// the demotion streak is complete.
func (c *Controller) bumpStreak(streak *int, activity float32) bool {
	if float64(activity) < c.cfg.DemoteFloor {
		*streak++
	} else {
		*streak = 0
	}
	return *streak >= c.cfg.DemoteStreak
}

// resolve turns the up/down eligibility pair into at most one decision.
// Conflicting signals cancel and the streak stands.
func resolve(id agent.ID, from agent.Tier, up, down bool) (decision, bool) {
	switch {
	case up && down:
		return decision{}, false
	case up:
		return decision{id: id, from: from, promote: true}, true
	case down:
		return decision{id: id, from: from}, true
	}
	return decision{}, false
}

func (c *Controller) record(p Promotion) {
	c.mu.Lock()
	c.pending = append(c.pending, p)
	c.mu.Unlock()
}
