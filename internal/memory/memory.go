// Package memory implements the episodic memory buffer with surprise-weighted
// exponential forgetting. Each entry's retention decays every tick following an
// Ebbinghaus-style curve whose time constant stretches with the prediction
// error recorded at creation: surprising events are forgotten more slowly.
package memory

import (
	"math"

	"github.com/nvandessel/swarmlod/internal/vecmath"
)

// Config holds tunable parameters for memory decay.
type Config struct {
	// BaseDecayRate is the per-tick decay rate for a zero-surprise entry.
	// Effective rate per entry is BaseDecayRate / (1 + surprise). Default: 0.1.
	BaseDecayRate float64

	// MinRetention is the threshold below which entries are evicted. Default: 0.05.
	MinRetention float64

	// Capacity is the fixed per-agent buffer size. On overflow the entry with
	// the lowest retention is evicted first, ties broken by oldest tick.
	// Default: 32.
	Capacity int
}

// DefaultConfig returns the default memory decay configuration.
func DefaultConfig() Config {
	return Config{
		BaseDecayRate: 0.1,
		MinRetention:  0.05,
		Capacity:      32,
	}
}

// Entry is a single episodic memory belonging to one agent.
type Entry struct {
	// Event describes what happened (an action symbol or event tag).
	Event string

	// Tick is the simulation tick at which the entry was recorded.
	Tick uint64

	// Surprise is the prediction error magnitude at creation, in [0, 2]:
	// one minus the cosine similarity between expected and observed.
	Surprise float64

	// Retention is the current decayed weight, starting at 1.0.
	Retention float64

	// decayRate is fixed at creation: base / (1 + surprise).
	decayRate float64
}

// DecayRate returns the entry's fixed per-tick decay rate.
func (e *Entry) DecayRate() float64 { return e.decayRate }

// Buffer is one agent's episodic memory. It is owned by the agent's row in
// the columnar store and moves with it on tier relocation. Not safe for
// concurrent use; the orchestrator guarantees a single writer per agent.
type Buffer struct {
	cfg     Config
	entries []Entry
}

// NewBuffer creates an empty buffer with the given configuration.
func NewBuffer(cfg Config) *Buffer {
	return &Buffer{cfg: cfg}
}

// Len returns the number of live entries.
func (b *Buffer) Len() int { return len(b.entries) }

// Entries returns the live entries. The slice is owned by the buffer and
// only valid until the next Record or Decay call.
func (b *Buffer) Entries() []Entry { return b.entries }

// Record computes the surprise between expected and observed feature vectors
// and inserts a new entry with retention 1.0. If the buffer is at capacity,
// the lowest-retention entry (oldest on ties) is evicted first. Returns the
// recorded surprise.
func (b *Buffer) Record(event string, tick uint64, expected, observed []float32) float64 {
	surprise := Surprise(expected, observed)
	if b.cfg.Capacity > 0 && len(b.entries) >= b.cfg.Capacity {
		b.evictOne()
	}
	b.entries = append(b.entries, Entry{
		Event:     event,
		Tick:      tick,
		Surprise:  surprise,
		Retention: 1.0,
		decayRate: b.cfg.BaseDecayRate / (1 + surprise),
	})
	return surprise
}

// Decay multiplies every entry's retention by exp(-rate * dt) and evicts
// entries that fall below MinRetention. Returns the number evicted.
func (b *Buffer) Decay(dt float64) int {
	kept := b.entries[:0]
	evicted := 0
	for i := range b.entries {
		e := b.entries[i]
		e.Retention *= math.Exp(-e.decayRate * dt)
		if e.Retention < b.cfg.MinRetention {
			evicted++
			continue
		}
		kept = append(kept, e)
	}
	b.entries = kept
	return evicted
}

// Strongest returns the entry with the highest retention, or nil if empty.
func (b *Buffer) Strongest() *Entry {
	if len(b.entries) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(b.entries); i++ {
		if b.entries[i].Retention > b.entries[best].Retention {
			best = i
		}
	}
	return &b.entries[best]
}

// evictOne removes the entry with the lowest retention, ties broken by
// oldest creation tick.
func (b *Buffer) evictOne() {
	if len(b.entries) == 0 {
		return
	}
	victim := 0
	for i := 1; i < len(b.entries); i++ {
		e, v := b.entries[i], b.entries[victim]
		if e.Retention < v.Retention || (e.Retention == v.Retention && e.Tick < v.Tick) {
			victim = i
		}
	}
	b.entries = append(b.entries[:victim], b.entries[victim+1:]...)
}

// Surprise computes the prediction error between expected and observed
// feature vectors: one minus their cosine similarity, in [0, 2].
func Surprise(expected, observed []float32) float64 {
	return 1 - vecmath.Cosine(expected, observed)
}
