// Package engine implements the tick orchestrator: the single entry point
// that advances the whole swarm one step. Each tick snapshots the global
// trigger mask, runs tier reclassification, updates every tier at its own
// fidelity (vectorized batches for dormant and simplified, a sequential rich
// pass for full, dispatch-await for heavy), diffuses the signal field, and
// samples metrics. All structural mutation happens on the Tick goroutine;
// worker fan-out touches disjoint row ranges only.
package engine

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvandessel/swarmlod/internal/adaptation"
	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/columnar"
	"github.com/nvandessel/swarmlod/internal/dispatch"
	"github.com/nvandessel/swarmlod/internal/shield"
	"github.com/nvandessel/swarmlod/internal/signalgrid"
	"github.com/nvandessel/swarmlod/internal/tiering"
)

// Config holds the orchestrator's parameters. Component configurations are
// nested so one struct describes a full simulation.
type Config struct {
	// Workers is the fan-out width for batch tiers. Default: 4.
	Workers int

	// DT is the simulated time per tick. Default: 1.0.
	DT float64

	// Seed seeds the orchestrator's deterministic random stream. Default: 1.
	Seed int64

	// Actions is the heavy-tier candidate action vocabulary.
	Actions []string

	// HistoryLimit caps each agent's retained action trail. Default: 16.
	HistoryLimit int

	// BroadcastIntensity is the signal deposited by a sharing agent.
	// Default: 1.0.
	BroadcastIntensity float64

	// SiteRadius is the distance within which a site rewards agents.
	// Default: 8.
	SiteRadius float64

	// DormantDrift is the per-tick fade applied to sleeping agents'
	// predicted state. Default: 0.01.
	DormantDrift float64

	// HeavyTimeout bounds a single dispatch proposal. Default: 2s.
	HeavyTimeout time.Duration

	// HeavyWait bounds how long a tick waits at its boundary for in-flight
	// proposals before carrying them into the next tick. Default: 500ms.
	HeavyWait time.Duration

	// MaxRetries is the number of failed dispatches tolerated before a
	// heavy agent is demoted. Default: 2.
	MaxRetries int

	Tiering    tiering.Config
	Adaptation adaptation.Config
	Shield     shield.Config
	Grid       signalgrid.Config
}

// DefaultConfig returns a complete default engine configuration.
func DefaultConfig() Config {
	return Config{
		Workers:            4,
		DT:                 1.0,
		Seed:               1,
		Actions:            []string{"harvest", "seek_signal", "signal_nest", "trade", "wander", "hold"},
		HistoryLimit:       16,
		BroadcastIntensity: 1.0,
		SiteRadius:         8,
		DormantDrift:       0.01,
		HeavyTimeout:       2 * time.Second,
		HeavyWait:          500 * time.Millisecond,
		MaxRetries:         2,
		Tiering:            tiering.DefaultConfig(),
		Adaptation:         adaptation.DefaultConfig(),
		Shield:             shield.DefaultConfig(),
		Grid:               signalgrid.DefaultConfig(),
	}
}

// Validate rejects configurations that would corrupt a run. Invalid values
// are fatal at setup, never clamped.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return &agent.ConfigError{Field: "workers", Reason: "must be positive"}
	}
	if c.DT <= 0 {
		return &agent.ConfigError{Field: "dt", Reason: "must be positive"}
	}
	if c.HistoryLimit <= 0 {
		return &agent.ConfigError{Field: "history_limit", Reason: "must be positive"}
	}
	if c.MaxRetries < 0 {
		return &agent.ConfigError{Field: "max_retries", Reason: "must not be negative"}
	}
	if c.HeavyTimeout <= 0 || c.HeavyWait <= 0 {
		return &agent.ConfigError{Field: "heavy_timeout", Reason: "timeouts must be positive"}
	}
	if c.Tiering.DemoteStreak <= 0 {
		return &agent.ConfigError{Field: "tiering.demote_streak", Reason: "must be positive"}
	}
	if c.Tiering.Memory.Capacity <= 0 {
		return &agent.ConfigError{Field: "memory.capacity", Reason: "must be positive"}
	}
	if err := c.Grid.Validate(); err != nil {
		return &agent.ConfigError{Field: "grid", Reason: err.Error()}
	}
	return nil
}

// SiteKind distinguishes the two world site flavors.
type SiteKind int

const (
	// SiteHarvest rewards any nearby active agent.
	SiteHarvest SiteKind = iota
	// SiteTrade rewards agents that broadcast nearby.
	SiteTrade
)

// Site is a fixed world location that emits signal and pays rewards.
type Site struct {
	Name string
	Kind SiteKind
	X, Y int
	// Yield is the signal emitted and the reward scale per tick.
	Yield float64
}

// Engine orchestrates one swarm. SetGlobalTriggers, PopPromotions, and
// SampleMetrics are safe from any goroutine; Tick, AddDormantAgents,
// ApplyShock, and RegisterSites serialize on the engine mutex.
type Engine struct {
	cfg        Config
	log        *slog.Logger
	dispatcher dispatch.Dispatcher

	triggers atomic.Uint64

	mu        sync.Mutex
	store     *columnar.Store
	ctl       *tiering.Controller
	grid      *signalgrid.Grid
	shield    *shield.Shield
	rng       *rand.Rand
	sites     []Site
	tickCount uint64
	pending   map[agent.ID]*inflight
	last      tickStats
}

// tickStats accumulates per-tick observations folded into metrics.
type tickStats struct {
	promoted    int
	demoted     int
	blocked     int
	timeouts    int
	surpriseSum float64
	surpriseN   int
	dispatched  int
	dispatchOK  int
}

// New builds an engine. A nil logger falls back to slog.Default; a nil
// dispatcher falls back to the heuristic backend.
func New(cfg Config, d dispatch.Dispatcher, log *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	if d == nil {
		d = &dispatch.HeuristicDispatcher{}
	}

	store := columnar.NewStore()
	tcfg := cfg.Tiering
	tcfg.Place = scatter(cfg.Grid.Width, cfg.Grid.Height)
	e := &Engine{
		cfg:        cfg,
		log:        log,
		dispatcher: d,
		store:      store,
		ctl:        tiering.NewController(tcfg, store),
		grid:       signalgrid.New(cfg.Grid),
		shield:     shield.New(cfg.Shield),
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		pending:    make(map[agent.ID]*inflight),
	}
	return e, nil
}

// scatter deterministically spreads woken agents over the world so a mass
// wake does not stack the population on one cell.
func scatter(w, h int) func(agent.ID) (float32, float32) {
	return func(id agent.ID) (float32, float32) {
		hsh := fnv.New64a()
		var buf [4]byte
		buf[0] = byte(id)
		buf[1] = byte(id >> 8)
		buf[2] = byte(id >> 16)
		buf[3] = byte(id >> 24)
		hsh.Write(buf[:])
		v := hsh.Sum64()
		return float32(v % uint64(w)), float32((v >> 32) % uint64(h))
	}
}

// PartialInsertError reports a bulk insert where some records failed. The
// successfully added records stay added.
type PartialInsertError struct {
	Added  int
	Errors []error
}

func (e *PartialInsertError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("added %d agents, %d rejected: %s", e.Added, len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the per-record errors for errors.Is/As.
func (e *PartialInsertError) Unwrap() []error { return e.Errors }

// AddDormantAgents inserts a batch of sleeping agents. Records with duplicate
// IDs are rejected individually; the rest are added. Returns the number added
// and, when any record failed, a PartialInsertError.
func (e *Engine) AddDormantAgents(seeds []agent.Seed) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	added := 0
	var errs []error
	for _, s := range seeds {
		if err := e.store.AddDormant(s); err != nil {
			errs = append(errs, err)
			continue
		}
		added++
	}
	if len(errs) > 0 {
		return added, &PartialInsertError{Added: added, Errors: errs}
	}
	return added, nil
}

// SetGlobalTriggers replaces the trigger mask snapshotted at the start of
// the next tick.
func (e *Engine) SetGlobalTriggers(mask agent.TriggerMask) {
	e.triggers.Store(uint64(mask))
}

// GlobalTriggers returns the currently set trigger mask.
func (e *Engine) GlobalTriggers() agent.TriggerMask {
	return agent.TriggerMask(e.triggers.Load())
}

// PopPromotions atomically drains the promotions recorded since the last
// call.
func (e *Engine) PopPromotions() []tiering.Promotion {
	return e.ctl.PopPromotions()
}

// Shield exposes the safety shield for template registration.
func (e *Engine) Shield() *shield.Shield { return e.shield }

// RegisterSites replaces the world's site list. Site coordinates outside the
// grid are rejected.
func (e *Engine) RegisterSites(sites []Site) error {
	for _, s := range sites {
		if s.X < 0 || s.X >= e.cfg.Grid.Width || s.Y < 0 || s.Y >= e.cfg.Grid.Height {
			return fmt.Errorf("site %q at (%d, %d) outside %dx%d world",
				s.Name, s.X, s.Y, e.cfg.Grid.Width, e.cfg.Grid.Height)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sites = append([]Site(nil), sites...)
	return nil
}

// ApplyShock floods a blast radius with signal and forces maximum surprise
// on every full and heavy agent caught inside it. The shock is the canonical
// way scenarios model an environmental upset.
func (e *Engine) ApplyShock(x, y int, radius float64, intensity float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := int(radius)
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			d2 := float64(dx*dx + dy*dy)
			if d2 > radius*radius {
				continue
			}
			falloff := 1 - d2/(radius*radius+1)
			e.grid.Emit(x+dx, y+dy, intensity*falloff)
		}
	}

	shockVecA := []float32{1, 0}
	shockVecB := []float32{0, 1}
	for _, p := range []*columnar.CognitivePartition{&e.store.Full, &e.store.Heavy} {
		for i := 0; i < p.Len(); i++ {
			ddx := float64(p.X[i]) - float64(x)
			ddy := float64(p.Y[i]) - float64(y)
			if ddx*ddx+ddy*ddy > radius*radius {
				continue
			}
			p.Memory[i].Record("shock", e.tickCount, shockVecA, shockVecB)
			p.Activity[i] = 1
			p.RL[i].Eligibility = 1
		}
	}
	e.log.Info("shock applied", "x", x, "y", y, "radius", radius, "intensity", intensity)
}
