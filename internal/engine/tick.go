package engine

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/swarmlod/internal/adaptation"
	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/columnar"
	"github.com/nvandessel/swarmlod/internal/memory"
	"github.com/nvandessel/swarmlod/internal/vecmath"
)

// recordThreshold is the surprise below which the full-tier pass does not
// write a memory entry; unremarkable ticks decay existing memories only.
const recordThreshold = 0.05

// Tick advances the simulation one step and returns the post-tick metrics.
// Calling Tick before any agents were added fails with InvalidStateError.
// Cancellation is honored between phases, so an aborted tick always leaves
// the partitions structurally consistent.
func (e *Engine) Tick(ctx context.Context) (Metrics, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store.Total() == 0 {
		return Metrics{}, &agent.InvalidStateError{Op: "tick", Reason: "no agents added"}
	}
	if err := ctx.Err(); err != nil {
		return Metrics{}, err
	}

	tick := e.tickCount + 1
	triggers := agent.TriggerMask(e.triggers.Load())
	stats := tickStats{}

	sum := e.ctl.Step(triggers, tick)
	stats.promoted = sum.Promoted
	stats.demoted = sum.Demoted

	phases := []func(context.Context, uint64, *tickStats) error{
		e.updateDormant,
		e.updateSimplified,
		e.updateFull,
		e.updateHeavy,
	}
	for _, phase := range phases {
		if err := ctx.Err(); err != nil {
			return Metrics{}, err
		}
		if err := phase(ctx, tick, &stats); err != nil {
			return Metrics{}, err
		}
	}

	e.emitSites()
	e.grid.Diffuse()

	if err := e.store.Verify(); err != nil {
		return Metrics{}, fmt.Errorf("tick %d: %w", tick, err)
	}

	e.tickCount = tick
	e.last = stats
	m := e.sampleLocked()
	e.log.Debug("tick complete",
		"tick", tick,
		"promoted", stats.promoted,
		"demoted", stats.demoted,
		"blocked", stats.blocked,
		"timeouts", stats.timeouts,
		"heavy_inflight", len(e.pending))
	return m, nil
}

// forRanges fans fn out over contiguous row ranges using an errgroup bounded
// by the worker count. Each worker owns a disjoint range, so no two workers
// touch the same row.
func (e *Engine) forRanges(ctx context.Context, n int, fn func(lo, hi int) error) error {
	if n == 0 {
		return nil
	}
	workers := e.cfg.Workers
	if workers > n {
		workers = n
	}
	g, _ := errgroup.WithContext(ctx)
	chunk := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		lo, hi := lo, hi
		g.Go(func() error { return fn(lo, hi) })
	}
	return g.Wait()
}

// updateDormant is the cheapest pass: sleeping agents' predicted state fades
// so long-dormant agents become gradually harder to wake.
func (e *Engine) updateDormant(ctx context.Context, _ uint64, _ *tickStats) error {
	p := &e.store.Dormant
	fade := 1 - e.cfg.DormantDrift*e.cfg.DT
	if fade < 0 {
		fade = 0
	}
	return e.forRanges(ctx, p.Len(), func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			p.Predicted[i] *= fade
		}
		return nil
	})
}

// updateSimplified integrates motion against the signal field: velocity is
// steered up the local gradient, activity tracks speed and ambient signal.
// The grid is read-only during this phase.
func (e *Engine) updateSimplified(ctx context.Context, _ uint64, _ *tickStats) error {
	p := &e.store.Simplified
	dt := float32(e.cfg.DT)
	maxX := float32(e.cfg.Grid.Width - 1)
	maxY := float32(e.cfg.Grid.Height - 1)
	return e.forRanges(ctx, p.Len(), func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			gx, gy := e.grid.Gradient(int(p.X[i]), int(p.Y[i]))
			p.VX[i] = 0.8*p.VX[i] + 0.2*float32(gx)
			p.VY[i] = 0.8*p.VY[i] + 0.2*float32(gy)
			p.X[i] = clampf(p.X[i]+p.VX[i]*dt, 0, maxX)
			p.Y[i] = clampf(p.Y[i]+p.VY[i]*dt, 0, maxY)

			speed := math.Hypot(float64(p.VX[i]), float64(p.VY[i]))
			sig := e.grid.Sample(int(p.X[i]), int(p.Y[i]))
			drive := math.Min(1, 4*speed+sig/(1+sig))
			p.Activity[i] = float32(0.8*float64(p.Activity[i]) + 0.2*drive)
			p.Health[i] = clampf(p.Health[i]+0.01*dt, 0, 1)
		}
		return nil
	})
}

// observe runs the shared rich-tier perception step for one full or heavy
// row: prediction error against the local signal drives memory formation and
// the pollination weights, and a broadcast decision feeds the field back.
// Returns the normalized observation.
func (e *Engine) observe(p *columnar.CognitivePartition, i int, tick uint64, stats *tickStats) float64 {
	x, y := int(p.X[i]), int(p.Y[i])
	sig := e.grid.Sample(x, y)
	obs := sig / (1 + sig)

	expected := []float32{float32(p.Predicted[i]), float32(1 - p.Predicted[i])}
	observed := []float32{float32(obs), float32(1 - obs)}
	surprise := memory.Surprise(expected, observed)
	stats.surpriseSum += surprise
	stats.surpriseN++

	if surprise > recordThreshold {
		event := "signal_spike"
		if obs < p.Predicted[i] {
			event = "signal_drop"
		}
		p.Memory[i].Record(event, tick, expected, observed)
	}
	p.Memory[i].Decay(e.cfg.DT)

	reward := e.rewardAt(float64(p.X[i]), float64(p.Y[i]), SiteHarvest) + 0.1*obs - 0.05
	adaptation.Update(&p.RL[i], reward, e.cfg.Adaptation)

	if adaptation.ShouldBroadcast(&p.RL[i], e.rng.Float64(), surprise, e.cfg.Adaptation) {
		e.grid.Emit(x, y, e.cfg.BroadcastIntensity)
		if trade := e.rewardAt(float64(p.X[i]), float64(p.Y[i]), SiteTrade); trade > 0 {
			adaptation.Update(&p.RL[i], trade, e.cfg.Adaptation)
		}
	}

	p.Predicted[i] += 0.25 * (obs - p.Predicted[i])
	drive := math.Min(1, obs+math.Abs(reward))
	p.Activity[i] = float32(0.7*float64(p.Activity[i]) + 0.3*drive)
	return obs
}

// updateFull is the sequential rich pass: perception via observe, then a
// fixed action policy with every chosen action gated by the shield.
func (e *Engine) updateFull(_ context.Context, tick uint64, stats *tickStats) error {
	p := &e.store.Full
	for i := 0; i < p.Len(); i++ {
		obs := e.observe(p, i, tick, stats)

		action := e.chooseAction(float64(p.X[i]), float64(p.Y[i]), obs)
		seq := append(append([]string(nil), p.Actions[i]...), action)
		if as := e.shield.Assess(seq); as.Blocked {
			stats.blocked++
			adaptation.Update(&p.RL[i], -1, e.cfg.Adaptation)
			action = "hold"
		}
		p.Actions[i] = appendBounded(p.Actions[i], action, e.cfg.HistoryLimit)
	}
	return nil
}

// chooseAction is the full tier's fixed policy: harvest at a site, climb the
// gradient when there is one, otherwise wander.
func (e *Engine) chooseAction(x, y, obs float64) string {
	if e.rewardAt(x, y, SiteHarvest) > 0 {
		return "harvest"
	}
	gx, gy := e.grid.Gradient(int(x), int(y))
	if math.Abs(gx)+math.Abs(gy) > 1e-6 {
		return "seek_signal"
	}
	if obs > 0.5 {
		return "signal_nest"
	}
	return "wander"
}

// emitSites deposits each site's per-tick signal yield.
func (e *Engine) emitSites() {
	for _, s := range e.sites {
		e.grid.Emit(s.X, s.Y, s.Yield)
	}
}

// rewardAt returns the total yield-scaled reward from sites of the given
// kind within SiteRadius of (x, y).
func (e *Engine) rewardAt(x, y float64, kind SiteKind) float64 {
	r2 := e.cfg.SiteRadius * e.cfg.SiteRadius
	total := 0.0
	for _, s := range e.sites {
		if s.Kind != kind {
			continue
		}
		dx, dy := x-float64(s.X), y-float64(s.Y)
		if dx*dx+dy*dy <= r2 {
			total += 0.5 * s.Yield
		}
	}
	return total
}

func appendBounded(hist []string, action string, limit int) []string {
	hist = append(hist, action)
	if len(hist) > limit {
		hist = hist[len(hist)-limit:]
	}
	return hist
}

func clampf(v, lo, hi float32) float32 {
	return float32(vecmath.Clamp(float64(v), float64(lo), float64(hi)))
}
