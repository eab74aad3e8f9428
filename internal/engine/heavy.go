package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nvandessel/swarmlod/internal/adaptation"
	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/dispatch"
)

// inflight is one cancellable dispatch unit. At most one exists per heavy
// agent; an unanswered unit is carried across tick boundaries.
type inflight struct {
	cancel context.CancelFunc
	done   chan proposeResult
	tick   uint64
}

type proposeResult struct {
	resp dispatch.Response
	err  error
}

// updateHeavy runs the heavy tier: the same rich perception as the full
// tier, then dispatch-await. Agents without a proposal in flight get one
// started under the per-dispatch timeout; the tick then waits a bounded time
// at its boundary and applies whatever arrived. Unanswered units stay in
// flight into the next tick; repeated failures demote the agent.
func (e *Engine) updateHeavy(ctx context.Context, tick uint64, stats *tickStats) error {
	p := &e.store.Heavy
	for i := 0; i < p.Len(); i++ {
		e.observe(p, i, tick, stats)
	}

	for i := 0; i < p.Len(); i++ {
		id := p.IDs[i]
		if _, ok := e.pending[id]; ok {
			continue
		}
		req := e.buildRequest(i, tick)
		dctx, cancel := context.WithTimeout(context.Background(), e.cfg.HeavyTimeout)
		fl := &inflight{cancel: cancel, done: make(chan proposeResult, 1), tick: tick}
		e.pending[id] = fl
		stats.dispatched++
		go func() {
			resp, err := e.dispatcher.Propose(dctx, req)
			cancel()
			if err != nil && errors.Is(err, context.DeadlineExceeded) {
				err = dispatch.ErrTimeout
			}
			fl.done <- proposeResult{resp: resp, err: err}
		}()
	}

	boundary := time.Now().Add(e.cfg.HeavyWait)
	for id, fl := range e.pending {
		remaining := time.Until(boundary)
		if remaining < 0 {
			remaining = 0
		}
		wait := time.NewTimer(remaining)
		select {
		case res := <-fl.done:
			delete(e.pending, id)
			e.applyProposal(id, res, tick, stats)
		case <-wait.C:
			// Still in flight; pick it up next tick.
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		}
		wait.Stop()
	}
	return nil
}

// buildRequest snapshots one heavy row into a dispatch request. The copy is
// taken before the goroutine starts so the reasoner never touches live
// columns.
func (e *Engine) buildRequest(i int, tick uint64) dispatch.Request {
	p := &e.store.Heavy
	x, y := int(p.X[i]), int(p.Y[i])
	gx, gy := e.grid.Gradient(x, y)

	var memories []string
	strongest := p.Memory[i].Strongest()
	if strongest != nil {
		memories = append(memories, strongest.Event)
	}
	for _, entry := range p.Memory[i].Entries() {
		if len(memories) >= 4 {
			break
		}
		if strongest != nil && entry.Event == strongest.Event {
			continue
		}
		memories = append(memories, entry.Event)
	}

	return dispatch.Request{
		AgentID:     p.IDs[i],
		Tick:        tick,
		Observation: fmt.Sprintf("signal %.2f gradient %.2f %.2f health %.2f", e.grid.Sample(x, y), gx, gy, p.Health[i]),
		Memories:    memories,
		History:     append([]string(nil), p.Actions[i]...),
		Candidates:  append([]string(nil), e.cfg.Actions...),
	}
}

// applyProposal folds a finished dispatch back into the agent's row. Agents
// demoted while their unit was in flight drop the result.
func (e *Engine) applyProposal(id agent.ID, res proposeResult, tick uint64, stats *tickStats) {
	loc, ok := e.store.Lookup(id)
	if !ok || loc.Tier != agent.TierHeavy {
		return
	}
	p := &e.store.Heavy
	i := loc.Row

	if res.err != nil {
		if errors.Is(res.err, dispatch.ErrTimeout) {
			stats.timeouts++
		}
		p.Retries[i]++
		e.log.Debug("dispatch failed", "agent", id, "retries", p.Retries[i], "error", res.err)
		if p.Retries[i] > e.cfg.MaxRetries {
			if e.ctl.Demote(id) {
				stats.demoted++
				e.log.Info("heavy agent demoted after repeated dispatch failures", "agent", id)
			}
		}
		return
	}

	p.Retries[i] = 0
	stats.dispatchOK++

	plan := res.resp.Actions
	seq := append(append([]string(nil), p.Actions[i]...), plan...)
	if as := e.shield.Assess(seq); as.Blocked {
		stats.blocked++
		adaptation.Update(&p.RL[i], -1, e.cfg.Adaptation)
		e.log.Debug("plan blocked", "agent", id, "template", as.Template, "score", as.Score)
		return
	}

	for _, a := range plan {
		p.Actions[i] = appendBounded(p.Actions[i], a, e.cfg.HistoryLimit)
	}
	reward := res.resp.Confidence + e.rewardAt(float64(p.X[i]), float64(p.Y[i]), SiteHarvest)
	adaptation.Update(&p.RL[i], reward, e.cfg.Adaptation)
	if len(plan) > 0 {
		conf := float32(res.resp.Confidence)
		p.Memory[i].Record(plan[0], tick, []float32{1, 0}, []float32{conf, 1 - conf})
	}
}

// CancelInflight aborts every in-flight dispatch unit, used on shutdown.
func (e *Engine) CancelInflight() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, fl := range e.pending {
		fl.cancel()
		delete(e.pending, id)
	}
}
