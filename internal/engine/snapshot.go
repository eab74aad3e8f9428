package engine

import (
	"fmt"

	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/columnar"
	"github.com/nvandessel/swarmlod/internal/memory"
	"github.com/nvandessel/swarmlod/internal/tiering"
)

// SnapshotRow is one agent's state widened to the heavy-tier shape. Fields a
// lower tier does not carry are zero; Memory is never included (episodic
// buffers are rebuilt on restore).
type SnapshotRow struct {
	Tier agent.Tier
	Row  columnar.CognitiveRow
}

// Snapshot returns a copy of every live agent row and the current tick. The
// copy is deep for slices, so callers may hold it across ticks.
func (e *Engine) Snapshot() ([]SnapshotRow, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows := make([]SnapshotRow, 0, e.store.Total())

	d := &e.store.Dormant
	for i := 0; i < d.Len(); i++ {
		rows = append(rows, SnapshotRow{Tier: agent.TierDormant, Row: columnar.CognitiveRow{
			MotionRow: columnar.MotionRow{DormantRow: columnar.DormantRow{
				ID: d.IDs[i], Predicted: d.Predicted[i], Wake: d.Wake[i],
			}},
		}})
	}

	s := &e.store.Simplified
	for i := 0; i < s.Len(); i++ {
		rows = append(rows, SnapshotRow{Tier: agent.TierSimplified, Row: columnar.CognitiveRow{
			MotionRow: motionRowCopy(s, i),
		}})
	}

	for _, pt := range []struct {
		tier agent.Tier
		p    *columnar.CognitivePartition
	}{
		{agent.TierFull, &e.store.Full},
		{agent.TierHeavy, &e.store.Heavy},
	} {
		for i := 0; i < pt.p.Len(); i++ {
			rows = append(rows, SnapshotRow{Tier: pt.tier, Row: columnar.CognitiveRow{
				MotionRow: motionRowCopy(&pt.p.MotionPartition, i),
				Actions:   append([]string(nil), pt.p.Actions[i]...),
				Retries:   pt.p.Retries[i],
			}})
		}
	}
	return rows, e.tickCount
}

func motionRowCopy(p *columnar.MotionPartition, i int) columnar.MotionRow {
	return columnar.MotionRow{
		DormantRow: columnar.DormantRow{ID: p.IDs[i], Predicted: p.Predicted[i], Wake: p.Wake[i]},
		X:          p.X[i], Y: p.Y[i],
		VX: p.VX[i], VY: p.VY[i],
		Health:    p.Health[i],
		Activity:  p.Activity[i],
		LowStreak: p.LowStreak[i],
		RL:        p.RL[i],
	}
}

// Restore replaces the engine's population and tick counter with a saved
// snapshot. Cognitive-tier agents get fresh empty memory buffers. In-flight
// dispatches are cancelled. Restore fails without side effects on a
// structurally invalid snapshot.
func (e *Engine) Restore(rows []SnapshotRow, tick uint64) error {
	store := columnar.NewStore()
	for _, r := range rows {
		switch r.Tier {
		case agent.TierDormant:
			if err := store.AddDormant(agent.Seed{
				ID:             r.Row.ID,
				PredictedState: r.Row.Predicted,
				WakeMask:       r.Row.Wake,
			}); err != nil {
				return fmt.Errorf("restore: %w", err)
			}
		case agent.TierSimplified:
			store.PutSimplified(r.Row.MotionRow)
		case agent.TierFull, agent.TierHeavy:
			row := r.Row
			row.Memory = memory.NewBuffer(e.cfg.Tiering.Memory)
			store.PutCognitive(r.Tier, row)
		default:
			return fmt.Errorf("restore: agent %d has unknown tier %d", r.Row.ID, r.Tier)
		}
	}
	if err := store.Verify(); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for id, fl := range e.pending {
		fl.cancel()
		delete(e.pending, id)
	}
	tcfg := e.cfg.Tiering
	tcfg.Place = scatter(e.cfg.Grid.Width, e.cfg.Grid.Height)
	e.store = store
	e.ctl = tiering.NewController(tcfg, store)
	e.tickCount = tick
	e.last = tickStats{}
	return nil
}
