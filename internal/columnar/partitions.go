// Package columnar implements the per-tier structure-of-arrays agent store.
// Each tier partition keeps agent attributes in dense parallel columns so the
// orchestrator's batch passes stream through contiguous memory. Rows are
// relocated between partitions with swap-with-last removal, preserving dense
// packing; the remaining state owned by a row (memory buffer, RL state,
// action history) moves with it.
package columnar

import (
	"github.com/nvandessel/swarmlod/internal/adaptation"
	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/memory"
)

// DormantRow is the minimal per-agent state carried in the dormant tier.
type DormantRow struct {
	ID        agent.ID
	Predicted float64
	Wake      agent.TriggerMask
}

// MotionRow adds the spatial and vitality state carried from the simplified
// tier upward.
type MotionRow struct {
	DormantRow
	X, Y     float32
	VX, VY   float32
	Health   float32
	Activity float32
	// LowStreak counts consecutive ticks with activity below the demotion
	// floor; the tier controller uses it for hysteresis.
	LowStreak int
	RL        adaptation.State
}

// CognitiveRow adds the episodic memory buffer, recent action history, and
// heavy-tier retry bookkeeping carried by the full and heavy tiers.
type CognitiveRow struct {
	MotionRow
	Memory  *memory.Buffer
	Actions []string
	Retries int
}

// DormantPartition is the dormant tier's columnar table: identifier,
// predicted-state scalar, and wake-condition bitmask only.
type DormantPartition struct {
	IDs       []agent.ID
	Predicted []float64
	Wake      []agent.TriggerMask
}

// Len returns the number of rows.
func (p *DormantPartition) Len() int { return len(p.IDs) }

func (p *DormantPartition) append(r DormantRow) int {
	p.IDs = append(p.IDs, r.ID)
	p.Predicted = append(p.Predicted, r.Predicted)
	p.Wake = append(p.Wake, r.Wake)
	return len(p.IDs) - 1
}

// take removes row i by swapping the last row into its place. It returns the
// removed row and the ID of the row that moved into slot i (or the removed
// ID itself if i was last).
func (p *DormantPartition) take(i int) (DormantRow, agent.ID) {
	r := DormantRow{ID: p.IDs[i], Predicted: p.Predicted[i], Wake: p.Wake[i]}
	last := len(p.IDs) - 1
	p.IDs[i] = p.IDs[last]
	p.Predicted[i] = p.Predicted[last]
	p.Wake[i] = p.Wake[last]
	moved := p.IDs[i]
	p.IDs = p.IDs[:last]
	p.Predicted = p.Predicted[:last]
	p.Wake = p.Wake[:last]
	return r, moved
}

func (p *DormantPartition) row(i int) DormantRow {
	return DormantRow{ID: p.IDs[i], Predicted: p.Predicted[i], Wake: p.Wake[i]}
}

// MotionPartition is the simplified tier's table: positions, velocities,
// health, rolling activity, and RL state, but no memory buffer.
type MotionPartition struct {
	IDs       []agent.ID
	Predicted []float64
	Wake      []agent.TriggerMask
	X, Y      []float32
	VX, VY    []float32
	Health    []float32
	Activity  []float32
	LowStreak []int
	RL        []adaptation.State
}

// Len returns the number of rows.
func (p *MotionPartition) Len() int { return len(p.IDs) }

func (p *MotionPartition) append(r MotionRow) int {
	p.IDs = append(p.IDs, r.ID)
	p.Predicted = append(p.Predicted, r.Predicted)
	p.Wake = append(p.Wake, r.Wake)
	p.X = append(p.X, r.X)
	p.Y = append(p.Y, r.Y)
	p.VX = append(p.VX, r.VX)
	p.VY = append(p.VY, r.VY)
	p.Health = append(p.Health, r.Health)
	p.Activity = append(p.Activity, r.Activity)
	p.LowStreak = append(p.LowStreak, r.LowStreak)
	p.RL = append(p.RL, r.RL)
	return len(p.IDs) - 1
}

func (p *MotionPartition) take(i int) (MotionRow, agent.ID) {
	r := p.row(i)
	last := len(p.IDs) - 1
	p.IDs[i] = p.IDs[last]
	p.Predicted[i] = p.Predicted[last]
	p.Wake[i] = p.Wake[last]
	p.X[i] = p.X[last]
	p.Y[i] = p.Y[last]
	p.VX[i] = p.VX[last]
	p.VY[i] = p.VY[last]
	p.Health[i] = p.Health[last]
	p.Activity[i] = p.Activity[last]
	p.LowStreak[i] = p.LowStreak[last]
	p.RL[i] = p.RL[last]
	moved := p.IDs[i]
	p.IDs = p.IDs[:last]
	p.Predicted = p.Predicted[:last]
	p.Wake = p.Wake[:last]
	p.X = p.X[:last]
	p.Y = p.Y[:last]
	p.VX = p.VX[:last]
	p.VY = p.VY[:last]
	p.Health = p.Health[:last]
	p.Activity = p.Activity[:last]
	p.LowStreak = p.LowStreak[:last]
	p.RL = p.RL[:last]
	return r, moved
}

func (p *MotionPartition) row(i int) MotionRow {
	return MotionRow{
		DormantRow: DormantRow{ID: p.IDs[i], Predicted: p.Predicted[i], Wake: p.Wake[i]},
		X:          p.X[i], Y: p.Y[i],
		VX: p.VX[i], VY: p.VY[i],
		Health:    p.Health[i],
		Activity:  p.Activity[i],
		LowStreak: p.LowStreak[i],
		RL:        p.RL[i],
	}
}

// CognitivePartition is the table for the full and heavy tiers: everything
// in MotionPartition plus the memory buffer handle, action history, and
// dispatch retry counter.
type CognitivePartition struct {
	MotionPartition
	Memory  []*memory.Buffer
	Actions [][]string
	Retries []int
}

func (p *CognitivePartition) appendCognitive(r CognitiveRow) int {
	i := p.MotionPartition.append(r.MotionRow)
	p.Memory = append(p.Memory, r.Memory)
	p.Actions = append(p.Actions, r.Actions)
	p.Retries = append(p.Retries, r.Retries)
	return i
}

func (p *CognitivePartition) takeCognitive(i int) (CognitiveRow, agent.ID) {
	mem := p.Memory[i]
	actions := p.Actions[i]
	retries := p.Retries[i]
	last := len(p.Memory) - 1
	p.Memory[i] = p.Memory[last]
	p.Actions[i] = p.Actions[last]
	p.Retries[i] = p.Retries[last]
	p.Memory = p.Memory[:last]
	p.Actions = p.Actions[:last]
	p.Retries = p.Retries[:last]

	mr, moved := p.MotionPartition.take(i)
	return CognitiveRow{MotionRow: mr, Memory: mem, Actions: actions, Retries: retries}, moved
}

func (p *CognitivePartition) cognitiveRow(i int) CognitiveRow {
	return CognitiveRow{
		MotionRow: p.MotionPartition.row(i),
		Memory:    p.Memory[i],
		Actions:   p.Actions[i],
		Retries:   p.Retries[i],
	}
}
