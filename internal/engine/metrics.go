package engine

import (
	"github.com/nvandessel/swarmlod/internal/adaptation"
	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/columnar"
)

// Metrics is a consistent snapshot of the swarm after a tick.
type Metrics struct {
	Tick        uint64               `json:"tick"`
	Populations [agent.TierCount]int `json:"populations"`
	Total       int                  `json:"total"`

	MeanHealth    float64 `json:"mean_health"`
	MeanActivity  float64 `json:"mean_activity"`
	MeanSurprise  float64 `json:"mean_surprise"`
	MeanShareProb float64 `json:"mean_share_prob"`
	SignalTotal   float64 `json:"signal_total"`

	Brokers  int `json:"brokers"`
	Hoarders int `json:"hoarders"`
	Neutrals int `json:"neutrals"`

	Promoted         int `json:"promoted"`
	Demoted          int `json:"demoted"`
	Blocked          int `json:"blocked"`
	DispatchTimeouts int `json:"dispatch_timeouts"`
	HeavyInFlight    int `json:"heavy_in_flight"`
}

// SampleMetrics returns a snapshot of the current population. Per-tick
// counters (promotions, blocks, timeouts, surprise) reflect the most recent
// completed tick.
func (e *Engine) SampleMetrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sampleLocked()
}

func (e *Engine) sampleLocked() Metrics {
	m := Metrics{
		Tick:             e.tickCount,
		Populations:      e.store.Counts(),
		Total:            e.store.Total(),
		SignalTotal:      e.grid.Total(),
		Promoted:         e.last.promoted,
		Demoted:          e.last.demoted,
		Blocked:          e.last.blocked,
		DispatchTimeouts: e.last.timeouts,
		HeavyInFlight:    len(e.pending),
	}
	if e.last.surpriseN > 0 {
		m.MeanSurprise = e.last.surpriseSum / float64(e.last.surpriseN)
	}

	var healthSum, activitySum float64
	var shareSum float64
	active, adapted := 0, 0

	fold := func(health, activity []float32, rl []adaptation.State) {
		for i := range health {
			healthSum += float64(health[i])
			activitySum += float64(activity[i])
			active++
		}
		for i := range rl {
			shareSum += rl[i].ShareProb
			adapted++
			switch adaptation.Classify(&rl[i], e.cfg.Adaptation) {
			case agent.RoleBroker:
				m.Brokers++
			case agent.RoleHoarder:
				m.Hoarders++
			default:
				m.Neutrals++
			}
		}
	}
	fold(e.store.Simplified.Health, e.store.Simplified.Activity, e.store.Simplified.RL)
	for _, p := range []*columnar.CognitivePartition{&e.store.Full, &e.store.Heavy} {
		fold(p.Health, p.Activity, p.RL)
	}

	if active > 0 {
		m.MeanHealth = healthSum / float64(active)
		m.MeanActivity = activitySum / float64(active)
	}
	if adapted > 0 {
		m.MeanShareProb = shareSum / float64(adapted)
	}
	return m
}
