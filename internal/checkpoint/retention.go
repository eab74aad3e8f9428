package checkpoint

import (
	"context"
	"fmt"
	"time"
)

// RetentionPolicy decides which checkpoints to keep. Input is sorted
// newest-first, as returned by List.
type RetentionPolicy interface {
	Apply(checkpoints []Info) (keep []Info)
}

// KeepCount keeps the N most recent checkpoints.
type KeepCount struct {
	MaxCount int
}

// Apply keeps the first MaxCount checkpoints.
func (p *KeepCount) Apply(checkpoints []Info) []Info {
	if len(checkpoints) <= p.MaxCount {
		return checkpoints
	}
	return checkpoints[:p.MaxCount]
}

// KeepAge keeps checkpoints newer than MaxAge. A zero nowFunc uses the wall
// clock.
type KeepAge struct {
	MaxAge  time.Duration
	nowFunc func() time.Time
}

// Apply keeps checkpoints whose CreatedAt falls within MaxAge of now.
func (p *KeepAge) Apply(checkpoints []Info) []Info {
	now := time.Now
	if p.nowFunc != nil {
		now = p.nowFunc
	}
	cutoff := now().Add(-p.MaxAge)
	var keep []Info
	for _, c := range checkpoints {
		if c.CreatedAt.After(cutoff) {
			keep = append(keep, c)
		}
	}
	return keep
}

// CompositePolicy keeps a checkpoint if ANY sub-policy wants it.
type CompositePolicy struct {
	Policies []RetentionPolicy
}

// Apply returns the union of checkpoints kept by any sub-policy.
func (p *CompositePolicy) Apply(checkpoints []Info) []Info {
	kept := make(map[int64]bool)
	for _, policy := range p.Policies {
		for _, c := range policy.Apply(checkpoints) {
			kept[c.ID] = true
		}
	}

	var result []Info
	for _, c := range checkpoints {
		if kept[c.ID] {
			result = append(result, c)
		}
	}
	return result
}

// Prune deletes checkpoints not kept by the policy and returns the deleted
// IDs.
func (s *Store) Prune(ctx context.Context, policy RetentionPolicy) (deleted []int64, err error) {
	checkpoints, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	keep := policy.Apply(checkpoints)
	keepSet := make(map[int64]bool, len(keep))
	for _, c := range keep {
		keepSet[c.ID] = true
	}

	for _, c := range checkpoints {
		if !keepSet[c.ID] {
			if err := s.Delete(ctx, c.ID); err != nil {
				return deleted, fmt.Errorf("pruning checkpoint %d: %w", c.ID, err)
			}
			deleted = append(deleted, c.ID)
		}
	}
	return deleted, nil
}
