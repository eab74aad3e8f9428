package dispatch

import (
	"context"
	"sort"
	"strings"
)

// HeuristicDispatcher is the deterministic fallback reasoner: it ranks
// candidate actions by token overlap with the observation and the strongest
// memories. It needs no model and always succeeds, so it is the default
// backend and the safety net when the local model is unavailable.
type HeuristicDispatcher struct {
	// PlanLength caps the number of actions per proposal. Zero means 3.
	PlanLength int
}

// Propose ranks the candidates and returns the top PlanLength of them.
func (h *HeuristicDispatcher) Propose(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	if len(req.Candidates) == 0 {
		return Response{Confidence: 0}, nil
	}

	vocab := tokenSet(req.Observation)
	for _, m := range req.Memories {
		for tok := range tokenSet(m) {
			vocab[tok] = true
		}
	}

	type scored struct {
		action string
		score  int
		pos    int
	}
	ranked := make([]scored, len(req.Candidates))
	for i, c := range req.Candidates {
		s := 0
		for tok := range tokenSet(c) {
			if vocab[tok] {
				s++
			}
		}
		ranked[i] = scored{action: c, score: s, pos: i}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].pos < ranked[j].pos
	})

	n := h.PlanLength
	if n <= 0 {
		n = 3
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	actions := make([]string, n)
	matched := 0
	for i := 0; i < n; i++ {
		actions[i] = ranked[i].action
		if ranked[i].score > 0 {
			matched++
		}
	}
	return Response{Actions: actions, Confidence: float64(matched) / float64(n)}, nil
}

// Available always reports true.
func (h *HeuristicDispatcher) Available() bool { return true }

// Close is a no-op.
func (h *HeuristicDispatcher) Close() error { return nil }

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '_' || r == '-' || r == '.' || r == ','
	}) {
		out[tok] = true
	}
	return out
}
