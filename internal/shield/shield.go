// Package shield implements the behavioral safety gate. Proposed action
// sequences are scored against a registry of risk templates using longest
// common subsequence overlap, so padded or reordered variants of a known
// dangerous pattern still match. Scoring is advisory; callers decide what a
// block means (heavy-tier dispatch refuses the action).
package shield

import (
	"fmt"
	"sync"
)

// Config holds the shield's tunable parameters.
type Config struct {
	// BlockThreshold is the normalized match score at or above which a
	// sequence is blocked. Default: 0.8.
	BlockThreshold float64
}

// DefaultConfig returns the default shield configuration.
func DefaultConfig() Config {
	return Config{BlockThreshold: 0.8}
}

// Template is a named risky action pattern.
type Template struct {
	Name     string
	Sequence []string
}

// Assessment is the result of scoring one action sequence.
type Assessment struct {
	// Score is the best normalized overlap across all templates, in [0, 1].
	Score float64

	// Template is the name of the best-matching template, empty if the
	// registry is empty.
	Template string

	// Blocked reports whether Score reached the block threshold.
	Blocked bool
}

// Shield scores action sequences against registered risk templates. Safe for
// concurrent use: assessments take a read lock so the hot path in the heavy
// tier never blocks on other readers.
type Shield struct {
	cfg Config

	mu        sync.RWMutex
	templates []Template
}

// New returns a shield with no templates registered. An empty registry
// blocks nothing.
func New(cfg Config) *Shield {
	return &Shield{cfg: cfg}
}

// Register adds a risk template. A template with an empty sequence is
// rejected since it would match everything at score 1.
func (s *Shield) Register(t Template) error {
	if len(t.Sequence) == 0 {
		return fmt.Errorf("shield: template %q has empty sequence", t.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = append(s.templates, t)
	return nil
}

// Remove deletes all templates with the given name and reports whether any
// were removed.
func (s *Shield) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.templates[:0]
	removed := false
	for _, t := range s.templates {
		if t.Name == name {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	s.templates = kept
	return removed
}

// Templates returns a copy of the registered templates.
func (s *Shield) Templates() []Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Template, len(s.templates))
	copy(out, s.templates)
	return out
}

// Assess scores the sequence against every registered template and returns
// the worst case. The score per template is LCS length divided by template
// length, so a sequence that contains a full template in order scores 1.0
// regardless of interleaved noise actions.
func (s *Shield) Assess(seq []string) Assessment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best Assessment
	for _, t := range s.templates {
		score := float64(lcs(seq, t.Sequence)) / float64(len(t.Sequence))
		if score > best.Score || best.Template == "" {
			best.Score = score
			best.Template = t.Name
		}
	}
	best.Blocked = best.Template != "" && best.Score >= s.cfg.BlockThreshold
	return best
}

// lcs returns the longest common subsequence length using the standard
// two-row dynamic program.
func lcs(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
