package shield

import (
	"math"
	"testing"
)

func newShield(t *testing.T, templates ...Template) *Shield {
	t.Helper()
	s := New(DefaultConfig())
	for _, tpl := range templates {
		if err := s.Register(tpl); err != nil {
			t.Fatalf("Register(%q) = %v", tpl.Name, err)
		}
	}
	return s
}

func TestAssess(t *testing.T) {
	exfil := Template{Name: "exfiltration", Sequence: []string{"Auth", "Delay", "SelectUser", "Drop"}}
	s := newShield(t, exfil)

	tests := []struct {
		name      string
		seq       []string
		wantScore float64
		blocked   bool
	}{
		{
			name:      "padded full match",
			seq:       []string{"Auth", "Delay", "SelectUser", "Ping", "Drop"},
			wantScore: 1.0,
			blocked:   true,
		},
		{
			name:      "exact match",
			seq:       []string{"Auth", "Delay", "SelectUser", "Drop"},
			wantScore: 1.0,
			blocked:   true,
		},
		{
			name:      "benign sequence",
			seq:       []string{"Login", "Logout"},
			wantScore: 0,
			blocked:   false,
		},
		{
			name:      "partial overlap below threshold",
			seq:       []string{"Auth", "SelectUser"},
			wantScore: 0.5,
			blocked:   false,
		},
		{
			name:      "three of four at threshold",
			seq:       []string{"Auth", "Delay", "Drop"},
			wantScore: 0.75,
			blocked:   false,
		},
		{
			name:      "out of order pieces",
			seq:       []string{"Drop", "SelectUser", "Delay", "Auth"},
			wantScore: 0.25,
			blocked:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Assess(tt.seq)
			if math.Abs(got.Score-tt.wantScore) > 1e-9 {
				t.Errorf("Score = %v, want %v", got.Score, tt.wantScore)
			}
			if got.Blocked != tt.blocked {
				t.Errorf("Blocked = %v, want %v", got.Blocked, tt.blocked)
			}
		})
	}
}

func TestAssessPicksWorstTemplate(t *testing.T) {
	s := newShield(t,
		Template{Name: "mild", Sequence: []string{"A", "B", "C", "D"}},
		Template{Name: "severe", Sequence: []string{"X", "Y"}},
	)

	got := s.Assess([]string{"A", "X", "Y"})
	if got.Template != "severe" {
		t.Errorf("Template = %q, want severe", got.Template)
	}
	if !got.Blocked {
		t.Error("full match on severe template should block")
	}
}

func TestEmptyRegistryBlocksNothing(t *testing.T) {
	s := New(DefaultConfig())
	got := s.Assess([]string{"Drop", "Drop", "Drop"})
	if got.Blocked || got.Score != 0 || got.Template != "" {
		t.Errorf("empty registry returned %+v", got)
	}
}

func TestRegisterRejectsEmptySequence(t *testing.T) {
	s := New(DefaultConfig())
	if err := s.Register(Template{Name: "empty"}); err == nil {
		t.Error("empty template should be rejected")
	}
}

func TestRemove(t *testing.T) {
	s := newShield(t, Template{Name: "tmp", Sequence: []string{"A", "B"}})

	if !s.Remove("tmp") {
		t.Error("Remove(tmp) = false, want true")
	}
	if s.Remove("tmp") {
		t.Error("second Remove(tmp) = true, want false")
	}
	if got := s.Assess([]string{"A", "B"}); got.Blocked {
		t.Error("removed template still blocks")
	}
}

func TestLCS(t *testing.T) {
	tests := []struct {
		a, b []string
		want int
	}{
		{nil, nil, 0},
		{[]string{"A"}, nil, 0},
		{[]string{"A", "B", "C"}, []string{"A", "B", "C"}, 3},
		{[]string{"A", "X", "B", "Y", "C"}, []string{"A", "B", "C"}, 3},
		{[]string{"C", "B", "A"}, []string{"A", "B", "C"}, 1},
		{[]string{"A", "B", "A", "B"}, []string{"B", "A", "B", "A"}, 3},
	}

	for _, tt := range tests {
		if got := lcs(tt.a, tt.b); got != tt.want {
			t.Errorf("lcs(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
