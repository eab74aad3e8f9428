package adaptation

import (
	"testing"

	"github.com/nvandessel/swarmlod/internal/agent"
)

func TestNewStateIsNeutral(t *testing.T) {
	s := NewState(DefaultConfig())
	if s.ShareProb != 0.5 {
		t.Errorf("ShareProb = %v, want 0.5", s.ShareProb)
	}
	if Classify(&s, DefaultConfig()) != agent.RoleNeutral {
		t.Errorf("fresh state should classify neutral")
	}
}

// Consistent reward must strictly increase the weight toward but never past
// the upper bound; consistent punishment mirrors this at the lower bound.
func TestRewardPunishmentDivergence(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("reward", func(t *testing.T) {
		s := NewState(cfg)
		prev := s.Eagerness
		for i := 0; i < 500; i++ {
			Update(&s, 1.0, cfg)
			if s.Eagerness > cfg.UpperBound {
				t.Fatalf("round %d: weight %v exceeded upper bound %v", i, s.Eagerness, cfg.UpperBound)
			}
			if s.Eagerness < prev {
				t.Fatalf("round %d: weight decreased under consistent reward", i)
			}
			prev = s.Eagerness
		}
		if s.ShareProb <= 0.5 {
			t.Errorf("ShareProb = %v, want > 0.5 after sustained reward", s.ShareProb)
		}
	})

	t.Run("punishment", func(t *testing.T) {
		s := NewState(cfg)
		prev := s.Eagerness
		for i := 0; i < 500; i++ {
			Update(&s, -1.0, cfg)
			if s.Eagerness < cfg.LowerBound {
				t.Fatalf("round %d: weight %v fell below lower bound %v", i, s.Eagerness, cfg.LowerBound)
			}
			if s.Eagerness > prev {
				t.Fatalf("round %d: weight increased under consistent punishment", i)
			}
			prev = s.Eagerness
		}
		if s.ShareProb >= 0.5 {
			t.Errorf("ShareProb = %v, want < 0.5 after sustained punishment", s.ShareProb)
		}
	})
}

func TestUpdateRespectsEligibility(t *testing.T) {
	cfg := DefaultConfig()
	full := NewState(cfg)
	half := NewState(cfg)
	half.Eligibility = 0.5

	Update(&full, 1.0, cfg)
	Update(&half, 1.0, cfg)

	if half.Eagerness >= full.Eagerness {
		t.Errorf("half eligibility moved %v, full moved %v; expected less", half.Eagerness, full.Eagerness)
	}
}

func TestClassifyBands(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name      string
		shareProb float64
		want      agent.Role
	}{
		{"broker above band", 0.9, agent.RoleBroker},
		{"broker at band", 0.65, agent.RoleBroker},
		{"neutral mid band", 0.5, agent.RoleNeutral},
		{"hoarder at band", 0.35, agent.RoleHoarder},
		{"hoarder below band", 0.1, agent.RoleHoarder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{ShareProb: tt.shareProb}
			if got := Classify(&s, cfg); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.shareProb, got, tt.want)
			}
		})
	}
}

func TestShouldBroadcastSurpriseDilation(t *testing.T) {
	cfg := DefaultConfig()

	// A committed hoarder: share probability near zero.
	s := NewState(cfg)
	for i := 0; i < 500; i++ {
		Update(&s, -1.0, cfg)
	}
	if s.ShareProb > 0.05 {
		t.Fatalf("setup: ShareProb = %v, want near zero", s.ShareProb)
	}

	// Without surprise, a mid draw does not broadcast.
	if ShouldBroadcast(&s, 0.5, 0, cfg) {
		t.Error("hoarder broadcast at zero surprise with draw 0.5")
	}

	// Maximum surprise dilates the probability enough to broadcast.
	if !ShouldBroadcast(&s, 0.5, 2.0, cfg) {
		t.Error("high surprise failed to dilate broadcast probability")
	}
}

// Updates to distinct states must not interfere: applying the same rewards
// in any interleaving yields identical results per agent.
func TestUpdatesCommuteAcrossAgents(t *testing.T) {
	cfg := DefaultConfig()

	a1, b1 := NewState(cfg), NewState(cfg)
	Update(&a1, 1.0, cfg)
	Update(&b1, -1.0, cfg)

	a2, b2 := NewState(cfg), NewState(cfg)
	Update(&b2, -1.0, cfg)
	Update(&a2, 1.0, cfg)

	if a1 != a2 || b1 != b2 {
		t.Error("per-agent updates depended on cross-agent ordering")
	}
}
