package columnar

import (
	"errors"
	"testing"

	"github.com/nvandessel/swarmlod/internal/agent"
	"github.com/nvandessel/swarmlod/internal/memory"
)

func seed(id agent.ID) agent.Seed {
	return agent.Seed{ID: id, PredictedState: float64(id) / 10, WakeMask: agent.TriggerMask(1) << (id % 8)}
}

func TestAddDormant(t *testing.T) {
	s := NewStore()
	for id := agent.ID(0); id < 5; id++ {
		if err := s.AddDormant(seed(id)); err != nil {
			t.Fatalf("AddDormant(%d) = %v", id, err)
		}
	}

	if got := s.Len(agent.TierDormant); got != 5 {
		t.Errorf("Len(dormant) = %d, want 5", got)
	}
	if got := s.Total(); got != 5 {
		t.Errorf("Total = %d, want 5", got)
	}

	loc, ok := s.Lookup(3)
	if !ok || loc.Tier != agent.TierDormant {
		t.Errorf("Lookup(3) = %+v, %v", loc, ok)
	}
	if got := s.Dormant.Predicted[loc.Row]; got != 0.3 {
		t.Errorf("Predicted = %v, want 0.3", got)
	}
	if err := s.Verify(); err != nil {
		t.Errorf("Verify() = %v", err)
	}
}

func TestAddDormantRejectsDuplicates(t *testing.T) {
	s := NewStore()
	if err := s.AddDormant(seed(7)); err != nil {
		t.Fatal(err)
	}

	err := s.AddDormant(seed(7))
	var dup *agent.DuplicateIDError
	if !errors.As(err, &dup) {
		t.Fatalf("duplicate insert error = %v, want DuplicateIDError", err)
	}
	if dup.ID != 7 {
		t.Errorf("dup.ID = %d, want 7", dup.ID)
	}
	if s.Total() != 1 {
		t.Errorf("Total = %d after rejected insert, want 1", s.Total())
	}
}

// Duplicate detection must span tiers, not just the dormant partition.
func TestDuplicateCheckSpansTiers(t *testing.T) {
	s := NewStore()
	if err := s.AddDormant(seed(1)); err != nil {
		t.Fatal(err)
	}
	r := s.TakeDormant(0)
	s.PutSimplified(MotionRow{DormantRow: r})

	if err := s.AddDormant(seed(1)); err == nil {
		t.Error("re-inserting an ID live in another tier should fail")
	}
}

func TestSwapRemoveFixesIndex(t *testing.T) {
	s := NewStore()
	for id := agent.ID(0); id < 4; id++ {
		if err := s.AddDormant(seed(id)); err != nil {
			t.Fatal(err)
		}
	}

	// Remove row 1 ("1"); the last row ("3") swaps into its place.
	r := s.TakeDormant(1)
	if r.ID != 1 {
		t.Fatalf("TakeDormant(1).ID = %d, want 1", r.ID)
	}
	loc, ok := s.Lookup(3)
	if !ok || loc.Row != 1 {
		t.Errorf("Lookup(3) = %+v, %v; want row 1", loc, ok)
	}
	if _, ok := s.Lookup(1); ok {
		t.Error("removed ID still in index")
	}
	if err := s.Verify(); err != nil {
		t.Errorf("Verify() = %v", err)
	}
}

func TestRelocationCarriesState(t *testing.T) {
	s := NewStore()
	if err := s.AddDormant(seed(9)); err != nil {
		t.Fatal(err)
	}

	// Dormant -> Simplified.
	dr := s.TakeDormant(0)
	mr := MotionRow{DormantRow: dr, Health: 1, Activity: 0.8}
	s.PutSimplified(mr)

	// Simplified -> Full: memory buffer allocated on first promotion.
	mr = s.TakeSimplified(0)
	cr := CognitiveRow{MotionRow: mr, Memory: memory.NewBuffer(memory.DefaultConfig())}
	cr.Memory.Record("promoted", 1, []float32{1, 0}, []float32{0, 1})
	s.PutCognitive(agent.TierFull, cr)

	// Full -> Heavy: the buffer handle moves, not a copy.
	cr = s.TakeCognitive(agent.TierFull, 0)
	s.PutCognitive(agent.TierHeavy, cr)

	got, ok := s.Row(9)
	if !ok {
		t.Fatal("Row(9) not found")
	}
	if got.Wake != dr.Wake || got.Predicted != dr.Predicted {
		t.Error("dormant fields lost across relocation")
	}
	if got.Activity != 0.8 {
		t.Errorf("Activity = %v, want 0.8", got.Activity)
	}
	if got.Memory == nil || got.Memory.Len() != 1 {
		t.Error("memory buffer did not travel with the row")
	}

	loc, _ := s.Lookup(9)
	if loc.Tier != agent.TierHeavy {
		t.Errorf("tier = %s, want heavy", loc.Tier)
	}
	if err := s.Verify(); err != nil {
		t.Errorf("Verify() = %v", err)
	}
}

func TestVerifyDetectsDrift(t *testing.T) {
	s := NewStore()
	if err := s.AddDormant(seed(1)); err != nil {
		t.Fatal(err)
	}
	if err := s.AddDormant(seed(2)); err != nil {
		t.Fatal(err)
	}

	// Corrupt a column behind the store's back.
	s.Dormant.IDs[0] = 99

	err := s.Verify()
	if !errors.Is(err, agent.ErrCorruptPartition) {
		t.Errorf("Verify() = %v, want ErrCorruptPartition", err)
	}
}

func TestCountsAndRowWidening(t *testing.T) {
	s := NewStore()
	for id := agent.ID(0); id < 3; id++ {
		if err := s.AddDormant(seed(id)); err != nil {
			t.Fatal(err)
		}
	}
	s.PutSimplified(MotionRow{DormantRow: s.TakeDormant(0)})

	counts := s.Counts()
	if counts[agent.TierDormant] != 2 || counts[agent.TierSimplified] != 1 {
		t.Errorf("Counts = %v, want [2 1 0 0]", counts)
	}

	// A dormant agent widened to CognitiveRow has zero motion state.
	got, ok := s.Row(1)
	if !ok {
		t.Fatal("Row(1) not found")
	}
	if got.Health != 0 || got.Memory != nil {
		t.Error("dormant row should widen with zero motion and no memory")
	}
}
