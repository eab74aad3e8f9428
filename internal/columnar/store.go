package columnar

import (
	"fmt"

	"github.com/nvandessel/swarmlod/internal/agent"
)

// Location identifies an agent's current row: which tier partition it lives
// in and at which row index. Row indices are unstable across removals; the
// store's index is the single source of truth.
type Location struct {
	Tier agent.Tier
	Row  int
}

// Store owns the four tier partitions and the ID index mapping every live
// agent to its current location. All mutations go through the store so the
// index never drifts from the columns. Not safe for concurrent mutation; the
// orchestrator serializes structural changes between batch passes.
type Store struct {
	Dormant    DormantPartition
	Simplified MotionPartition
	Full       CognitivePartition
	Heavy      CognitivePartition

	index map[agent.ID]Location
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{index: make(map[agent.ID]Location)}
}

// AddDormant inserts a new agent into the dormant partition. Inserting an ID
// that is already live in any tier fails with DuplicateIDError.
func (s *Store) AddDormant(seed agent.Seed) error {
	if _, ok := s.index[seed.ID]; ok {
		return &agent.DuplicateIDError{ID: seed.ID}
	}
	row := s.Dormant.append(DormantRow{ID: seed.ID, Predicted: seed.PredictedState, Wake: seed.WakeMask})
	s.index[seed.ID] = Location{Tier: agent.TierDormant, Row: row}
	return nil
}

// Len returns the number of rows in the given tier.
func (s *Store) Len(tier agent.Tier) int {
	switch tier {
	case agent.TierDormant:
		return s.Dormant.Len()
	case agent.TierSimplified:
		return s.Simplified.Len()
	case agent.TierFull:
		return s.Full.Len()
	case agent.TierHeavy:
		return s.Heavy.Len()
	}
	return 0
}

// Total returns the number of live agents across all tiers.
func (s *Store) Total() int { return len(s.index) }

// Counts returns per-tier row counts indexed by tier.
func (s *Store) Counts() [agent.TierCount]int {
	return [agent.TierCount]int{
		s.Dormant.Len(),
		s.Simplified.Len(),
		s.Full.Len(),
		s.Heavy.Len(),
	}
}

// Lookup returns the agent's current location.
func (s *Store) Lookup(id agent.ID) (Location, bool) {
	loc, ok := s.index[id]
	return loc, ok
}

// TakeDormant removes and returns the dormant row at index i, fixing the
// index for the row swapped into its place.
func (s *Store) TakeDormant(i int) DormantRow {
	r, moved := s.Dormant.take(i)
	delete(s.index, r.ID)
	if moved != r.ID {
		s.index[moved] = Location{Tier: agent.TierDormant, Row: i}
	}
	return r
}

// PutDormant appends a row to the dormant partition and records its location.
func (s *Store) PutDormant(r DormantRow) {
	row := s.Dormant.append(r)
	s.index[r.ID] = Location{Tier: agent.TierDormant, Row: row}
}

// TakeSimplified removes and returns the simplified-tier row at index i.
func (s *Store) TakeSimplified(i int) MotionRow {
	r, moved := s.Simplified.take(i)
	delete(s.index, r.ID)
	if moved != r.ID {
		s.index[moved] = Location{Tier: agent.TierSimplified, Row: i}
	}
	return r
}

// PutSimplified appends a row to the simplified partition.
func (s *Store) PutSimplified(r MotionRow) {
	row := s.Simplified.append(r)
	s.index[r.ID] = Location{Tier: agent.TierSimplified, Row: row}
}

// TakeCognitive removes and returns the row at index i of the full or heavy
// partition.
func (s *Store) TakeCognitive(tier agent.Tier, i int) CognitiveRow {
	p := s.cognitive(tier)
	r, moved := p.takeCognitive(i)
	delete(s.index, r.ID)
	if moved != r.ID {
		s.index[moved] = Location{Tier: tier, Row: i}
	}
	return r
}

// PutCognitive appends a row to the full or heavy partition.
func (s *Store) PutCognitive(tier agent.Tier, r CognitiveRow) {
	p := s.cognitive(tier)
	row := p.appendCognitive(r)
	s.index[r.ID] = Location{Tier: tier, Row: row}
}

// Row returns a tier-appropriate copy of the agent's current row, widened to
// CognitiveRow. Fields a lower tier does not carry are zero.
func (s *Store) Row(id agent.ID) (CognitiveRow, bool) {
	loc, ok := s.index[id]
	if !ok {
		return CognitiveRow{}, false
	}
	switch loc.Tier {
	case agent.TierDormant:
		return CognitiveRow{MotionRow: MotionRow{DormantRow: s.Dormant.row(loc.Row)}}, true
	case agent.TierSimplified:
		return CognitiveRow{MotionRow: s.Simplified.row(loc.Row)}, true
	default:
		return s.cognitive(loc.Tier).cognitiveRow(loc.Row), true
	}
}

func (s *Store) cognitive(tier agent.Tier) *CognitivePartition {
	if tier == agent.TierHeavy {
		return &s.Heavy
	}
	return &s.Full
}

// Verify checks the structural invariant between columns and index: every
// row's ID maps back to its own location, and the index holds no stale
// entries. Returns ErrCorruptPartition wrapped with the first mismatch found.
func (s *Store) Verify() error {
	total := 0
	check := func(tier agent.Tier, ids []agent.ID) error {
		for i, id := range ids {
			loc, ok := s.index[id]
			if !ok {
				return fmt.Errorf("%w: %s row %d id %d missing from index", agent.ErrCorruptPartition, tier, i, id)
			}
			if loc.Tier != tier || loc.Row != i {
				return fmt.Errorf("%w: id %d at %s row %d indexed as %s row %d",
					agent.ErrCorruptPartition, id, tier, i, loc.Tier, loc.Row)
			}
		}
		total += len(ids)
		return nil
	}
	if err := check(agent.TierDormant, s.Dormant.IDs); err != nil {
		return err
	}
	if err := check(agent.TierSimplified, s.Simplified.IDs); err != nil {
		return err
	}
	if err := check(agent.TierFull, s.Full.IDs); err != nil {
		return err
	}
	if err := check(agent.TierHeavy, s.Heavy.IDs); err != nil {
		return err
	}
	if total != len(s.index) {
		return fmt.Errorf("%w: index holds %d entries for %d rows", agent.ErrCorruptPartition, len(s.index), total)
	}
	return nil
}
