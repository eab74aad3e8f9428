package agent

import (
	"errors"
	"fmt"
)

// ErrNoPopulation is returned when Tick is called before any agents were added.
var ErrNoPopulation = errors.New("no agents in population")

// ErrCorruptPartition signals a structural invariant violation inside the
// columnar store (e.g. an agent indexed in two partitions). It is an internal
// bug: the tick must abort rather than continue with corrupted state.
var ErrCorruptPartition = errors.New("corrupt tier partition")

// DuplicateIDError reports an agent insert that collided with an existing ID.
type DuplicateIDError struct {
	ID ID
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate agent id: %d", e.ID)
}

// InvalidStateError reports an operation attempted while the engine is in a
// state that cannot serve it.
type InvalidStateError struct {
	Op     string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state for %s: %s", e.Op, e.Reason)
}

// ConfigError reports an invalid configuration value. Configuration errors
// are fatal at setup and are never silently clamped.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}
