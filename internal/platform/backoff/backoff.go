// Package backoff implements the bounded exponential retry delay used
// by the polling client: start at a floor, double after every
// consecutive failure, cap, and reset to the floor on success.
package backoff

import "time"

const (
	// DefaultFloor is the delay after the first failure.
	DefaultFloor = 1 * time.Second

	// DefaultCap bounds the delay regardless of failure count.
	DefaultCap = 30 * time.Second
)

// State tracks the current retry delay for one column loop. It is not
// safe for concurrent use; each loop owns its own State.
type State struct {
	floor   time.Duration
	cap     time.Duration
	current time.Duration
}

// New creates a State with the default [1s, 30s] bounds.
func New() *State {
	return NewWithBounds(DefaultFloor, DefaultCap)
}

// NewWithBounds creates a State with explicit bounds. A cap below the
// floor is raised to the floor.
func NewWithBounds(floor, cap time.Duration) *State {
	if cap < floor {
		cap = floor
	}
	return &State{floor: floor, cap: cap, current: floor}
}

// Next returns the delay to wait before the next attempt and doubles
// the stored delay, capped.
func (s *State) Next() time.Duration {
	d := s.current
	s.current *= 2
	if s.current > s.cap {
		s.current = s.cap
	}
	return d
}

// Reset returns the delay to the floor. Called after any success.
func (s *State) Reset() {
	s.current = s.floor
}

// Current reports the delay the next failure would wait, without
// advancing the state.
func (s *State) Current() time.Duration {
	return s.current
}
