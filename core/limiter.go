package core

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultMaxTurns is the turn ceiling applied when none is configured.
const DefaultMaxTurns = 10

// ErrTurnLimitExceeded is returned by TurnLimiter.Increment once the ceiling
// has been passed.
var ErrTurnLimitExceeded = errors.New("turn limit exceeded")

// TurnLimiter enforces a maximum number of agent turns per run.
type TurnLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewTurnLimiter creates a limiter allowing max turns. A non-positive max
// falls back to DefaultMaxTurns: every run is bounded.
func NewTurnLimiter(max int) *TurnLimiter {
	if max <= 0 {
		max = DefaultMaxTurns
	}

	return &TurnLimiter{max: max}
}

// Increment claims the next turn and returns an error if the limit is exceeded.
func (tl *TurnLimiter) Increment() error {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	if tl.count >= tl.max {
		return fmt.Errorf("%w: %d", ErrTurnLimitExceeded, tl.max)
	}

	tl.count++

	return nil
}

// Count returns the number of turns taken.
func (tl *TurnLimiter) Count() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	return tl.count
}

// Max returns the configured ceiling.
func (tl *TurnLimiter) Max() int { return tl.max }

// Remaining returns how many turns are left before hitting the limit.
func (tl *TurnLimiter) Remaining() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	return tl.max - tl.count
}

// Exhausted reports whether no further turn may be taken.
func (tl *TurnLimiter) Exhausted() bool { return tl.Remaining() <= 0 }
