package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnLimiter(t *testing.T) {
	l := NewTurnLimiter(2)

	require.NoError(t, l.Increment())
	require.NoError(t, l.Increment())
	assert.True(t, l.Exhausted())

	err := l.Increment()
	require.ErrorIs(t, err, ErrTurnLimitExceeded)
	assert.Equal(t, 2, l.Count(), "a rejected turn is not counted")
	assert.Equal(t, 0, l.Remaining())
}

func TestTurnLimiter_DefaultCeiling(t *testing.T) {
	l := NewTurnLimiter(0)
	assert.Equal(t, DefaultMaxTurns, l.Max())
	assert.Equal(t, DefaultMaxTurns, l.Remaining())
}
