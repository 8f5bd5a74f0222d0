package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_MonotonicAndDeterministic(t *testing.T) {
	at := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return at }

	a, b := NewGenerator(42, clock), NewGenerator(42, clock)
	var prev string
	for i := 0; i < 50; i++ {
		x, y := a.Next(), b.Next()
		assert.Equal(t, x, y)
		assert.Greater(t, x, prev)
		prev = x
	}

	ts, err := Time(prev)
	require.NoError(t, err)
	assert.Equal(t, at.Truncate(time.Millisecond), ts)
}

func TestNew(t *testing.T) {
	assert.Len(t, New(), 26)
	_, err := Time("not-a-ulid")
	assert.Error(t, err)
}
