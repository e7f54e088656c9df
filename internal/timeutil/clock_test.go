package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	c.Advance(1500 * time.Millisecond)

	assert.Equal(t, start.Add(1500*time.Millisecond), c.Now())
	assert.Equal(t, 1500*time.Millisecond, c.Since(start))
}

func TestMockClock_Set(t *testing.T) {
	c := NewMockClock(time.Time{})
	target := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

	c.Set(target)

	assert.Equal(t, target, c.Now())
}

func TestRealClock_Monotonic(t *testing.T) {
	var c Clock = RealClock{}
	a := c.Now()
	assert.GreaterOrEqual(t, c.Since(a), time.Duration(0))
}
