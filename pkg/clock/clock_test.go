package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockRealTime(t *testing.T) {
	c := New()
	before := time.Now().UnixMilli()
	now := c.Now()
	after := time.Now().UnixMilli()

	assert.GreaterOrEqual(t, now, before)
	assert.LessOrEqual(t, now, after)
}

func TestClockFixed(t *testing.T) {
	c := New()
	c.Set(1_000_000)

	assert.Equal(t, int64(1_000_000), c.Now())
	assert.Equal(t, int64(1_000_000), c.Now(), "fixed time does not drift")

	c.Advance(60_000)
	assert.Equal(t, int64(1_060_000), c.Now())

	c.Clear()
	assert.GreaterOrEqual(t, c.Now(), time.Now().UnixMilli()-1000)
}

func TestClockAdvanceWithoutSet(t *testing.T) {
	c := New()
	c.Advance(5_000)

	first := c.Now()
	assert.Equal(t, first, c.Now(), "advancing an unfixed clock pins it")
	assert.Greater(t, first, time.Now().UnixMilli())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "Never", Format(0))

	out := Format(1_739_114_787_000)
	assert.Contains(t, out, "(1739114787000)")
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} `, out)
}
