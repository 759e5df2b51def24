package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealNowAdvances(t *testing.T) {
	var r Real
	first := r.Now()
	time.Sleep(time.Millisecond)
	second := r.Now()
	assert.True(t, second.After(first) || second.Equal(first))
}

func TestMockSetAndAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMock(start)
	assert.Equal(t, start, m.Now())

	m.Advance(24 * time.Hour)
	assert.Equal(t, start.Add(24*time.Hour), m.Now())

	later := start.Add(7 * 24 * time.Hour)
	m.Set(later)
	assert.Equal(t, later, m.Now())
}
