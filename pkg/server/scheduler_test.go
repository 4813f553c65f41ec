package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_Accumulates(t *testing.T) {
	s := NewScheduler(20, 0)
	assert.Equal(t, 50*time.Millisecond, s.Interval())

	ticks, _ := s.Advance(49 * time.Millisecond)
	assert.Equal(t, 0, ticks)

	ticks, _ = s.Advance(time.Millisecond)
	assert.Equal(t, 1, ticks)

	ticks, _ = s.Advance(125 * time.Millisecond)
	assert.Equal(t, 2, ticks)
	assert.Equal(t, 25*time.Millisecond, s.Pending())
}

func TestScheduler_NoDriftAtUnevenRate(t *testing.T) {
	s := NewScheduler(60, 0)

	total := 0
	for i := 0; i < 10000; i++ {
		ticks, _ := s.Advance(time.Millisecond)
		total += ticks
	}
	assert.Equal(t, 600, total, "10s at 60Hz")
	assert.Equal(t, time.Duration(0), s.Pending())
}

func TestScheduler_IgnoresNegativeElapsed(t *testing.T) {
	s := NewScheduler(20, 0)
	s.Advance(30 * time.Millisecond)

	ticks, _ := s.Advance(-time.Hour)
	assert.Equal(t, 0, ticks)
	assert.Equal(t, 30*time.Millisecond, s.Pending())
}

func TestScheduler_MaxCatchUp(t *testing.T) {
	s := NewScheduler(20, 5)

	ticks, skipped := s.Advance(time.Second + 10*time.Millisecond)
	assert.Equal(t, 5, ticks)
	assert.Equal(t, 15, skipped)
	assert.Equal(t, 10*time.Millisecond, s.Pending(), "fractional remainder is kept")

	ticks, skipped = s.Advance(40 * time.Millisecond)
	assert.Equal(t, 1, ticks)
	assert.Equal(t, 0, skipped)
}

func TestScheduler_PanicsOnZeroRate(t *testing.T) {
	assert.Panics(t, func() { NewScheduler(0, 0) })
}
