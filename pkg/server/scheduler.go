package server

import "time"

// Scheduler converts elapsed wall-clock time into whole simulation ticks.
//
// It is a fixed-timestep accumulator: elapsed time is added, every full tick
// interval is consumed, and the remainder carries into the next call, so the
// tick rate never drifts regardless of how often Advance is called.
//
// The accumulator counts in nanoseconds multiplied by the tick rate: one tick
// is exactly one second of accumulated units, which keeps rates that do not
// divide a second (60, 144) exact.
type Scheduler struct {
	rate       time.Duration
	acc        time.Duration
	maxCatchUp int
}

// NewScheduler creates a scheduler for tickRate ticks per second. maxCatchUp
// caps the ticks returned by one Advance; 0 means unlimited.
func NewScheduler(tickRate, maxCatchUp int) *Scheduler {
	if tickRate <= 0 {
		panic("tick rate must be positive")
	}
	return &Scheduler{
		rate:       time.Duration(tickRate),
		maxCatchUp: maxCatchUp,
	}
}

// Interval returns the duration of one tick, rounded down to the nanosecond.
func (s *Scheduler) Interval() time.Duration {
	return time.Second / s.rate
}

// Advance adds elapsed and returns how many ticks are due. When more than the
// catch-up cap are due, the cap is returned and the excess is discarded and
// reported as skipped. Negative elapsed values are ignored.
func (s *Scheduler) Advance(elapsed time.Duration) (ticks, skipped int) {
	if elapsed > 0 {
		s.acc += elapsed * s.rate
	}

	due := s.acc / time.Second
	s.acc -= due * time.Second
	ticks = int(due)

	if s.maxCatchUp > 0 && ticks > s.maxCatchUp {
		skipped = ticks - s.maxCatchUp
		ticks = s.maxCatchUp
	}
	return ticks, skipped
}

// Pending returns the accumulated time not yet consumed by a tick.
func (s *Scheduler) Pending() time.Duration {
	return s.acc / s.rate
}
