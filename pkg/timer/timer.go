package timer

import (
	"log/slog"
	"time"
)

// ---------------------------------------------------------
// Mode 1: Function Level (The "Defer" pattern)
// ---------------------------------------------------------

// Track returns a function that, when executed, logs the duration at debug level.
// Usage: defer timer.Track("FunctionName")()
func Track(name string) func() {
	start := time.Now()
	return func() {
		slog.Debug("timing", "op", name, "duration", time.Since(start))
	}
}

// ---------------------------------------------------------
// Mode 2: Block Level (The "Stopwatch" pattern)
// ---------------------------------------------------------

// Stopwatch is useful for measuring multiple steps within one function.
type Stopwatch struct {
	name  string
	start time.Time
	last  time.Time
}

// NewStopwatch starts the clock.
func NewStopwatch(name string) *Stopwatch {
	now := time.Now()
	return &Stopwatch{name: name, start: now, last: now}
}

// Lap logs the time taken since the last Lap call.
func (s *Stopwatch) Lap(step string) {
	now := time.Now()
	elapsed := now.Sub(s.last)
	s.last = now
	slog.Debug("timing", "op", s.name, "step", step, "duration", elapsed, "total", now.Sub(s.start))
}

// Total logs the total time since the stopwatch started and returns it.
func (s *Stopwatch) Total() time.Duration {
	total := time.Since(s.start)
	slog.Debug("timing", "op", s.name, "total", total)
	return total
}
