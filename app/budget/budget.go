// Package budget tracks a run's wall-clock allowance.
package budget

import (
	"context"
	"time"
)

// Governor answers whether enough time is left for the next unit of work.
// It holds no state beyond its start instant and is safe for concurrent use.
type Governor struct {
	ceiling time.Duration
	start   time.Time
	now     func() time.Time
}

// New creates a governor for a run that started at start and may last ceiling.
func New(ceiling time.Duration, start time.Time) *Governor {
	return &Governor{ceiling: ceiling, start: start, now: time.Now}
}

// WithClock replaces the wall clock, for tests.
func (g *Governor) WithClock(now func() time.Time) *Governor {
	g.now = now
	return g
}

// Remaining returns the time left, never negative.
func (g *Governor) Remaining() time.Duration {
	left := g.ceiling - g.now().Sub(g.start)
	if left < 0 {
		return 0
	}
	return left
}

// HasTime reports whether strictly more than reserve is left.
func (g *Governor) HasTime(reserve time.Duration) bool {
	return g.Remaining() > reserve
}

// Deadline is the instant at which Remaining reaches zero.
func (g *Governor) Deadline() time.Time {
	return g.start.Add(g.ceiling)
}

// Elapsed returns the time since the run started.
func (g *Governor) Elapsed() time.Duration {
	return g.now().Sub(g.start)
}

// Context derives a context that is cancelled at the deadline.
func (g *Governor) Context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithDeadline(parent, g.Deadline())
}
