package engine

import "sync/atomic"

// Clock is a monotonic logical clock for event ordering.
//
// Every promise creation and status transition is stamped with a
// strictly increasing seq number from this clock. Seq numbers, not
// wall time, are what order events: derived ids, journal rows, and
// restored clocks all agree on the same sequence.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The Environment's run-to-completion design means only one goroutine
// typically calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence
// number. Used when resuming an environment from a journal.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
