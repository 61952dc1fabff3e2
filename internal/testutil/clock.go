package testutil

import "sync"

// SimTime is a manually advanced monotonic time source for timeout
// polling. The engine never reads wall time; timeout promises settle
// only when a caller polls them with a reading, and SimTime is the
// reading used by the harness and the sim command.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex, though scenario execution is single-threaded.
type SimTime struct {
	mu  sync.Mutex
	now int64
}

// NewSimTime creates a time source starting at 0.
func NewSimTime() *SimTime {
	return &SimTime{}
}

// NewSimTimeAt creates a time source starting at now.
func NewSimTimeAt(now int64) *SimTime {
	return &SimTime{now: now}
}

// Now returns the current reading without advancing.
func (t *SimTime) Now() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

// Advance moves the reading forward by delta and returns the new
// value. Negative deltas are ignored; the reading never decreases.
func (t *SimTime) Advance(delta int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if delta > 0 {
		t.now += delta
	}
	return t.now
}

// Set jumps the reading to now if it is ahead of the current value.
func (t *SimTime) Set(now int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if now > t.now {
		t.now = now
	}
	return t.now
}
