package state

import "sync/atomic"

// Clock is the monotonic logical clock stamping applied operations.
//
// Every successful application gets a strictly increasing seq number, so
// the journal replays in a deterministic order with no wall-clock races.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though the executor's single-writer design means only one goroutine
// typically calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used by replay to resume from the last journaled position.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
