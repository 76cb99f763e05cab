package archive

import "sync/atomic"

// clock is a monotonic logical clock used to stamp actions with a
// strictly increasing sequence number as they are enqueued. The seq
// appears in log lines so the total order seen by the consumer can be
// reconstructed from logs.
//
// Thread-safety: safe for concurrent use (atomic operations); actions
// may be enqueued from any goroutine.
type clock struct {
	seq atomic.Int64
}

// next returns the next sequence number and increments the clock.
func (c *clock) next() int64 {
	return c.seq.Add(1)
}

// current returns the current sequence number without incrementing.
func (c *clock) current() int64 {
	return c.seq.Load()
}
