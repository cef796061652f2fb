// Package inbox implements the bounded per-node queue of pending signals.
//
// Inboxes never grow: once a node holds Cap signals, further deliveries in
// the same round are discarded and counted as dropped. Overflow is a normal
// condition under load, not an error.
package inbox

// Signal is an in-flight (type, magnitude) pair addressed to a node id.
type Signal struct {
	Type      int
	Magnitude float64
	Target    int
}

// Inbox is a fixed-capacity signal queue. Only the worker owning the node
// may touch it.
type Inbox struct {
	buf     []Signal
	n       int
	dropped int
}

// New allocates a standalone inbox with the given capacity.
func New(capacity int) *Inbox {
	return &Inbox{buf: make([]Signal, capacity)}
}

// Enqueue appends sig if there is room. Otherwise the signal is discarded,
// the drop counter is incremented and false is returned.
func (q *Inbox) Enqueue(sig Signal) bool {
	if q.n >= len(q.buf) {
		q.dropped++
		return false
	}
	q.buf[q.n] = sig
	q.n++
	return true
}

// Drain returns a copy of the pending signals in arrival order and empties the inbox.
func (q *Inbox) Drain() []Signal {
	return q.DrainInto(make([]Signal, 0, q.n))
}

// DrainInto appends the pending signals to dst, empties the inbox and returns
// the extended slice. Signals enqueued while the caller walks the result land
// in the now-empty inbox and are not part of it.
func (q *Inbox) DrainInto(dst []Signal) []Signal {
	dst = append(dst, q.buf[:q.n]...)
	q.n = 0
	return dst
}

// Len returns the current occupancy.
func (q *Inbox) Len() int { return q.n }

// Cap returns the fixed capacity.
func (q *Inbox) Cap() int { return len(q.buf) }

// Dropped returns how many signals were discarded because the inbox was full.
func (q *Inbox) Dropped() int { return q.dropped }
