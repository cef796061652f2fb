package inbox

// Arena carves the inboxes of a contiguous block of nodes out of a single
// backing array, so a worker's whole partition costs one allocation.
type Arena struct {
	backing []Signal
	boxes   []Inbox
}

// NewArena allocates count inboxes of the given capacity.
func NewArena(count, capacity int) *Arena {
	a := &Arena{
		backing: make([]Signal, count*capacity),
		boxes:   make([]Inbox, count),
	}
	for i := range a.boxes {
		off := i * capacity
		a.boxes[i].buf = a.backing[off : off+capacity : off+capacity]
	}
	return a
}

// Len returns the number of inboxes in the arena.
func (a *Arena) Len() int { return len(a.boxes) }

// Inbox returns the i-th inbox of the arena.
func (a *Arena) Inbox(i int) *Inbox { return &a.boxes[i] }
