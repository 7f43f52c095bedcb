package catalog

import "sync/atomic"

// VisitCounter is a process-wide hit counter.
type VisitCounter struct {
	n atomic.Uint64
}

// Increment adds one visit and returns the new total.
func (v *VisitCounter) Increment() uint64 {
	return v.n.Add(1)
}
