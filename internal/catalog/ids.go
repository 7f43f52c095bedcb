package catalog

import "sync/atomic"

// IDAllocator issues catalog-wide unique song ids.
// Ids start at 1 and strictly increase; issuing one is a single atomic add.
type IDAllocator struct {
	last atomic.Uint64 // most recently issued id, 0 before the first call
}

// NewIDAllocator returns an allocator whose first id is 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Next returns a previously unused id.
func (a *IDAllocator) Next() uint64 {
	return a.last.Add(1)
}

// Peek returns the id the next call to Next would return, without consuming it.
func (a *IDAllocator) Peek() uint64 {
	return a.last.Load() + 1
}

// Seed guarantees that Next never returns an id below next.
// It only moves the allocator forward.
func (a *IDAllocator) Seed(next uint64) {
	if next == 0 {
		return
	}
	for {
		cur := a.last.Load()
		if next-1 <= cur {
			return
		}
		if a.last.CompareAndSwap(cur, next-1) {
			return
		}
	}
}
