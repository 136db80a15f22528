// Package arena provides index-addressed slot storage with a free list.
//
// Index 0 is never handed out, so callers can use it as a "none" handle.
// Freed slots are zeroed and recycled LIFO by later allocations.
package arena

import (
	"errors"
	"fmt"

	"fortio.org/safecast"
)

// ErrFull is returned by Alloc when the arena reached its capacity limit.
var ErrFull = errors.New("arena: capacity exhausted")

// Arena owns slots of T addressed by 1-based uint32 indices. It is not safe
// for concurrent use.
type Arena[T any] struct {
	data  []T
	live  []bool
	free  []uint32
	limit int
	count int
}

// New creates an arena. capHint preallocates storage; limit caps the number
// of simultaneously live slots (0 means unbounded).
func New[T any](capHint, limit int) *Arena[T] {
	if capHint < 0 {
		capHint = 0
	}
	return &Arena[T]{
		data:  make([]T, 0, capHint),
		live:  make([]bool, 0, capHint),
		limit: limit,
	}
}

// Alloc stores value and returns its 1-based index.
func (a *Arena[T]) Alloc(value T) (uint32, error) {
	if a.limit > 0 && a.count >= a.limit {
		return 0, ErrFull
	}
	a.count++
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		a.data[idx-1] = value
		a.live[idx-1] = true
		return idx, nil
	}
	a.data = append(a.data, value)
	a.live = append(a.live, true)
	idx, err := safecast.Conv[uint32](len(a.data))
	if err != nil {
		panic(fmt.Errorf("arena index overflow: %w", err))
	}
	return idx, nil
}

// Get returns the slot at index, or nil for 0, out-of-range and freed slots.
func (a *Arena[T]) Get(index uint32) *T {
	if index == 0 || int(index) > len(a.data) || !a.live[index-1] {
		return nil
	}
	return &a.data[index-1]
}

// Free zeroes the slot and returns it to the free list.
// Freeing a slot twice is an ownership bug and panics.
func (a *Arena[T]) Free(index uint32) {
	if index == 0 || int(index) > len(a.data) || !a.live[index-1] {
		panic(fmt.Sprintf("arena: free of dead slot %d", index))
	}
	var zero T
	a.data[index-1] = zero
	a.live[index-1] = false
	a.free = append(a.free, index)
	a.count--
}

// Live reports the number of allocated slots.
func (a *Arena[T]) Live() int {
	return a.count
}

// Len reports the high-water mark of the index space.
func (a *Arena[T]) Len() uint32 {
	n, err := safecast.Conv[uint32](len(a.data))
	if err != nil {
		panic(fmt.Errorf("arena length overflow: %w", err))
	}
	return n
}

// Each calls fn for every live slot in index order.
func (a *Arena[T]) Each(fn func(index uint32, v *T)) {
	n := a.Len()
	for idx := uint32(1); idx <= n; idx++ {
		if !a.live[idx-1] {
			continue
		}
		fn(idx, &a.data[idx-1])
	}
}
