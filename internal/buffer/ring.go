package buffer

import "sync"

// Ring is a bounded FIFO. Pushing into a full ring evicts the oldest item
// in the same critical section, so readers never see more than Cap items.
// All reads return copies.
type Ring[T any] struct {
	mu    sync.RWMutex
	items []T
	cap   int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		items: make([]T, 0, capacity),
		cap:   capacity,
	}
}

func (r *Ring[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.items) == r.cap {
		copy(r.items, r.items[1:])
		r.items = r.items[:r.cap-1]
	}
	r.items = append(r.items, item)
}

// Replace swaps the contents for the last Cap items of src.
func (r *Ring[T]) Replace(src []T) {
	if len(src) > r.cap {
		src = src[len(src)-r.cap:]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = r.items[:0]
	r.items = append(r.items, src...)
}

func (r *Ring[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Last returns up to n of the newest items, oldest first.
func (r *Ring[T]) Last(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > len(r.items) {
		n = len(r.items)
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	copy(out, r.items[len(r.items)-n:])
	return out
}

func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func (r *Ring[T]) Cap() int {
	return r.cap
}

func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = r.items[:0]
}
