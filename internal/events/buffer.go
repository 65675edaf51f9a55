package events

import (
	"sync"
)

// GrowableBuffer is an unbounded FIFO ring that doubles its backing array
// once it is 70% full. Publishers never block on it.
type GrowableBuffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int
	count  int
	closed bool

	pushed  int64
	popped  int64
	resizes int
}

// NewGrowableBuffer creates a buffer with the given starting capacity.
func NewGrowableBuffer[T any](initialCapacity int) *GrowableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	b := &GrowableBuffer[T]{ring: make([]T, initialCapacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send appends item. Returns false once the buffer is closed.
func (b *GrowableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	threshold := len(b.ring) * 7 / 10
	if threshold < 1 {
		threshold = 1
	}
	if b.count+1 >= threshold {
		b.grow()
	}

	b.ring[(b.head+b.count)%len(b.ring)] = item
	b.count++
	b.pushed++

	b.cond.Signal()
	return true
}

// Receive blocks until an item is available. It returns false when the
// buffer is closed and empty.
func (b *GrowableBuffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.take(), true
}

// TryReceive returns the oldest item without blocking.
func (b *GrowableBuffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.take(), true
}

// DrainTo removes up to max items (all of them when max <= 0).
func (b *GrowableBuffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.count
	if n == 0 {
		return nil
	}
	if max > 0 && max < n {
		n = max
	}

	out := make([]T, n)
	for i := range out {
		out[i] = b.take()
	}
	return out
}

// Close stops accepting items and wakes blocked receivers. Items already
// buffered can still be received.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
}

// Len returns the number of buffered items.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Stats returns buffer statistics.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:       b.count,
		Capacity:    len(b.ring),
		TotalSent:   b.pushed,
		TotalTaken:  b.popped,
		ResizeCount: b.resizes,
	}
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count       int
	Capacity    int
	TotalSent   int64
	TotalTaken  int64
	ResizeCount int
}

// take pops the head. Must be called with lock held and count > 0.
func (b *GrowableBuffer[T]) take() T {
	var zero T
	item := b.ring[b.head]
	b.ring[b.head] = zero
	b.head = (b.head + 1) % len(b.ring)
	b.count--
	b.popped++
	return item
}

// grow doubles the ring, unwrapping it to start at index 0.
func (b *GrowableBuffer[T]) grow() {
	next := make([]T, len(b.ring)*2)
	for i := 0; i < b.count; i++ {
		next[i] = b.ring[(b.head+i)%len(b.ring)]
	}
	b.ring = next
	b.head = 0
	b.resizes++
}
