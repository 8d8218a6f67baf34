package marketdata

// Ring is a fixed-capacity FIFO buffer. Appending beyond capacity evicts the
// oldest element. Not safe for concurrent use; Buffer owns the locking.
type Ring[T any] struct {
	buf  []T
	head int // index of the oldest element
	size int
}

// NewRing allocates a ring with the given capacity (minimum 1).
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

func (r *Ring[T]) Len() int { return r.size }

func (r *Ring[T]) Cap() int { return len(r.buf) }

// Append inserts v as the newest element, evicting the oldest when full.
func (r *Ring[T]) Append(v T) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
}

// ReplaceNewest overwrites the newest element in place. Returns false when
// the ring is empty.
func (r *Ring[T]) ReplaceNewest(v T) bool {
	if r.size == 0 {
		return false
	}
	r.buf[(r.head+r.size-1)%len(r.buf)] = v
	return true
}

// Newest returns the most recently appended element.
func (r *Ring[T]) Newest() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.buf[(r.head+r.size-1)%len(r.buf)], true
}

// Recent returns up to n elements ordered oldest to newest. The result is a
// snapshot copy, never a view into the ring.
func (r *Ring[T]) Recent(n int) []T {
	if n <= 0 || r.size == 0 {
		return nil
	}
	if n > r.size {
		n = r.size
	}
	out := make([]T, n)
	start := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.head+start+i)%len(r.buf)]
	}
	return out
}
