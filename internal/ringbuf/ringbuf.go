package ringbuf

// RingBuf is a bounded FIFO.
// Pushing onto a full RingBuf evicts the oldest element.
type RingBuf[T any] struct {
	buf  []T
	head int
	n    int
}

func New[T any](n int) RingBuf[T] {
	return RingBuf[T]{buf: make([]T, n)}
}

func (rb *RingBuf[T]) MaxLen() int {
	return len(rb.buf)
}

func (rb *RingBuf[T]) Len() int {
	return rb.n
}

// PushBack appends val, evicting the oldest element if the buffer is full.
// It is a no-op on a zero capacity buffer.
func (rb *RingBuf[T]) PushBack(val T) {
	if len(rb.buf) == 0 {
		return
	}
	if rb.n == len(rb.buf) {
		rb.buf[rb.head] = val
		rb.head = (rb.head + 1) % len(rb.buf)
		return
	}
	rb.buf[(rb.head+rb.n)%len(rb.buf)] = val
	rb.n++
}

func (rb *RingBuf[T]) PopFront() T {
	val := rb.At(0)
	var zero T
	rb.buf[rb.head] = zero
	rb.head = (rb.head + 1) % len(rb.buf)
	rb.n--
	return val
}

// At returns the i-th oldest element
func (rb *RingBuf[T]) At(i int) T {
	if i < 0 || i >= rb.n {
		panic(i)
	}
	return rb.buf[(rb.head+i)%len(rb.buf)]
}

// Slice returns the elements from oldest to newest
func (rb *RingBuf[T]) Slice() []T {
	out := make([]T, rb.n)
	for i := range out {
		out[i] = rb.At(i)
	}
	return out
}
