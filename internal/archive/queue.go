package archive

import "sync"

// queue is a thread-safe FIFO carrying tagged action values.
//
// The queue is unbounded so that request producers and I/O workers can
// enqueue without blocking, whatever the consumer is doing.
//
// Thread-safety is provided for external enqueuing (request API, I/O
// workers) while the engine's consumer loop dequeues. A channel is
// used for signaling so the consumer can wait with context awareness.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	signal chan struct{} // Signals item availability (buffered, size 1)
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{
		items:  make([]T, 0, 32),
		signal: make(chan struct{}, 1),
	}
}

// enqueue adds an item to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *queue[T]) enqueue(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, item)

	// Signal availability (non-blocking - buffer of 1 coalesces signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// tryDequeue attempts to dequeue without blocking.
// Returns (zero, false) if the queue is empty.
func (q *queue[T]) tryDequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]

	// Nil out the slot so the underlying array does not retain the
	// item's pointers until reallocation.
	q.items[0] = zero

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return item, true
}

// wait returns a channel that signals when items may be available.
// Use with select for context-aware waiting.
func (q *queue[T]) wait() <-chan struct{} {
	return q.signal
}

// isClosed reports whether close has been called.
func (q *queue[T]) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// len returns the current queue length.
func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// close signals that no more items will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
