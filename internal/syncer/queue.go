package syncer

import "sync"

// Source names the channel a frame arrived on.
type Source string

const (
	SourcePush Source = "push"
	SourcePoll Source = "poll"
)

// item is one queued frame, or a barrier when barrier is non-nil.
type item struct {
	source  Source
	data    []byte
	barrier chan struct{}
}

// deltaQueue is a thread-safe FIFO of inbound frames.
//
// The queue is unbounded so the push read loop never blocks on store
// writes. Producers may enqueue from any goroutine; exactly one goroutine
// dequeues.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the apply loop.
type deltaQueue struct {
	mu     sync.Mutex
	items  []item
	closed bool
	signal chan struct{} // Signals item availability (buffered, size 1)
}

func newDeltaQueue() *deltaQueue {
	return &deltaQueue{
		items:  make([]item, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// enqueue adds it to the back of the queue. Returns false if the queue is
// closed.
func (q *deltaQueue) enqueue(it item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, it)

	// Non-blocking - buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// tryDequeue removes the front item without blocking.
func (q *deltaQueue) tryDequeue() (item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return item{}, false
	}
	it := q.items[0]

	// Nil out the slot so the frame bytes can be collected.
	q.items[0] = item{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return it, true
}

// wait returns a channel that signals when items may be available. It is
// closed by close.
func (q *deltaQueue) wait() <-chan struct{} {
	return q.signal
}

func (q *deltaQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// close stops accepting items and wakes the consumer. Items already queued
// can still be dequeued.
func (q *deltaQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

func (q *deltaQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
