package entity

import (
	"context"
	"sync"
)

// persistOp is one queued durable operation. Exactly one of the fields is
// meaningful per op.
type persistOp struct {
	put      []record
	deleteID string
	clear    bool
	barrier  chan struct{}
}

type record struct {
	id             string
	conversationID string
	data           []byte
}

// writeBehind is a FIFO of persist operations drained by one worker.
//
// The queue is unbounded so that cache writers never block on disk I/O.
// Enqueue order is apply order, so the final durable value for an id is the
// one from its last cache write.
type writeBehind struct {
	mu     sync.Mutex
	ops    []persistOp
	closed bool
	signal chan struct{} // Signals op availability (buffered, size 1)
	done   chan struct{}
	apply  func(persistOp)
}

func newWriteBehind(apply func(persistOp)) *writeBehind {
	w := &writeBehind{
		ops:    make([]persistOp, 0, 16),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		apply:  apply,
	}
	go w.run()
	return w
}

// enqueue adds op to the back of the queue. Returns false after close.
func (w *writeBehind) enqueue(op persistOp) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false
	}
	w.ops = append(w.ops, op)

	// Non-blocking - buffer of 1 coalesces multiple signals
	select {
	case w.signal <- struct{}{}:
	default:
	}
	return true
}

// flush waits until every op enqueued before the call has been applied.
func (w *writeBehind) flush(ctx context.Context) error {
	barrier := make(chan struct{})
	if !w.enqueue(persistOp{barrier: barrier}) {
		<-w.done
		return nil
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting ops, drains the queue and waits for the worker.
func (w *writeBehind) close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		select {
		case w.signal <- struct{}{}:
		default:
		}
	}
	w.mu.Unlock()
	<-w.done
}

func (w *writeBehind) run() {
	defer close(w.done)
	for {
		<-w.signal

		for {
			w.mu.Lock()
			if len(w.ops) == 0 {
				closed := w.closed
				w.mu.Unlock()
				if closed {
					return
				}
				break
			}
			op := w.ops[0]
			w.ops[0] = persistOp{}
			w.ops = w.ops[1:]
			w.mu.Unlock()

			if op.barrier != nil {
				close(op.barrier)
				continue
			}
			w.apply(op)
		}
	}
}
