package bus

import (
	"context"
	"sync/atomic"

	"main/pkg/exception"
)

// queue is a bounded, non-blocking event queue feeding one async subscriber.
type queue struct {
	ch     chan Event
	done   chan struct{}
	closed uint32
}

func newQueue(capacity int) *queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &queue{
		ch:   make(chan Event, capacity),
		done: make(chan struct{}),
	}
}

// tryPublish enqueues an event without blocking. The event channel is never
// closed, so a publish racing close at worst enqueues an event the drain
// discards; it can never panic the publisher.
func (q *queue) tryPublish(e Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return exception.ErrBusClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return exception.ErrBusQueueFull
	}
}

// close stops the queue from accepting new events. Buffered events are still
// drained before the run goroutine exits.
func (q *queue) close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.done)
	}
}

// run consumes events until the context is done or the queue is closed and
// drained.
func (q *queue) run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-q.ch:
			handler(e)
		case <-q.done:
			for {
				select {
				case e := <-q.ch:
					handler(e)
				default:
					return
				}
			}
		}
	}
}
