package sim

import (
	"sync"
	"time"
)

// queue runs events one at a time on its own goroutine, in push order.
// push never blocks.
type queue struct {
	latency time.Duration

	mu     sync.Mutex
	events []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

func newQueue(latency time.Duration) *queue {
	q := &queue{
		latency: latency,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *queue) push(fn func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.events = append(q.events, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
}

func (q *queue) run() {
	for {
		select {
		case <-q.done:
			return
		case <-q.wake:
		}
		for {
			q.mu.Lock()
			if q.closed || len(q.events) == 0 {
				q.mu.Unlock()
				break
			}
			fn := q.events[0]
			q.events = q.events[1:]
			q.mu.Unlock()

			if q.latency > 0 {
				time.Sleep(q.latency)
			}
			fn()
		}
	}
}
