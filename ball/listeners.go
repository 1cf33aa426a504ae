package ball

import (
	"sync"
	"sync/atomic"
)

type listener[T any] struct {
	fn     func(T)
	active atomic.Bool
}

// listeners is a set of callbacks. Removing a listener stops delivery of
// every event whose delivery has not started yet.
type listeners[T any] struct {
	mu   sync.Mutex
	next int
	set  map[int]*listener[T]
}

func (ls *listeners[T]) add(fn func(T)) (remove func()) {
	l := &listener[T]{fn: fn}
	l.active.Store(true)

	ls.mu.Lock()
	if ls.set == nil {
		ls.set = make(map[int]*listener[T])
	}
	id := ls.next
	ls.next++
	ls.set[id] = l
	ls.mu.Unlock()

	return func() {
		l.active.Store(false)
		ls.mu.Lock()
		delete(ls.set, id)
		ls.mu.Unlock()
	}
}

func (ls *listeners[T]) deliver(ev T) {
	ls.mu.Lock()
	snapshot := make([]*listener[T], 0, len(ls.set))
	for _, l := range ls.set {
		snapshot = append(snapshot, l)
	}
	ls.mu.Unlock()

	for _, l := range snapshot {
		if l.active.Load() {
			l.fn(ev)
		}
	}
}

func (ls *listeners[T]) len() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.set)
}
