package util

import "sync"

// Event is a resettable gate. Waiters block until the event is set, and the
// event can be cleared again when the condition no longer holds.
type Event struct {
	cond *sync.Cond
	set  bool
}

func NewEvent() *Event {
	return &Event{
		cond: &sync.Cond{L: &sync.Mutex{}},
	}
}

func (e *Event) Set() bool {
	e.cond.L.Lock()
	previous := e.set
	e.set = true
	e.cond.L.Unlock()
	e.cond.Broadcast()
	return previous
}

func (e *Event) Clear() {
	e.cond.L.Lock()
	e.set = false
	e.cond.L.Unlock()
}

func (e *Event) IsSet() bool {
	e.cond.L.Lock()
	defer e.cond.L.Unlock()
	return e.set
}

func (e *Event) Wait() {
	e.cond.L.Lock()
	for !e.set {
		e.cond.Wait()
	}
	e.cond.L.Unlock()
}
