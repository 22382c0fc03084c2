// Package events broadcasts "the server list changed" signals to whoever shows expenses.
//
// Events carry no payload. Every subscriber has a buffer of len(All) slots
// shared by all kinds and Publish never blocks: when the buffer is full the event
// is dropped for that subscriber, since the refreshes already queued cover it.
// A burst of any size therefore leaves at most len(All) pending deliveries.
package events

import (
	"context"
	"sync"
)

// Event identifies what happened on the server.
type Event string

const (
	ExpensesChanged Event = "expenses_changed"
	ExpensesDeleted Event = "expenses_deleted"
)

// All lists every event kind.
var All = []Event{ExpensesChanged, ExpensesDeleted}

// Valid reports whether e is a known event kind.
func (e Event) Valid() bool {
	for _, k := range All {
		if e == k {
			return true
		}
	}
	return false
}

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(Event)
}

// Bus is an in-process broadcaster. Use NewBus.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription receives events on C until Close is called or the bus closes.
type Subscription struct {
	C <-chan Event

	bus   *Bus
	ch    chan Event
	kinds map[Event]bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers interest in the given kinds, or all kinds when none are given.
func (b *Bus) Subscribe(kinds ...Event) *Subscription {
	if len(kinds) == 0 {
		kinds = All
	}
	ch := make(chan Event, len(All))
	s := &Subscription{C: ch, bus: b, ch: ch, kinds: make(map[Event]bool, len(kinds))}
	for _, k := range kinds {
		s.kinds[k] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers e to every interested subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		if !s.kinds[e] {
			continue
		}
		select {
		case s.ch <- e:
		default:
		}
	}
}

// Close closes every subscription. Publishing afterwards is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
}

// Next waits for the next event. ok is false once the subscription is closed
// or ctx is done.
func (s *Subscription) Next(ctx context.Context) (e Event, ok bool) {
	select {
	case e, ok = <-s.ch:
		return e, ok
	case <-ctx.Done():
		return "", false
	}
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subs[s]; ok {
		delete(s.bus.subs, s)
		close(s.ch)
	}
}

// Fanout publishes every event to each of its publishers in order.
type Fanout []Publisher

func (f Fanout) Publish(e Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(e)
		}
	}
}
