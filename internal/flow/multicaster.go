package flow

import (
	"slices"
	"sync/atomic"
)

// Multicaster is a hot broadcast source. An item pushed is delivered to
// every attached observer with outstanding demand at that moment; nothing is
// buffered and nothing is replayed to late subscribers.
//
// All methods must be called on the multicaster's coordinator.
type Multicaster[T any] struct {
	c      Coordinator
	subs   []*mcastSub[T]
	closed bool
	err    error

	// pushing is set while Push broadcasts. A Push from inside an observer
	// callback is appended to pending. A Close or Abort from inside a
	// callback is latched in stopping and runs once the current item has
	// reached every observer; items still pending are discarded.
	pushing  bool
	pending  []T
	stopping bool
	stopErr  error
}

// NewMulticaster creates a multicaster bound to c.
func NewMulticaster[T any](c Coordinator) *Multicaster[T] {
	return &Multicaster[T]{c: c}
}

func (m *Multicaster[T]) Kind() Kind {
	return KindMulticaster
}

// Push broadcasts items in order. Observers without demand skip an item.
// Items pushed from an observer callback follow the item being delivered.
func (m *Multicaster[T]) Push(items ...T) {
	if m.Closed() {
		return
	}
	m.pending = append(m.pending, items...)
	if m.pushing {
		return
	}

	m.pushing = true
	for len(m.pending) > 0 && !m.stopping {
		var zero T
		item := m.pending[0]
		m.pending[0] = zero
		m.pending = m.pending[1:]
		m.broadcast(item)
	}
	m.pending = nil
	m.pushing = false

	if m.stopping {
		m.terminate(m.stopErr)
	}
}

func (m *Multicaster[T]) broadcast(item T) {
	for _, s := range slices.Clone(m.subs) {
		if s.disposed.Load() || s.demand == 0 {
			continue
		}
		s.demand = takeDemand(s.demand)
		s.out.OnNext(item)
	}
}

// Close completes every attached observer in attachment order. Later
// subscribers complete immediately.
func (m *Multicaster[T]) Close() {
	m.terminate(nil)
}

// Abort fails every attached observer with err. Later subscribers receive
// err immediately.
func (m *Multicaster[T]) Abort(err error) {
	m.terminate(err)
}

func (m *Multicaster[T]) terminate(err error) {
	if m.closed {
		return
	}
	if m.pushing {
		if !m.stopping {
			m.stopping, m.stopErr = true, err
		}
		return
	}
	m.closed = true
	m.err = err

	subs := m.subs
	m.subs = nil
	for _, s := range subs {
		if !s.disposed.CompareAndSwap(false, true) {
			continue
		}
		s.release()
		deliverTerminal(s.out, err)
	}
}

// Subscribe attaches out to the live set.
func (m *Multicaster[T]) Subscribe(out Observer[T]) Subscription {
	if m.closed {
		deliverTerminal(out, m.err)
		return DisposedSubscription()
	}

	s := &mcastSub[T]{m: m, out: out}
	m.subs = append(m.subs, s)
	s.release = m.c.Watch(s)
	out.OnSubscribe(s)
	return s
}

// ObserverCount returns the number of attached observers.
func (m *Multicaster[T]) ObserverCount() int {
	return len(m.subs)
}

// HasObservers reports whether any observer is attached.
func (m *Multicaster[T]) HasObservers() bool {
	return len(m.subs) > 0
}

// MinDemand returns the smallest outstanding demand among attached
// observers, or 0 if there are none.
func (m *Multicaster[T]) MinDemand() int {
	if len(m.subs) == 0 {
		return 0
	}
	lo := Unbounded
	for _, s := range m.subs {
		lo = min(lo, s.demand)
	}
	return lo
}

// MaxDemand returns the largest outstanding demand among attached
// observers, or 0 if there are none.
func (m *Multicaster[T]) MaxDemand() int {
	hi := 0
	for _, s := range m.subs {
		hi = max(hi, s.demand)
	}
	return hi
}

// Closed reports whether Close or Abort has been called.
func (m *Multicaster[T]) Closed() bool {
	return m.closed || m.stopping
}

func (m *Multicaster[T]) remove(s *mcastSub[T]) {
	m.subs = slices.DeleteFunc(m.subs, func(x *mcastSub[T]) bool { return x == s })
}

type mcastSub[T any] struct {
	m        *Multicaster[T]
	out      Observer[T]
	demand   int
	disposed atomic.Bool
	release  func()
}

func (s *mcastSub[T]) Request(n int) {
	if s.disposed.Load() {
		return
	}
	s.demand = addDemand(s.demand, n)
}

func (s *mcastSub[T]) Dispose() {
	if !s.disposed.CompareAndSwap(false, true) {
		return
	}
	s.release()
	s.m.remove(s)
}

func (s *mcastSub[T]) Disposed() bool {
	return s.disposed.Load()
}
