package flow

import "sync/atomic"

// Ucast is a single-subscriber buffered source.
//
// Items pushed before a subscriber attaches are buffered and delivered, in
// push order, once the subscriber requests them. A terminal event latched by
// Close or Abort is delivered after the buffer has drained.
//
// All methods must be called on the ucast's coordinator.
type Ucast[T any] struct {
	c Coordinator

	buf      []T
	finished bool
	err      error

	sub      *ucastSub[T]
	taken    bool
	detached bool

	running        bool
	drainScheduled bool
}

// NewUcast creates a ucast bound to c.
func NewUcast[T any](c Coordinator) *Ucast[T] {
	return &Ucast[T]{c: c}
}

func (u *Ucast[T]) Kind() Kind {
	return KindUcast
}

// Push buffers item and delivers it immediately if the subscriber has
// outstanding demand. No-op after Close, Abort or detach.
func (u *Ucast[T]) Push(item T) {
	if u.finished || u.detached {
		return
	}
	u.buf = append(u.buf, item)
	if u.sub != nil && u.sub.demand > 0 {
		u.drain()
	}
}

// Close latches completion. Buffered items are still delivered first.
func (u *Ucast[T]) Close() {
	u.terminate(nil)
}

// Abort latches err as the terminal event. Buffered items are still delivered
// first.
func (u *Ucast[T]) Abort(err error) {
	u.terminate(err)
}

func (u *Ucast[T]) terminate(err error) {
	if u.finished || u.detached {
		return
	}
	u.finished = true
	u.err = err
	if u.sub != nil {
		u.drain()
	}
}

// Subscribe attaches out.
//
// A second subscriber receives OnError(ErrAlreadySubscribed) and a disposed
// subscription; the first one is unaffected. A finished ucast with nothing
// left to deliver completes (or fails) out synchronously.
func (u *Ucast[T]) Subscribe(out Observer[T]) Subscription {
	if u.taken {
		out.OnError(ErrAlreadySubscribed)
		return DisposedSubscription()
	}
	if u.finished && len(u.buf) == 0 {
		deliverTerminal(out, u.err)
		return DisposedSubscription()
	}

	u.taken = true
	s := &ucastSub[T]{u: u, out: out}
	u.sub = s
	s.release = u.c.Watch(s)
	out.OnSubscribe(s)
	return s
}

// Buffered returns the number of undelivered items.
func (u *Ucast[T]) Buffered() int {
	return len(u.buf)
}

// HasObserver reports whether a subscriber is currently attached.
func (u *Ucast[T]) HasObserver() bool {
	return u.sub != nil
}

// Demand returns the attached subscriber's outstanding demand, or 0.
func (u *Ucast[T]) Demand() int {
	if u.sub == nil {
		return 0
	}
	return u.sub.demand
}

// Finished reports whether Close or Abort has been called.
func (u *Ucast[T]) Finished() bool {
	return u.finished
}

func (u *Ucast[T]) scheduleDrain() {
	if u.drainScheduled {
		return
	}
	u.drainScheduled = true
	u.c.Schedule(func() {
		u.drainScheduled = false
		u.drain()
	})
}

// drain delivers buffered items while demand lasts, then the terminal event
// once the buffer is empty. Reentrant calls from inside OnNext return
// immediately; the outer loop picks up whatever they added.
func (u *Ucast[T]) drain() {
	if u.running {
		return
	}
	s := u.sub
	if s == nil {
		return
	}

	u.running = true
	defer func() { u.running = false }()

	for len(u.buf) > 0 && s.demand > 0 && !s.disposed.Load() {
		var zero T
		item := u.buf[0]
		u.buf[0] = zero
		u.buf = u.buf[1:]
		s.demand = takeDemand(s.demand)
		s.out.OnNext(item)
	}

	if s.disposed.Load() || !u.finished || len(u.buf) > 0 {
		return
	}

	u.buf = nil
	u.sub = nil
	s.disposed.Store(true)
	s.release()
	deliverTerminal(s.out, u.err)
}

func (u *Ucast[T]) detach(s *ucastSub[T]) {
	if u.sub != s {
		return
	}
	u.sub = nil
	u.buf = nil
	u.detached = true
}

type ucastSub[T any] struct {
	u        *Ucast[T]
	out      Observer[T]
	demand   int
	disposed atomic.Bool
	release  func()
}

func (s *ucastSub[T]) Request(n int) {
	if s.disposed.Load() || n <= 0 {
		return
	}
	s.demand = addDemand(s.demand, n)
	s.u.scheduleDrain()
}

func (s *ucastSub[T]) Dispose() {
	if !s.disposed.CompareAndSwap(false, true) {
		return
	}
	s.release()
	s.u.detach(s)
}

func (s *ucastSub[T]) Disposed() bool {
	return s.disposed.Load()
}

func deliverTerminal[T any](out Observer[T], err error) {
	if err != nil {
		out.OnError(err)
		return
	}
	out.OnComplete()
}
