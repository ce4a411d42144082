package flow

import (
	"maps"
	"slices"
	"sync/atomic"
)

// Merge interleaves the items of a dynamic set of upstream observables.
//
// Merge is cold: every subscriber gets its own merge subscription over every
// registered upstream. Upstreams may be added while subscriptions are live;
// each live subscription subscribes to a new upstream immediately.
//
// Each upstream is requested with Unbounded demand. Backpressure is enforced
// only on the downstream edge: items that arrive while the downstream has no
// demand are queued without bound (the no-per-source-backpressure policy).
//
// The downstream completes once the merge is sealed, every upstream has
// finished and the queue is empty. The first upstream error disposes the
// remaining upstreams at once and fails the merge; items already queued are
// still delivered as demand allows, then the downstream receives the error.
//
// All methods must be called on the merge's coordinator.
type Merge[T any] struct {
	c       Coordinator
	sources []Observable[T]
	sealed  bool
	err     error
	subs    []*mergeSub[T]
}

// NewMerge creates an open merge over sources. More upstreams can be added
// until Seal is called.
func NewMerge[T any](c Coordinator, sources ...Observable[T]) *Merge[T] {
	return &Merge[T]{c: c, sources: slices.Clone(sources)}
}

// Merged creates a sealed merge over a fixed set of sources.
func Merged[T any](c Coordinator, sources ...Observable[T]) *Merge[T] {
	m := NewMerge(c, sources...)
	m.sealed = true
	return m
}

func (m *Merge[T]) Kind() Kind {
	return KindMerge
}

// Add registers src and subscribes every live merge subscription to it.
// Returns false if the merge is sealed or has failed.
func (m *Merge[T]) Add(src Observable[T]) bool {
	if m.sealed || m.err != nil {
		return false
	}
	m.sources = append(m.sources, src)
	for _, s := range slices.Clone(m.subs) {
		s.attach(src)
	}
	return true
}

// Seal declares that no more upstreams will be added.
func (m *Merge[T]) Seal() {
	if m.sealed {
		return
	}
	m.sealed = true
	for _, s := range slices.Clone(m.subs) {
		s.checkDone()
	}
}

// Sealed reports whether Seal has been called.
func (m *Merge[T]) Sealed() bool {
	return m.sealed
}

// Err returns the upstream error that failed the merge, or nil.
func (m *Merge[T]) Err() error {
	return m.err
}

// Inputs returns the number of registered upstreams.
func (m *Merge[T]) Inputs() int {
	return len(m.sources)
}

// Subscribe attaches out and subscribes to every registered upstream. A
// failed merge fails out immediately.
func (m *Merge[T]) Subscribe(out Observer[T]) Subscription {
	if m.err != nil {
		deliverTerminal(out, m.err)
		return DisposedSubscription()
	}

	s := &mergeSub[T]{
		m:      m,
		out:    out,
		inputs: make(map[uint64]Subscription),
	}
	m.subs = append(m.subs, s)
	s.release = m.c.Watch(s)

	out.OnSubscribe(s)
	if s.disposed.Load() {
		return s
	}

	s.starting = true
	for _, src := range slices.Clone(m.sources) {
		if s.disposed.Load() || s.err != nil {
			break
		}
		s.attach(src)
	}
	s.starting = false
	s.checkDone()
	return s
}

func (m *Merge[T]) remove(s *mergeSub[T]) {
	m.subs = slices.DeleteFunc(m.subs, func(x *mergeSub[T]) bool { return x == s })
}

type mergeSub[T any] struct {
	m   *Merge[T]
	out Observer[T]

	demand  int
	queue   []T
	err     error
	inputs  map[uint64]Subscription
	nextKey uint64

	// starting suppresses completion while Subscribe is still attaching
	// the initial upstreams.
	starting      bool
	emitting      bool
	emitScheduled bool
	disposed      atomic.Bool
	release       func()
}

func (s *mergeSub[T]) attach(src Observable[T]) {
	if s.failed() {
		return
	}
	key := s.nextKey
	s.nextKey++
	s.inputs[key] = nil

	sub := src.Subscribe(&mergeInput[T]{s: s, key: key})
	if s.failed() {
		delete(s.inputs, key)
		sub.Dispose()
		return
	}
	if _, live := s.inputs[key]; live {
		s.inputs[key] = sub
	}
}

// failed reports whether the subscription stopped accepting upstream events.
func (s *mergeSub[T]) failed() bool {
	return s.disposed.Load() || s.err != nil
}

func (s *mergeSub[T]) onNext(item T) {
	if s.failed() {
		return
	}
	s.queue = append(s.queue, item)
	s.emit()
}

func (s *mergeSub[T]) onComplete(key uint64) {
	if s.failed() {
		return
	}
	delete(s.inputs, key)
	s.checkDone()
}

// onError latches the first upstream error. Siblings are dropped now; the
// error reaches the downstream once the queue is flushed.
func (s *mergeSub[T]) onError(key uint64, err error) {
	if s.failed() {
		return
	}
	s.err = err
	if s.m.err == nil {
		s.m.err = err
	}
	delete(s.inputs, key)
	s.disposeInputs()
	s.checkDone()
}

// emit forwards queued items while the downstream has demand.
func (s *mergeSub[T]) emit() {
	if s.emitting {
		return
	}
	s.emitting = true
	for len(s.queue) > 0 && s.demand > 0 && !s.disposed.Load() {
		var zero T
		item := s.queue[0]
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.demand = takeDemand(s.demand)
		s.out.OnNext(item)
	}
	s.emitting = false
	s.checkDone()
}

func (s *mergeSub[T]) checkDone() {
	if s.disposed.Load() || s.starting || s.emitting || len(s.queue) > 0 {
		return
	}
	if s.err == nil && (!s.m.sealed || len(s.inputs) > 0) {
		return
	}
	if !s.disposed.CompareAndSwap(false, true) {
		return
	}
	s.release()
	s.m.remove(s)
	if s.err != nil {
		s.out.OnError(s.err)
		return
	}
	s.out.OnComplete()
}

func (s *mergeSub[T]) disposeInputs() {
	inputs := s.inputs
	s.inputs = make(map[uint64]Subscription)
	for _, key := range slices.Sorted(maps.Keys(inputs)) {
		if sub := inputs[key]; sub != nil {
			sub.Dispose()
		}
	}
}

func (s *mergeSub[T]) Request(n int) {
	if s.disposed.Load() || n <= 0 {
		return
	}
	s.demand = addDemand(s.demand, n)
	if s.emitScheduled {
		return
	}
	s.emitScheduled = true
	s.m.c.Schedule(func() {
		s.emitScheduled = false
		s.emit()
	})
}

func (s *mergeSub[T]) Dispose() {
	if !s.disposed.CompareAndSwap(false, true) {
		return
	}
	s.queue = nil
	s.release()
	s.m.remove(s)
	s.disposeInputs()
}

func (s *mergeSub[T]) Disposed() bool {
	return s.disposed.Load()
}

// mergeInput forwards one upstream's events into its merge subscription.
type mergeInput[T any] struct {
	s   *mergeSub[T]
	key uint64
}

func (in *mergeInput[T]) OnSubscribe(sub Subscription) {
	if in.s.failed() {
		sub.Dispose()
		return
	}
	if _, live := in.s.inputs[in.key]; live {
		in.s.inputs[in.key] = sub
	}
	sub.Request(Unbounded)
}

func (in *mergeInput[T]) OnNext(item T) {
	in.s.onNext(item)
}

func (in *mergeInput[T]) OnError(err error) {
	in.s.onError(in.key, err)
}

func (in *mergeInput[T]) OnComplete() {
	in.s.onComplete(in.key)
}
