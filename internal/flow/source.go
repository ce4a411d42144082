package flow

import (
	"slices"
	"sync/atomic"
)

// coldSource emits a finite, indexable sequence to each subscriber on demand.
type coldSource[T any] struct {
	c    Coordinator
	kind Kind
	n    int
	at   func(i int) T
	err  error
}

// Just emits items in order, then completes.
func Just[T any](c Coordinator, items ...T) Observable[T] {
	items = slices.Clone(items)
	return &coldSource[T]{
		c:    c,
		kind: KindJust,
		n:    len(items),
		at:   func(i int) T { return items[i] },
	}
}

// Range emits count consecutive integers starting at start, then completes.
func Range(c Coordinator, start, count int) Observable[int] {
	return RangeOf(c, start, count, func(i int) int { return i })
}

// RangeOf emits f(start), f(start+1), ... for count integers, then completes.
func RangeOf[T any](c Coordinator, start, count int, f func(int) T) Observable[T] {
	return &coldSource[T]{
		c:    c,
		kind: KindRange,
		n:    max(count, 0),
		at:   func(i int) T { return f(start + i) },
	}
}

// Empty completes on the next coordinator turn without emitting.
func Empty[T any](c Coordinator) Observable[T] {
	return &coldSource[T]{c: c, kind: KindEmpty}
}

// Fail delivers err on the next coordinator turn without emitting.
func Fail[T any](c Coordinator, err error) Observable[T] {
	return &coldSource[T]{c: c, kind: KindFail, err: err}
}

func (src *coldSource[T]) Kind() Kind {
	return src.kind
}

func (src *coldSource[T]) Subscribe(out Observer[T]) Subscription {
	s := &coldSub[T]{src: src, out: out}
	s.release = src.c.Watch(s)
	out.OnSubscribe(s)
	if src.n == 0 {
		s.scheduleDrain()
	}
	return s
}

type coldSub[T any] struct {
	src       *coldSource[T]
	out       Observer[T]
	demand    int
	next      int
	scheduled bool
	disposed  atomic.Bool
	release   func()
}

func (s *coldSub[T]) scheduleDrain() {
	if s.scheduled {
		return
	}
	s.scheduled = true
	s.src.c.Schedule(func() {
		s.scheduled = false
		s.drain()
	})
}

func (s *coldSub[T]) drain() {
	for s.next < s.src.n && s.demand > 0 && !s.disposed.Load() {
		item := s.src.at(s.next)
		s.next++
		s.demand = takeDemand(s.demand)
		s.out.OnNext(item)
	}
	if s.next < s.src.n {
		return
	}
	if !s.disposed.CompareAndSwap(false, true) {
		return
	}
	s.release()
	deliverTerminal(s.out, s.src.err)
}

func (s *coldSub[T]) Request(n int) {
	if s.disposed.Load() || n <= 0 {
		return
	}
	s.demand = addDemand(s.demand, n)
	s.scheduleDrain()
}

func (s *coldSub[T]) Dispose() {
	if !s.disposed.CompareAndSwap(false, true) {
		return
	}
	s.release()
}

func (s *coldSub[T]) Disposed() bool {
	return s.disposed.Load()
}
