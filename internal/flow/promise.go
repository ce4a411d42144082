package flow

import (
	"sync"
	"sync/atomic"
)

// Promise is a value that settles exactly once, either resolved with a value
// or rejected with an error. Continuations registered with Then run on the
// promise's coordinator.
//
// Resolve and Reject are safe to call from any goroutine.
type Promise[T any] struct {
	c Coordinator

	mu      sync.Mutex
	settled bool
	value   T
	err     error
	pending []*continuation[T]
}

// NewPromise creates an unsettled promise whose continuations run on c.
func NewPromise[T any](c Coordinator) *Promise[T] {
	return &Promise[T]{c: c}
}

// Resolve settles the promise with v. Returns false if already settled.
func (p *Promise[T]) Resolve(v T) bool {
	return p.settle(v, nil)
}

// Reject settles the promise with err. Returns false if already settled.
func (p *Promise[T]) Reject(err error) bool {
	var zero T
	return p.settle(zero, err)
}

func (p *Promise[T]) settle(v T, err error) bool {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return false
	}
	p.settled = true
	p.value = v
	p.err = err
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, k := range pending {
		p.dispatch(k, v, err)
	}
	return true
}

// Then registers a continuation. Exactly one of onValue and onError runs,
// once, on the coordinator after the promise settles. Either may be nil.
// Disposing the returned handle before it runs cancels the continuation.
func (p *Promise[T]) Then(onValue func(T), onError func(error)) Disposable {
	k := &continuation[T]{onValue: onValue, onError: onError}

	p.mu.Lock()
	if !p.settled {
		p.pending = append(p.pending, k)
		p.mu.Unlock()
		return k
	}
	v, err := p.value, p.err
	p.mu.Unlock()

	p.dispatch(k, v, err)
	return k
}

// Settled reports whether the promise has been resolved or rejected.
func (p *Promise[T]) Settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled
}

// Result returns the settled value and error. Both are zero while the promise
// is unsettled.
func (p *Promise[T]) Result() (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.err
}

func (p *Promise[T]) dispatch(k *continuation[T], v T, err error) {
	if k.Disposed() {
		return
	}
	p.c.Schedule(func() { k.fire(v, err) })
}

type continuation[T any] struct {
	onValue  func(T)
	onError  func(error)
	disposed atomic.Bool
}

func (k *continuation[T]) fire(v T, err error) {
	if !k.disposed.CompareAndSwap(false, true) {
		return
	}
	if err != nil {
		if k.onError != nil {
			k.onError(err)
		}
		return
	}
	if k.onValue != nil {
		k.onValue(v)
	}
}

func (k *continuation[T]) Dispose() {
	k.disposed.Store(true)
}

func (k *continuation[T]) Disposed() bool {
	return k.disposed.Load()
}
