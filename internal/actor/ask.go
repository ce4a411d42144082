package actor

import (
	"errors"
	"sync/atomic"

	"github.com/roach88/flowrt/internal/flow"
)

// ErrStopped rejects an Ask whose target was torn down before it answered.
var ErrStopped = errors.New("actor: target stopped")

// Ask runs fn on target and settles the returned promise with its result.
// Continuations of the promise run on replyTo.
//
// If target is disposed before fn runs, the promise is rejected with
// ErrStopped.
func Ask[T any](target, replyTo flow.Coordinator, fn func() (T, error)) *flow.Promise[T] {
	p := flow.NewPromise[T](replyTo)

	guard := &askGuard{reject: func() { p.Reject(ErrStopped) }}
	release := target.Watch(guard)

	target.Schedule(func() {
		defer release()
		v, err := fn()
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(v)
	})
	return p
}

// askGuard rejects a pending Ask when its target's coordinator tears down.
type askGuard struct {
	reject   func()
	disposed atomic.Bool
}

func (g *askGuard) Dispose() {
	if g.disposed.CompareAndSwap(false, true) {
		g.reject()
	}
}

func (g *askGuard) Disposed() bool {
	return g.disposed.Load()
}
