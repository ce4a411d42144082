package flow

import (
	"sync"
	"sync/atomic"
)

// Disposable is a cancellable handle for work in progress.
//
// Dispose is idempotent and safe to call from within a callback the handle
// itself mediates: the disposed flag flips before any cleanup runs.
type Disposable interface {
	Dispose()
	Disposed() bool
}

// funcDisposable runs its cleanup function on first disposal.
type funcDisposable struct {
	disposed atomic.Bool
	fn       func()
}

// NewDisposable returns a Disposable that calls fn exactly once, on the first
// call to Dispose. fn may be nil.
func NewDisposable(fn func()) Disposable {
	return &funcDisposable{fn: fn}
}

func (d *funcDisposable) Dispose() {
	if !d.disposed.CompareAndSwap(false, true) {
		return
	}
	if d.fn != nil {
		d.fn()
	}
}

func (d *funcDisposable) Disposed() bool {
	return d.disposed.Load()
}

type emptyDisposable struct{}

func (emptyDisposable) Dispose()       {}
func (emptyDisposable) Disposed() bool { return true }

// Empty returns a handle that is already disposed.
func Empty() Disposable {
	return emptyDisposable{}
}

// Composite disposes a group of handles together. Handles added after the
// composite has been disposed are disposed immediately.
type Composite struct {
	mu       sync.Mutex
	disposed bool
	members  []Disposable
}

// NewComposite creates a composite holding the given handles.
func NewComposite(members ...Disposable) *Composite {
	c := &Composite{}
	for _, d := range members {
		c.Add(d)
	}
	return c
}

// Add registers a handle with the composite.
func (c *Composite) Add(d Disposable) {
	if d == nil {
		return
	}
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		d.Dispose()
		return
	}
	c.members = append(c.members, d)
	c.mu.Unlock()
}

// Len returns the number of handles that have not been disposed yet.
func (c *Composite) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.members {
		if !d.Disposed() {
			n++
		}
	}
	return n
}

// Dispose disposes every member in insertion order.
func (c *Composite) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	members := c.members
	c.members = nil
	c.mu.Unlock()

	for _, d := range members {
		d.Dispose()
	}
}

// Disposed reports whether Dispose has been called.
func (c *Composite) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}
