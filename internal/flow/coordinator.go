package flow

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/uber-go/tally/v4"
)

// Coordinator serializes every callback of the flows bound to it.
//
// Schedule never runs fn on the caller's stack: fn is enqueued and runs on a
// later turn of the coordinator. Actions run strictly in FIFO order and never
// concurrently with each other.
//
// Dispose tears the coordinator down: queued actions are dropped without
// running and every watched subscription is disposed.
type Coordinator interface {
	Disposable

	// ID identifies the coordinator in logs and metrics.
	ID() string

	// Schedule enqueues fn. Disposing the returned handle before fn runs
	// cancels it. After teardown the returned handle is already disposed.
	Schedule(fn func()) Disposable

	// Watch attributes d to this coordinator so that teardown disposes it.
	// The returned function removes the attribution.
	Watch(d Disposable) (release func())
}

// Option configures a coordinator.
type Option func(*options)

type options struct {
	id     string
	logger *slog.Logger
	scope  tally.Scope
}

// WithID overrides the generated coordinator id.
func WithID(id string) Option {
	return func(o *options) {
		o.id = id
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics reports coordinator metrics to scope.
//
// Counters: actions_scheduled, actions_run, actions_dropped,
// subscriptions_disposed. Gauge: pending_actions (run loops only).
func WithMetrics(scope tally.Scope) Option {
	return func(o *options) {
		o.scope = scope
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.Must(uuid.NewV7()).String()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.scope == nil {
		o.scope = tally.NoopScope
	}
	return o
}

type coordinatorMetrics struct {
	scheduled tally.Counter
	run       tally.Counter
	dropped   tally.Counter
	disposed  tally.Counter
	pending   tally.Gauge
}

func newCoordinatorMetrics(scope tally.Scope) coordinatorMetrics {
	return coordinatorMetrics{
		scheduled: scope.Counter("actions_scheduled"),
		run:       scope.Counter("actions_run"),
		dropped:   scope.Counter("actions_dropped"),
		disposed:  scope.Counter("subscriptions_disposed"),
		pending:   scope.Gauge("pending_actions"),
	}
}

// action is a scheduled thunk. It runs at most once and not at all once
// disposed.
type action struct {
	state atomic.Int32
	fn    func()
}

const (
	actionScheduled int32 = iota
	actionInvoked
	actionDisposed
)

// run invokes the thunk unless the action was disposed. Reports whether it ran.
func (a *action) run() bool {
	if !a.state.CompareAndSwap(actionScheduled, actionInvoked) {
		return false
	}
	a.fn()
	return true
}

func (a *action) Dispose() {
	a.state.CompareAndSwap(actionScheduled, actionDisposed)
}

func (a *action) Disposed() bool {
	return a.state.Load() != actionScheduled
}

// core holds the bookkeeping shared by every coordinator backend.
type core struct {
	id      string
	logger  *slog.Logger
	metrics coordinatorMetrics

	// post hands an action to the backend. Returns false if the backend no
	// longer accepts work.
	post func(a *action) bool

	mu       sync.Mutex
	disposed bool
	watched  map[uint64]Disposable
	nextKey  uint64
}

func newCore(o options, post func(a *action) bool) core {
	return core{
		id:      o.id,
		logger:  o.logger.With("coordinator", o.id),
		metrics: newCoordinatorMetrics(o.scope),
		post:    post,
		watched: make(map[uint64]Disposable),
	}
}

func (c *core) ID() string {
	return c.id
}

func (c *core) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

func (c *core) Schedule(fn func()) Disposable {
	a := &action{fn: fn}
	if c.Disposed() || !c.post(a) {
		a.Dispose()
		c.metrics.dropped.Inc(1)
		return a
	}
	c.metrics.scheduled.Inc(1)
	return a
}

// execute runs a on the coordinator's turn.
func (c *core) execute(a *action) {
	if c.Disposed() {
		a.Dispose()
		c.metrics.dropped.Inc(1)
		return
	}
	if a.run() {
		c.metrics.run.Inc(1)
	}
}

func (c *core) Watch(d Disposable) func() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		d.Dispose()
		return func() {}
	}
	key := c.nextKey
	c.nextKey++
	c.watched[key] = d
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.watched, key)
		c.mu.Unlock()
	}
}

// teardown marks the coordinator disposed and disposes watched handles in
// attribution order. Reports false if the coordinator was already disposed.
func (c *core) teardown() bool {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return false
	}
	c.disposed = true
	watched := c.watched
	c.watched = nil
	c.mu.Unlock()

	for _, key := range slices.Sorted(maps.Keys(watched)) {
		d := watched[key]
		if d.Disposed() {
			continue
		}
		d.Dispose()
		c.metrics.disposed.Inc(1)
	}

	c.logger.Debug("coordinator disposed", "subscriptions_disposed", len(watched))
	return true
}
