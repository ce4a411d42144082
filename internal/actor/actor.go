package actor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/uber-go/tally/v4"

	"github.com/roach88/flowrt/internal/flow"
	"github.com/roach88/flowrt/internal/mailbox"
)

// ErrAlreadyRunning is returned by Run when the actor's loop is already
// running or has finished.
var ErrAlreadyRunning = errors.New("actor: already running")

// Message is anything sent to an actor.
type Message any

// Handler processes one message on the actor's goroutine. A returned error is
// logged and processing continues with the next message.
type Handler func(ctx context.Context, msg Message) error

// Option configures an Actor.
type Option func(*Actor)

// WithHandler sets the message handler. Without one, Send still accepts
// messages and discards them.
func WithHandler(h Handler) Option {
	return func(a *Actor) {
		a.handler = h
	}
}

// WithLogger sets the logger for the actor and its coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Actor) {
		a.logger = logger
	}
}

// WithMetrics reports actor and coordinator metrics to scope.
//
// Counters: messages_received, messages_dropped, handler_errors, plus the
// coordinator counters.
func WithMetrics(scope tally.Scope) Option {
	return func(a *Actor) {
		a.scope = scope
	}
}

// WithID overrides the generated actor id.
func WithID(id string) Option {
	return func(a *Actor) {
		a.id = id
	}
}

// Actor owns a mailbox and the goroutine that drains it.
//
// Send, Stop and the coordinator's Schedule are safe from any goroutine. Run
// must be called exactly once.
type Actor struct {
	name    string
	id      string
	logger  *slog.Logger
	scope   tally.Scope
	handler Handler

	mailbox *mailbox.Queue[func()]
	coord   *flow.Hosted

	// ctx is the context Run was called with. Only read on the actor's
	// goroutine.
	ctx context.Context

	started  atomic.Bool
	done     chan struct{}
	doneOnce sync.Once

	received tally.Counter
	dropped  tally.Counter
	failures tally.Counter
}

// New creates an actor. Nothing runs until Run is called.
func New(name string, opts ...Option) *Actor {
	a := &Actor{
		name:    name,
		logger:  slog.Default(),
		scope:   tally.NoopScope,
		mailbox: mailbox.New[func()](),
		ctx:     context.Background(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.id == "" {
		a.id = uuid.Must(uuid.NewV7()).String()
	}
	a.logger = a.logger.With("actor", name, "actor_id", a.id)

	a.received = a.scope.Counter("messages_received")
	a.dropped = a.scope.Counter("messages_dropped")
	a.failures = a.scope.Counter("handler_errors")

	a.coord = flow.NewHosted(a,
		flow.WithID("actor:"+name),
		flow.WithLogger(a.logger),
		flow.WithMetrics(a.scope),
	)
	return a
}

// Name returns the actor's name.
func (a *Actor) Name() string {
	return a.name
}

// ID returns the actor's unique id.
func (a *Actor) ID() string {
	return a.id
}

// Coordinator returns the coordinator whose actions run as tasks on this
// actor's mailbox.
func (a *Actor) Coordinator() flow.Coordinator {
	return a.coord
}

// Post enqueues a task. Returns false once the actor is stopping.
// Implements flow.Host.
func (a *Actor) Post(task func()) bool {
	return a.mailbox.Enqueue(task)
}

// Send delivers msg to the handler on the actor's goroutine. Returns false
// once the actor is stopping.
func (a *Actor) Send(msg Message) bool {
	if !a.Post(func() { a.handle(msg) }) {
		a.dropped.Inc(1)
		return false
	}
	return true
}

func (a *Actor) handle(msg Message) {
	a.received.Inc(1)
	if a.handler == nil {
		return
	}
	if err := a.handler(a.ctx, msg); err != nil {
		a.failures.Inc(1)
		a.logger.Error("handler failed", "message", msg, "error", err)
	}
}

// Run drains the mailbox until ctx is cancelled or Stop is called.
//
// After Stop, messages already queued are still processed and Run returns
// nil. On cancellation queued messages are dropped and Run returns
// ctx.Err(). Either way the coordinator is disposed before Run returns.
func (a *Actor) Run(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	a.ctx = ctx
	a.logger.Info("actor starting")
	defer a.terminate()

	for {
		task, ok := a.mailbox.TryDequeue()
		if ok {
			task()
			continue
		}

		select {
		case <-ctx.Done():
			a.logger.Info("actor stopping: context cancelled")
			return ctx.Err()

		case <-a.mailbox.Wait():
			if a.mailbox.Closed() && a.mailbox.Len() == 0 {
				a.logger.Info("actor stopping: stopped")
				return nil
			}
		}
	}
}

// Stop closes the mailbox. Run finishes the queued messages and returns.
func (a *Actor) Stop() {
	a.mailbox.Close()
}

// Done is closed once Run has returned.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

func (a *Actor) terminate() {
	a.coord.Dispose()
	a.mailbox.Close()
	dropped := a.mailbox.Drain()
	if len(dropped) > 0 {
		a.dropped.Inc(int64(len(dropped)))
		a.logger.Debug("dropped queued tasks", "count", len(dropped))
	}
	a.doneOnce.Do(func() { close(a.done) })
	a.logger.Info("actor stopped")
}
