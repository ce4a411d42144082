package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/uber-go/tally/v4"

	"github.com/roach88/flowrt/internal/actor"
	"github.com/roach88/flowrt/internal/flow"
)

// ErrClosed is returned when the hub or the connection no longer accepts
// work.
var ErrClosed = errors.New("hub: closed")

// DefaultWindow is the number of messages a connection may hold unread.
const DefaultWindow = 16

// Message is one relayed payload.
type Message struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	Payload string    `json:"payload"`
	SentAt  time.Time `json:"sent_at"`
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger for the hub and its actor.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithMetrics reports hub and actor metrics to scope.
func WithMetrics(scope tally.Scope) Option {
	return func(h *Hub) {
		h.scope = scope
	}
}

// WithWindow sets the per-connection receive window. Values below one are
// ignored.
func WithWindow(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.window = n
		}
	}
}

// Hub owns the relay actor. Connect, Shutdown and the Conn methods are safe
// from any goroutine.
type Hub struct {
	logger *slog.Logger
	scope  tally.Scope
	window int

	actor *actor.Actor
	coord flow.Coordinator

	// Owned by the actor.
	merge *flow.Merge[Message]
	out   *flow.Multicaster[Message]
	conns map[string]*Conn

	opened    tally.Counter
	closed    tally.Counter
	relayed   tally.Counter
	connected tally.Gauge
}

// New creates a hub. Call Run to start relaying.
func New(opts ...Option) *Hub {
	h := &Hub{
		logger: slog.Default(),
		scope:  tally.NoopScope,
		window: DefaultWindow,
		conns:  make(map[string]*Conn),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.opened = h.scope.Counter("connections_opened")
	h.closed = h.scope.Counter("connections_closed")
	h.relayed = h.scope.Counter("messages_relayed")
	h.connected = h.scope.Gauge("connections")

	h.actor = actor.New("hub", actor.WithLogger(h.logger), actor.WithMetrics(h.scope))
	h.coord = h.actor.Coordinator()
	h.merge = flow.NewMerge[Message](h.coord)
	h.out = flow.NewMulticaster[Message](h.coord)

	h.coord.Schedule(h.start)
	return h
}

// start wires the merged inputs into the multicaster.
func (h *Hub) start() {
	h.merge.Subscribe(flow.Callbacks[Message]{
		Subscribe: func(sub flow.Subscription) { sub.Request(flow.Unbounded) },
		Next: func(msg Message) {
			h.relayed.Inc(1)
			h.out.Push(msg)
		},
		Error: func(err error) {
			h.logger.Error("relay failed", "error", err)
			h.out.Abort(err)
			h.actor.Stop()
		},
		Complete: func() {
			h.logger.Info("relay finished")
			h.out.Close()
			h.actor.Stop()
		},
	})
}

// Run relays messages until ctx is cancelled or the hub finishes after
// Shutdown.
func (h *Hub) Run(ctx context.Context) error {
	return h.actor.Run(ctx)
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.actor.Done()
}

// Connect registers a new connection.
func (h *Hub) Connect(ctx context.Context) (*Conn, error) {
	p := actor.Ask(h.coord, h.coord, h.connect)

	type reply struct {
		conn *Conn
		err  error
	}
	replies := make(chan reply, 1)
	p.Then(
		func(c *Conn) { replies <- reply{conn: c} },
		func(err error) { replies <- reply{err: err} },
	)

	select {
	case r := <-replies:
		if errors.Is(r.err, actor.ErrStopped) {
			return nil, ErrClosed
		}
		return r.conn, r.err
	case <-h.actor.Done():
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// connect runs on the actor.
func (h *Hub) connect() (*Conn, error) {
	if h.merge.Sealed() {
		return nil, ErrClosed
	}

	c := &Conn{
		id:    uuid.Must(uuid.NewV7()).String(),
		hub:   h,
		in:    flow.NewUcast[Message](h.coord),
		inbox: make(chan Message, h.window),
	}
	h.merge.Add(c.in)
	c.out = h.out.Subscribe(flow.Callbacks[Message]{
		Subscribe: func(sub flow.Subscription) { sub.Request(h.window) },
		Next:      c.deliver,
		Error:     func(error) { c.finish() },
		Complete:  c.finish,
	})

	h.conns[c.id] = c
	h.opened.Inc(1)
	h.connected.Update(float64(len(h.conns)))
	h.logger.Debug("connection opened", "conn", c.id)
	return c, nil
}

// Shutdown stops accepting connections and closes every connection's input.
// Messages already sent are still relayed, then every connection's Receive
// returns ErrClosed and Run returns.
func (h *Hub) Shutdown() {
	h.coord.Schedule(func() {
		h.logger.Info("hub shutting down", "connections", len(h.conns))
		h.merge.Seal()
		for _, c := range h.conns {
			c.in.Close()
		}
	})
}

// Conn is one connection to the hub.
type Conn struct {
	id  string
	hub *Hub

	closing atomic.Bool

	// Owned by the actor.
	in       *flow.Ucast[Message]
	out      flow.Subscription
	finished bool

	// inbox never holds more than the window. Closed by the actor.
	inbox chan Message
}

// ID returns the connection id.
func (c *Conn) ID() string {
	return c.id
}

// Send relays payload to every other connection.
func (c *Conn) Send(payload string) error {
	if c.closing.Load() {
		return ErrClosed
	}
	msg := Message{
		ID:      uuid.Must(uuid.NewV7()).String(),
		From:    c.id,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	}
	if c.hub.coord.Schedule(func() { c.in.Push(msg) }).Disposed() {
		return ErrClosed
	}
	return nil
}

// Receive returns the next message from another connection. Returns
// ErrClosed once the connection or the hub is closed and the buffered
// messages are consumed.
func (c *Conn) Receive(ctx context.Context) (Message, error) {
	select {
	case msg, ok := <-c.inbox:
		return c.received(msg, ok)
	case <-c.hub.actor.Done():
		// The actor may have stopped without closing the inbox.
		select {
		case msg, ok := <-c.inbox:
			return c.received(msg, ok)
		default:
			return Message{}, ErrClosed
		}
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (c *Conn) received(msg Message, ok bool) (Message, error) {
	if !ok {
		return Message{}, ErrClosed
	}
	c.hub.coord.Schedule(func() {
		if c.out != nil {
			c.out.Request(1)
		}
	})
	return msg, nil
}

// Close stops the connection. Its messages already sent are still relayed.
func (c *Conn) Close() error {
	if !c.closing.CompareAndSwap(false, true) {
		return nil
	}
	if c.hub.coord.Schedule(func() {
		c.in.Close()
		c.finish()
	}).Disposed() {
		return ErrClosed
	}
	return nil
}

// deliver runs on the actor.
func (c *Conn) deliver(msg Message) {
	if msg.From == c.id {
		// Own message: hand the demand straight back.
		c.out.Request(1)
		return
	}
	select {
	case c.inbox <- msg:
	default:
		c.hub.logger.Warn("receive window overflow", "conn", c.id)
	}
}

// finish runs on the actor.
func (c *Conn) finish() {
	if c.finished {
		return
	}
	c.finished = true
	if c.out != nil {
		c.out.Dispose()
	}
	close(c.inbox)

	h := c.hub
	delete(h.conns, c.id)
	h.closed.Inc(1)
	h.connected.Update(float64(len(h.conns)))
	h.logger.Debug("connection closed", "conn", c.id)
}
