package flow

// Host is a serial task queue a coordinator can delegate to, typically an
// actor mailbox. Post must run tasks one at a time in FIFO order and return
// false once the host no longer accepts work.
type Host interface {
	Post(task func()) bool
}

// Hosted is a coordinator layered onto a Host. Every flow action becomes one
// host task, so flow callbacks interleave with the host's own work while
// keeping the same ordering guarantees as a RunLoop.
type Hosted struct {
	core
}

// NewHosted creates a coordinator that runs its actions on host.
func NewHosted(host Host, opts ...Option) *Hosted {
	h := &Hosted{}
	h.core = newCore(buildOptions(opts), func(a *action) bool {
		return host.Post(func() { h.execute(a) })
	})
	return h
}

// Dispose tears the coordinator down. Actions already handed to the host are
// skipped when the host gets to them.
func (h *Hosted) Dispose() {
	h.teardown()
}
