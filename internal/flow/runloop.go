package flow

import (
	"context"

	"github.com/roach88/flowrt/internal/mailbox"
)

// RunLoop is a standalone coordinator that owns its action queue.
//
// It is pumped either explicitly, by calling Drain or RunOnce from the
// goroutine that plays the coordinator (test harnesses, scenario runs), or by
// a dedicated goroutine calling Run. The pumping methods must never be called
// concurrently with each other. Schedule is safe from any goroutine.
type RunLoop struct {
	core
	queue *mailbox.Queue[*action]
}

// NewRunLoop creates a run loop coordinator.
func NewRunLoop(opts ...Option) *RunLoop {
	l := &RunLoop{queue: mailbox.New[*action]()}
	l.core = newCore(buildOptions(opts), l.enqueue)
	return l
}

func (l *RunLoop) enqueue(a *action) bool {
	if !l.queue.Enqueue(a) {
		return false
	}
	l.metrics.pending.Update(float64(l.queue.Len()))
	return true
}

// RunOnce runs the next pending action, if any. Reports whether an action
// was dequeued.
func (l *RunLoop) RunOnce() bool {
	a, ok := l.queue.TryDequeue()
	if !ok {
		return false
	}
	l.execute(a)
	l.metrics.pending.Update(float64(l.queue.Len()))
	return true
}

// Drain runs pending actions until the queue is empty, including actions
// scheduled by the actions it runs. Returns the number of actions dequeued.
func (l *RunLoop) Drain() int {
	n := 0
	for l.RunOnce() {
		n++
	}
	return n
}

// Pending returns the number of queued actions.
func (l *RunLoop) Pending() int {
	return l.queue.Len()
}

// Run pumps the loop until ctx is cancelled or the loop is disposed.
// Must be called from exactly one goroutine.
func (l *RunLoop) Run(ctx context.Context) error {
	l.logger.Debug("run loop starting")

	for {
		if l.RunOnce() {
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("run loop stopping: context cancelled")
			l.Dispose()
			return ctx.Err()

		case <-l.queue.Wait():
			if l.queue.Closed() && l.queue.Len() == 0 {
				l.logger.Debug("run loop stopping: disposed")
				return nil
			}
		}
	}
}

// Dispose tears the loop down. Queued actions are dropped without running and
// watched subscriptions are disposed.
func (l *RunLoop) Dispose() {
	if !l.teardown() {
		return
	}
	l.queue.Close()
	dropped := l.queue.Drain()
	for _, a := range dropped {
		a.Dispose()
	}
	l.metrics.dropped.Inc(int64(len(dropped)))
	l.metrics.pending.Update(0)
	if len(dropped) > 0 {
		l.logger.Debug("dropped pending actions", "count", len(dropped))
	}
}
