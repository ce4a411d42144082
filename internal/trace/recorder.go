package trace

import (
	"fmt"

	"github.com/roach88/flowrt/internal/flow"
)

// Recorder decorates an observer: every event is appended to a Log under
// the recorder's name, then forwarded.
type Recorder[T any] struct {
	name   string
	log    *Log
	inner  flow.Observer[T]
	format func(T) string
}

// NewRecorder wraps inner. format renders items for the trace; nil means
// fmt's %v.
func NewRecorder[T any](log *Log, name string, inner flow.Observer[T], format func(T) string) *Recorder[T] {
	if format == nil {
		format = func(v T) string { return fmt.Sprintf("%v", v) }
	}
	return &Recorder[T]{name: name, log: log, inner: inner, format: format}
}

// Name returns the observer name used in the log.
func (r *Recorder[T]) Name() string {
	return r.name
}

func (r *Recorder[T]) OnSubscribe(sub flow.Subscription) {
	r.log.Append(r.name, KindSubscribe, "")
	r.inner.OnSubscribe(sub)
}

func (r *Recorder[T]) OnNext(item T) {
	r.log.Append(r.name, KindNext, r.format(item))
	r.inner.OnNext(item)
}

func (r *Recorder[T]) OnError(err error) {
	r.log.Append(r.name, KindError, flow.ErrorKey(err))
	r.inner.OnError(err)
}

func (r *Recorder[T]) OnComplete() {
	r.log.Append(r.name, KindComplete, "")
	r.inner.OnComplete()
}
