package flow

// Observer consumes the events of one subscription.
//
// OnSubscribe is called once when a subscribe attempt is accepted, before any
// other event. When a subscribe attempt is rejected or the source has already
// finished, the observer receives only the terminal event.
//
// After OnError or OnComplete no further events are delivered.
type Observer[T any] interface {
	OnSubscribe(sub Subscription)
	OnNext(item T)
	OnError(err error)
	OnComplete()
}

// Callbacks adapts plain functions to the Observer interface. Nil fields are
// skipped.
type Callbacks[T any] struct {
	Subscribe func(sub Subscription)
	Next      func(item T)
	Error     func(err error)
	Complete  func()
}

func (c Callbacks[T]) OnSubscribe(sub Subscription) {
	if c.Subscribe != nil {
		c.Subscribe(sub)
	}
}

func (c Callbacks[T]) OnNext(item T) {
	if c.Next != nil {
		c.Next(item)
	}
}

func (c Callbacks[T]) OnError(err error) {
	if c.Error != nil {
		c.Error(err)
	}
}

func (c Callbacks[T]) OnComplete() {
	if c.Complete != nil {
		c.Complete()
	}
}

// ForEach subscribes fn to src with unbounded demand. onDone, if given, runs
// once with the terminal error (nil on completion).
func ForEach[T any](src Observable[T], fn func(T), onDone ...func(error)) Subscription {
	done := func(err error) {
		for _, f := range onDone {
			f(err)
		}
	}
	return src.Subscribe(Callbacks[T]{
		Subscribe: func(sub Subscription) { sub.Request(Unbounded) },
		Next:      fn,
		Error:     done,
		Complete:  func() { done(nil) },
	})
}
