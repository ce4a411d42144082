package trace

import "fmt"

// Kind is the protocol signal an event records.
type Kind string

const (
	KindSubscribe Kind = "subscribe"
	KindNext      Kind = "next"
	KindError     Kind = "error"
	KindComplete  Kind = "complete"
)

// IsTerminal reports whether k ends a subscription.
func (k Kind) IsTerminal() bool {
	return k == KindError || k == KindComplete
}

// Event is one signal delivered to a named observer.
type Event struct {
	Seq      int64  `json:"seq"`
	Observer string `json:"observer"`
	Kind     Kind   `json:"kind"`
	Payload  string `json:"payload,omitempty"` // canonical JSON item, or error key
}

// String renders the event the way scenario expectations spell it:
// on_subscribe(), on_next(1), on_error(flow:already-subscribed),
// on_complete().
func (e Event) String() string {
	return fmt.Sprintf("on_%s(%s)", e.Kind, e.Payload)
}
