package trace

import (
	"sync"
)

// Log is an append-only, ordered event log.
//
// Thread-safety: Log is safe for concurrent use, although a scenario run
// appends from a single coordinator.
type Log struct {
	clock *Clock

	mu     sync.Mutex
	events []Event
}

// NewLog creates an empty log with its own clock.
func NewLog() *Log {
	return &Log{clock: NewClock()}
}

// NewLogWithClock creates an empty log stamped by clock.
func NewLogWithClock(clock *Clock) *Log {
	return &Log{clock: clock}
}

// Append stamps and records one event and returns it.
func (l *Log) Append(observer string, kind Kind, payload string) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev := Event{
		Seq:      l.clock.Next(),
		Observer: observer,
		Kind:     kind,
		Payload:  payload,
	}
	l.events = append(l.events, ev)
	return ev
}

// Events returns a copy of every recorded event in seq order.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// For returns the events of one observer in seq order.
func (l *Log) For(observer string) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Event
	for _, ev := range l.events {
		if ev.Observer == observer {
			out = append(out, ev)
		}
	}
	return out
}

// Signals renders an observer's events without on_subscribe, the form used
// by scenario expectations. Returns an empty, non-nil slice if there are none.
func (l *Log) Signals(observer string) []string {
	out := []string{}
	for _, ev := range l.For(observer) {
		if ev.Kind == KindSubscribe {
			continue
		}
		out = append(out, ev.String())
	}
	return out
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
