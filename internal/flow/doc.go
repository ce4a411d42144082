// Package flow implements the flowrt reactive-stream engine.
//
// An Observable produces a lazy sequence of values. An Observer consumes it
// through exactly one Subscription, which carries demand (how many items the
// observer is willing to receive) upstream and cancellation in either
// direction. Items are never delivered beyond outstanding demand.
//
// ARCHITECTURE:
//
// Coordinators:
// Every operator is bound to a Coordinator at construction. A coordinator is a
// single logical thread: actions scheduled on it run one at a time in FIFO
// order. Two backends exist behind the same contract:
//   - RunLoop: owns its mailbox and is pumped explicitly (Drain, RunOnce) or
//     by a dedicated goroutine (Run).
//   - Hosted: forwards every action to a Host such as an actor mailbox, so flow
//     callbacks interleave with the host's own messages.
//
// Operators:
//   - Ucast: single-subscriber buffered source.
//   - Multicaster: hot broadcast to currently attached observers, no replay.
//   - Merge: N-ary fan-in over a dynamic set of upstreams, fail-fast.
//   - Just, Range, Empty, Fail: cold sources that emit on demand.
//
// THREADING:
//
// Operator state is owned by its coordinator. Push, Close, Subscribe and the
// Subscription methods must run on that coordinator; other goroutines marshal
// calls through Coordinator.Schedule. No locks are taken on the delivery path.
//
// INVARIANTS:
//   - Demand only grows until the subscription is disposed.
//   - A terminal event (OnError or OnComplete) is delivered at most once and is
//     the last event an observer sees.
//   - Disposing a subscription from inside OnNext stops delivery before the
//     next item is considered.
//   - Request and Dispose on a disposed subscription are silent no-ops.
package flow
