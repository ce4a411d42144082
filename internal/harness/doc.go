// Package harness runs scripted scenarios against the flow runtime.
//
// A scenario declares named operators, drives them with a sequence of steps
// and states what each observer must have seen. Every run happens on a fresh
// flow.RunLoop that the harness pumps itself, so the interleaving of events
// is fully determined by the step order.
//
// # Scenario Format
//
//	name: ucast-buffered
//	description: items pushed before subscribe are delivered in order
//	operators:
//	  - {name: u, kind: ucast}
//	steps:
//	  - {op: push, target: u, items: [1, 2]}
//	  - {op: subscribe, target: u, observer: o1}
//	  - {op: close, target: u}
//	expect:
//	  - observer: o1
//	    events: ["on_next(1)", "on_next(2)", "on_complete()"]
//
// Operator kinds are ucast, multicaster, merge, just, range, empty and fail.
// Step ops are push, close, abort, subscribe, request, dispose, add, seal and
// run. The loop is drained after every step unless the scenario sets
// manual: true, in which case only run steps drain it.
//
// # Observers
//
// Each subscribe step attaches a flow.Probe wrapped in a trace.Recorder. The
// probe policy decides how much it requests on subscribe: auto requests
// everything, passive requests nothing (drive it with request steps) and
// cancel disposes itself after the first item.
//
// # Deterministic Testing
//
// Event seqs come from a logical clock and the flow token from a
// trace.TokenGenerator, so a scenario run with a fixed token produces a
// byte-identical trace. RunWithGolden compares that trace against
// testdata/golden/<name>.golden. To regenerate golden files, run:
//
//	go test ./internal/harness -update
package harness
