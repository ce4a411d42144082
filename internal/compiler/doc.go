// Package compiler turns scenarios written in CUE into ir.Scenario values.
//
// A CUE file declares scenarios under a top-level "scenario" struct; the
// field label is the scenario name unless the body sets name explicitly:
//
//	scenario: ucast_buffered: {
//		description: "items pushed before subscribe are delivered in order"
//		operators: [{name: "u", kind: "ucast"}]
//		steps: [
//			{op: "push", target: "u", items: [1, 2]},
//			{op: "subscribe", target: "u", observer: "o1"},
//		]
//		expect: [{observer: "o1", events: ["on_next(1)", "on_next(2)"]}]
//	}
//
// Every scenario is unified with the embedded #Scenario schema before it is
// read, so unknown fields and ill-typed values are reported with their CUE
// source position. Compiled scenarios are then checked with
// harness.ValidateScenario, exactly like YAML ones.
package compiler
