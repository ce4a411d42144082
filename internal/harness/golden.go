package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/flowrt/internal/ir"
	"github.com/roach88/flowrt/internal/testutil"
	"github.com/roach88/flowrt/internal/trace"
)

// GoldenDir is where RunWithGolden and AssertGolden keep golden files,
// relative to the test's package directory.
const GoldenDir = "testdata/golden"

// TraceSnapshot is the golden form of a run: canonical JSON of the scenario
// name, flow token and every trace event.
type TraceSnapshot struct {
	Scenario  string
	FlowToken string
	Trace     []trace.Event
}

// NewTraceSnapshot captures a result.
func NewTraceSnapshot(result *Result) TraceSnapshot {
	return TraceSnapshot{
		Scenario:  result.Scenario,
		FlowToken: result.FlowToken,
		Trace:     result.Trace,
	}
}

// Canonical renders the snapshot as canonical JSON. Empty payloads are
// omitted.
func (s TraceSnapshot) Canonical() ([]byte, error) {
	events := make(ir.List, len(s.Trace))
	for i, ev := range s.Trace {
		obj := ir.Object{
			"seq":      ir.Int(ev.Seq),
			"observer": ir.String(ev.Observer),
			"kind":     ir.String(ev.Kind),
		}
		if ev.Payload != "" {
			obj["payload"] = ir.String(ev.Payload)
		}
		events[i] = obj
	}

	return ir.MarshalCanonical(ir.Object{
		"scenario":   ir.String(s.Scenario),
		"flow_token": ir.String(s.FlowToken),
		"trace":      events,
	})
}

// RunWithGolden runs a scenario with the fixed default flow token and
// compares its trace against testdata/golden/<scenario name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if the scenario fails to run. A trace mismatch fails t via
// goldie; unmet expectations are left in the returned result.
func RunWithGolden(t *testing.T, s *ir.Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	opts = append([]Option{
		WithTokens(testutil.NewFixedFlowGenerator("")),
		WithLogger(testutil.DiscardLogger()),
	}, opts...)

	result, err := New(opts...).Run(context.Background(), s)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, s.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares a result's trace against GoldenDir/<name>.golden
// without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()
	return AssertGoldenIn(t, GoldenDir, name, result)
}

// AssertGoldenIn is AssertGolden with an explicit fixture directory.
func AssertGoldenIn(t *testing.T, dir, name string, result *Result) error {
	t.Helper()

	data, err := NewTraceSnapshot(result).Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
