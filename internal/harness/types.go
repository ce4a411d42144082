package harness

import "github.com/roach88/flowrt/internal/trace"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expectation held and no step failed.
	Pass bool `json:"pass"`

	Scenario  string `json:"scenario"`
	FlowToken string `json:"flow_token"`

	// Trace contains every recorded event in seq order.
	Trace []trace.Event `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(scenario, flowToken string) *Result {
	return &Result{
		Pass:      true,
		Scenario:  scenario,
		FlowToken: flowToken,
		Trace:     []trace.Event{},
		Errors:    []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}
