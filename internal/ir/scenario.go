package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Scenario is a scripted flow run: a set of named operators, a sequence of
// steps that drive them, and the events each observer must have seen.
type Scenario struct {
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Manual      bool           `yaml:"manual,omitempty" json:"manual,omitempty"` // drain only on "run" steps
	Operators   []OperatorSpec `yaml:"operators" json:"operators"`
	Steps       []Step         `yaml:"steps" json:"steps"`
	Expect      []Expectation  `yaml:"expect" json:"expect"`
}

// OperatorSpec declares one named operator instance.
type OperatorSpec struct {
	Name    string   `yaml:"name" json:"name"`
	Kind    string   `yaml:"kind" json:"kind"`
	Sources []string `yaml:"sources,omitempty" json:"sources,omitempty"` // merge
	Sealed  bool     `yaml:"sealed,omitempty" json:"sealed,omitempty"`   // merge
	Items   []any    `yaml:"items,omitempty" json:"items,omitempty"`     // just
	Start   int64    `yaml:"start,omitempty" json:"start,omitempty"`     // range
	Count   int64    `yaml:"count,omitempty" json:"count,omitempty"`     // range
	Error   string   `yaml:"error,omitempty" json:"error,omitempty"`     // fail
}

// Step is one scripted action.
type Step struct {
	Op        string `yaml:"op" json:"op"`
	Target    string `yaml:"target,omitempty" json:"target,omitempty"`
	Observer  string `yaml:"observer,omitempty" json:"observer,omitempty"`
	Policy    string `yaml:"policy,omitempty" json:"policy,omitempty"`
	Items     []any  `yaml:"items,omitempty" json:"items,omitempty"`
	N         int64  `yaml:"n,omitempty" json:"n,omitempty"`
	Unbounded bool   `yaml:"unbounded,omitempty" json:"unbounded,omitempty"`
	Source    string `yaml:"source,omitempty" json:"source,omitempty"`
	Error     string `yaml:"error,omitempty" json:"error,omitempty"`
}

// Expectation is the assertion on one observer after the last step.
// Nil fields are not checked.
type Expectation struct {
	Observer string   `yaml:"observer" json:"observer"`
	Events   []string `yaml:"events,omitempty" json:"events,omitempty"`
	Disposed *bool    `yaml:"disposed,omitempty" json:"disposed,omitempty"`
	State    string   `yaml:"state,omitempty" json:"state,omitempty"`
}

// Operator kinds.
const (
	KindUcast       = "ucast"
	KindMulticaster = "multicaster"
	KindMerge       = "merge"
	KindJust        = "just"
	KindRange       = "range"
	KindEmpty       = "empty"
	KindFail        = "fail"
)

// ValidKinds lists the operator kinds a scenario may declare.
var ValidKinds = map[string]bool{
	KindUcast:       true,
	KindMulticaster: true,
	KindMerge:       true,
	KindJust:        true,
	KindRange:       true,
	KindEmpty:       true,
	KindFail:        true,
}

// Step ops.
const (
	OpPush      = "push"
	OpClose     = "close"
	OpAbort     = "abort"
	OpSubscribe = "subscribe"
	OpRequest   = "request"
	OpDispose   = "dispose"
	OpAdd       = "add"
	OpSeal      = "seal"
	OpRun       = "run"
)

// ValidOps lists the step ops a scenario may use.
var ValidOps = map[string]bool{
	OpPush:      true,
	OpClose:     true,
	OpAbort:     true,
	OpSubscribe: true,
	OpRequest:   true,
	OpDispose:   true,
	OpAdd:       true,
	OpSeal:      true,
	OpRun:       true,
}

// ErrorSpec is the parsed form of a "domain:code[: message]" error string.
type ErrorSpec struct {
	Domain  string
	Code    string
	Message string
}

// ParseErrorSpec parses "domain:code" or "domain:code: message".
func ParseErrorSpec(s string) (ErrorSpec, error) {
	head, msg, _ := strings.Cut(s, ": ")
	domain, code, ok := strings.Cut(head, ":")
	if !ok || domain == "" || code == "" {
		return ErrorSpec{}, fmt.Errorf("error %q: want domain:code[: message]", s)
	}
	return ErrorSpec{Domain: domain, Code: code, Message: msg}, nil
}

// canonicalObject returns the scenario's behavioural content as a Value.
// Name and description are excluded.
func (s *Scenario) canonicalObject() (Object, error) {
	body := struct {
		Manual    bool           `json:"manual"`
		Operators []OperatorSpec `json:"operators"`
		Steps     []Step         `json:"steps"`
		Expect    []Expectation  `json:"expect"`
	}{s.Manual, s.Operators, s.Steps, s.Expect}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	v, err := ParseValue(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("scenario encodes as %T", v)
	}
	return stripNulls(obj), nil
}

// stripNulls drops null members so that absent and nil slices hash the same.
func stripNulls(obj Object) Object {
	out := make(Object, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case Null:
			continue
		case Object:
			out[k] = stripNulls(val)
		case List:
			list := make(List, 0, len(val))
			for _, elem := range val {
				if o, ok := elem.(Object); ok {
					list = append(list, stripNulls(o))
					continue
				}
				if _, ok := elem.(Null); ok {
					continue
				}
				list = append(list, elem)
			}
			out[k] = list
		default:
			out[k] = v
		}
	}
	return out
}
