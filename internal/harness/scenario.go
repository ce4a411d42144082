package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flowrt/internal/flow"
	"github.com/roach88/flowrt/internal/ir"
)

// validStates lists the probe states an expectation may name.
var validStates = map[string]bool{
	flow.ProbeIdle.String():       true,
	flow.ProbeSubscribed.String(): true,
	flow.ProbeCompleted.String():  true,
	flow.ProbeAborted.String():    true,
	flow.ProbeDisposed.String():   true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*ir.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*ir.Scenario, error) {
	var s ir.Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ValidateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by file
// name. Stops at the first file that fails to load.
func LoadScenarios(dir string) ([]*ir.Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)

	scenarios := make([]*ir.Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// ValidateScenario checks that a scenario is well formed: every name it
// refers to is declared before use and every field a kind or op needs is set.
func ValidateScenario(s *ir.Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Operators) == 0 {
		return fmt.Errorf("operators list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	kinds := make(map[string]string, len(s.Operators))
	for i, op := range s.Operators {
		if err := validateOperator(i, op, kinds); err != nil {
			return err
		}
		kinds[op.Name] = op.Kind
	}

	observers := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(i, step, kinds, observers); err != nil {
			return err
		}
		if step.Op == ir.OpSubscribe {
			observers[step.Observer] = true
		}
	}

	for i, exp := range s.Expect {
		if !observers[exp.Observer] {
			return fmt.Errorf("expect[%d]: unknown observer %q", i, exp.Observer)
		}
		if exp.State != "" && !validStates[exp.State] {
			return fmt.Errorf("expect[%d]: unknown state %q", i, exp.State)
		}
	}

	return nil
}

// validateOperator checks one operator against the operators declared before
// it.
func validateOperator(index int, op ir.OperatorSpec, kinds map[string]string) error {
	if op.Name == "" {
		return fmt.Errorf("operators[%d]: name is required", index)
	}
	if _, dup := kinds[op.Name]; dup {
		return fmt.Errorf("operators[%d]: duplicate name %q", index, op.Name)
	}
	if !ir.ValidKinds[op.Kind] {
		return fmt.Errorf("operators[%d]: unknown kind %q", index, op.Kind)
	}

	switch op.Kind {
	case ir.KindMerge:
		for _, src := range op.Sources {
			if _, ok := kinds[src]; !ok {
				return fmt.Errorf("operators[%d]: source %q must be declared before %q", index, src, op.Name)
			}
		}
	case ir.KindJust:
		if _, err := ir.FromAnyList(op.Items); err != nil {
			return fmt.Errorf("operators[%d]: %w", index, err)
		}
	case ir.KindRange:
		if op.Count < 0 {
			return fmt.Errorf("operators[%d]: count must be non-negative", index)
		}
	case ir.KindFail:
		if _, err := ir.ParseErrorSpec(op.Error); err != nil {
			return fmt.Errorf("operators[%d]: %w", index, err)
		}
	}
	return nil
}

// validateStep checks one step against the declared operators and the
// observers subscribed by earlier steps.
func validateStep(index int, step ir.Step, kinds map[string]string, observers map[string]bool) error {
	if !ir.ValidOps[step.Op] {
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}

	switch step.Op {
	case ir.OpRun:
		return nil
	case ir.OpRequest:
		if !observers[step.Observer] {
			return fmt.Errorf("steps[%d]: unknown observer %q", index, step.Observer)
		}
		if !step.Unbounded && step.N <= 0 {
			return fmt.Errorf("steps[%d]: request needs n > 0 or unbounded", index)
		}
		return nil
	case ir.OpDispose:
		if !observers[step.Observer] {
			return fmt.Errorf("steps[%d]: unknown observer %q", index, step.Observer)
		}
		return nil
	}

	kind, ok := kinds[step.Target]
	if !ok {
		return fmt.Errorf("steps[%d]: unknown target %q", index, step.Target)
	}

	switch step.Op {
	case ir.OpPush:
		if !isHot(kind) {
			return fmt.Errorf("steps[%d]: push needs a ucast or multicaster, %q is %s", index, step.Target, kind)
		}
		if len(step.Items) == 0 {
			return fmt.Errorf("steps[%d]: items list is required for push", index)
		}
		if _, err := ir.FromAnyList(step.Items); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	case ir.OpClose:
		if !isHot(kind) {
			return fmt.Errorf("steps[%d]: close needs a ucast or multicaster, %q is %s", index, step.Target, kind)
		}
	case ir.OpAbort:
		if !isHot(kind) {
			return fmt.Errorf("steps[%d]: abort needs a ucast or multicaster, %q is %s", index, step.Target, kind)
		}
		if _, err := ir.ParseErrorSpec(step.Error); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	case ir.OpSubscribe:
		if step.Observer == "" {
			return fmt.Errorf("steps[%d]: observer is required for subscribe", index)
		}
		if observers[step.Observer] {
			return fmt.Errorf("steps[%d]: observer %q already subscribed", index, step.Observer)
		}
		if _, ok := flow.ParseProbePolicy(step.Policy); !ok {
			return fmt.Errorf("steps[%d]: unknown policy %q", index, step.Policy)
		}
	case ir.OpAdd:
		if kind != ir.KindMerge {
			return fmt.Errorf("steps[%d]: add needs a merge, %q is %s", index, step.Target, kind)
		}
		if _, ok := kinds[step.Source]; !ok {
			return fmt.Errorf("steps[%d]: unknown source %q", index, step.Source)
		}
	case ir.OpSeal:
		if kind != ir.KindMerge {
			return fmt.Errorf("steps[%d]: seal needs a merge, %q is %s", index, step.Target, kind)
		}
	}
	return nil
}

func isHot(kind string) bool {
	return kind == ir.KindUcast || kind == ir.KindMulticaster
}
