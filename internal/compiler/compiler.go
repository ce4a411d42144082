package compiler

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/flowrt/internal/harness"
	"github.com/roach88/flowrt/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileFile compiles every scenario declared in one CUE file.
func CompileFile(path string) ([]*ir.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CUE file: %w", err)
	}
	return CompileSource(path, data)
}

// CompileSource compiles every scenario declared in CUE source. filename is
// used for error positions only.
func CompileSource(filename string, src []byte) ([]*ir.Scenario, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileValue(v)
}

// CompileDir loads the CUE package in dir (all of its .cue files unified)
// and compiles every scenario it declares.
func CompileDir(dir string) ([]*ir.Scenario, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileValue(v)
}

// CompileValue compiles the fields of v's top-level "scenario" struct, in
// declaration order.
func CompileValue(v cue.Value) ([]*ir.Scenario, error) {
	scenariosVal := v.LookupPath(cue.ParsePath("scenario"))
	if !scenariosVal.Exists() {
		return nil, &CompileError{
			Field:   "scenario",
			Message: "no scenarios declared",
			Pos:     v.Pos(),
		}
	}

	iter, err := scenariosVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var scenarios []*ir.Scenario
	for iter.Next() {
		s, err := CompileScenario(iter.Label(), iter.Value())
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", iter.Label(), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// CompileScenario compiles one scenario body. label is the scenario's field
// name, used unless the body sets name.
func CompileScenario(label string, v cue.Value) (*ir.Scenario, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := v.Context().CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	// Fields are read from v itself; the unified value only carries the
	// schema's optional fields on top of it.
	checked := schema.LookupPath(cue.ParsePath("#Scenario")).Unify(v)
	if err := checked.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	s := &ir.Scenario{Name: label}
	if name, ok, err := optString(v, "name"); err != nil {
		return nil, err
	} else if ok {
		s.Name = name
	}

	var err error
	if s.Description, _, err = optString(v, "description"); err != nil {
		return nil, err
	}
	if s.Manual, _, err = optBool(v, "manual"); err != nil {
		return nil, err
	}
	if s.Operators, err = parseOperators(v); err != nil {
		return nil, err
	}
	if s.Steps, err = parseSteps(v); err != nil {
		return nil, err
	}
	if s.Expect, err = parseExpectations(v); err != nil {
		return nil, err
	}

	if err := harness.ValidateScenario(s); err != nil {
		return nil, &CompileError{Field: "scenario", Message: err.Error(), Pos: v.Pos()}
	}
	return s, nil
}

func parseOperators(v cue.Value) ([]ir.OperatorSpec, error) {
	var ops []ir.OperatorSpec
	err := eachElem(v, "operators", func(elem cue.Value) error {
		var op ir.OperatorSpec
		var err error
		if op.Name, _, err = optString(elem, "name"); err != nil {
			return err
		}
		if op.Kind, _, err = optString(elem, "kind"); err != nil {
			return err
		}
		if op.Sources, err = optStrings(elem, "sources"); err != nil {
			return err
		}
		if op.Sealed, _, err = optBool(elem, "sealed"); err != nil {
			return err
		}
		if op.Items, err = optItems(elem, "items"); err != nil {
			return err
		}
		if op.Start, _, err = optInt(elem, "start"); err != nil {
			return err
		}
		if op.Count, _, err = optInt(elem, "count"); err != nil {
			return err
		}
		if op.Error, _, err = optString(elem, "error"); err != nil {
			return err
		}
		ops = append(ops, op)
		return nil
	})
	return ops, err
}

func parseSteps(v cue.Value) ([]ir.Step, error) {
	var steps []ir.Step
	err := eachElem(v, "steps", func(elem cue.Value) error {
		var step ir.Step
		var err error
		if step.Op, _, err = optString(elem, "op"); err != nil {
			return err
		}
		if step.Target, _, err = optString(elem, "target"); err != nil {
			return err
		}
		if step.Observer, _, err = optString(elem, "observer"); err != nil {
			return err
		}
		if step.Policy, _, err = optString(elem, "policy"); err != nil {
			return err
		}
		if step.Items, err = optItems(elem, "items"); err != nil {
			return err
		}
		if step.N, _, err = optInt(elem, "n"); err != nil {
			return err
		}
		if step.Unbounded, _, err = optBool(elem, "unbounded"); err != nil {
			return err
		}
		if step.Source, _, err = optString(elem, "source"); err != nil {
			return err
		}
		if step.Error, _, err = optString(elem, "error"); err != nil {
			return err
		}
		steps = append(steps, step)
		return nil
	})
	return steps, err
}

func parseExpectations(v cue.Value) ([]ir.Expectation, error) {
	var expect []ir.Expectation
	err := eachElem(v, "expect", func(elem cue.Value) error {
		var exp ir.Expectation
		var err error
		if exp.Observer, _, err = optString(elem, "observer"); err != nil {
			return err
		}
		if elem.LookupPath(cue.ParsePath("events")).Exists() {
			if exp.Events, err = optStrings(elem, "events"); err != nil {
				return err
			}
			if exp.Events == nil {
				exp.Events = []string{}
			}
		}
		if disposed, ok, err := optBool(elem, "disposed"); err != nil {
			return err
		} else if ok {
			exp.Disposed = &disposed
		}
		if exp.State, _, err = optString(elem, "state"); err != nil {
			return err
		}
		expect = append(expect, exp)
		return nil
	})
	return expect, err
}

// eachElem calls fn for every element of the list at field, if present.
func eachElem(v cue.Value, field string, fn func(elem cue.Value) error) error {
	listVal := v.LookupPath(cue.ParsePath(field))
	if !listVal.Exists() {
		return nil
	}
	iter, err := listVal.List()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func optString(v cue.Value, field string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

func optBool(v cue.Value, field string) (bool, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, false, formatCUEError(err)
	}
	return b, true, nil
}

func optInt(v cue.Value, field string) (int64, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, false, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, false, formatCUEError(err)
	}
	return n, true, nil
}

func optStrings(v cue.Value, field string) ([]string, error) {
	var out []string
	err := eachElem(v, field, func(elem cue.Value) error {
		s, err := elem.String()
		if err != nil {
			return formatCUEError(err)
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func optItems(v cue.Value, field string) ([]any, error) {
	var out []any
	err := eachElem(v, field, func(elem cue.Value) error {
		item, err := decodeItem(elem)
		if err != nil {
			return err
		}
		out = append(out, item)
		return nil
	})
	return out, err
}

// decodeItem converts a concrete CUE value into the plain Go form
// ir.FromAny accepts. Floats are rejected.
func decodeItem(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		b, err := v.Bool()
		return b, formatCUEError(err)
	case cue.IntKind:
		n, err := v.Int64()
		return n, formatCUEError(err)
	case cue.StringKind:
		s, err := v.String()
		return s, formatCUEError(err)
	case cue.ListKind:
		list := []any{}
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			item, err := decodeItem(iter.Value())
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		return list, nil
	case cue.StructKind:
		obj := map[string]any{}
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			item, err := decodeItem(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = item
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "items",
			Message: "floats are not allowed, use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "items",
			Message: fmt.Sprintf("unsupported kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
