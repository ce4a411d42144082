package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowrt/internal/ir"
)

const bufferedSource = `
scenario: ucast_buffered: {
	description: "items pushed before subscribe are delivered in order"
	operators: [{name: "u", kind: "ucast"}]
	steps: [
		{op: "push", target: "u", items: [1, 2]},
		{op: "subscribe", target: "u", observer: "o1", policy: "passive"},
		{op: "request", observer: "o1", n: 2},
		{op: "close", target: "u"},
	]
	expect: [{
		observer: "o1"
		events: ["on_next(1)", "on_next(2)", "on_complete()"]
		disposed: true
		state:    "completed"
	}]
}
`

func TestCompileSource_Basic(t *testing.T) {
	scenarios, err := CompileSource("buffered.cue", []byte(bufferedSource))
	require.NoError(t, err)
	require.Len(t, scenarios, 1)

	s := scenarios[0]
	assert.Equal(t, "ucast_buffered", s.Name)
	assert.Equal(t, "items pushed before subscribe are delivered in order", s.Description)
	assert.False(t, s.Manual)

	require.Len(t, s.Operators, 1)
	assert.Equal(t, ir.OperatorSpec{Name: "u", Kind: ir.KindUcast}, s.Operators[0])

	require.Len(t, s.Steps, 4)
	assert.Equal(t, ir.Step{Op: ir.OpPush, Target: "u", Items: []any{int64(1), int64(2)}}, s.Steps[0])
	assert.Equal(t, ir.Step{Op: ir.OpSubscribe, Target: "u", Observer: "o1", Policy: "passive"}, s.Steps[1])
	assert.Equal(t, ir.Step{Op: ir.OpRequest, Observer: "o1", N: 2}, s.Steps[2])

	require.Len(t, s.Expect, 1)
	exp := s.Expect[0]
	assert.Equal(t, "o1", exp.Observer)
	assert.Equal(t, []string{"on_next(1)", "on_next(2)", "on_complete()"}, exp.Events)
	require.NotNil(t, exp.Disposed)
	assert.True(t, *exp.Disposed)
	assert.Equal(t, "completed", exp.State)
}

func TestCompileSource_HashMatchesYAMLForm(t *testing.T) {
	scenarios, err := CompileSource("buffered.cue", []byte(bufferedSource))
	require.NoError(t, err)

	disposed := true
	yamlForm := &ir.Scenario{
		Name:      "other-name",
		Operators: []ir.OperatorSpec{{Name: "u", Kind: ir.KindUcast}},
		Steps: []ir.Step{
			{Op: ir.OpPush, Target: "u", Items: []any{1, 2}},
			{Op: ir.OpSubscribe, Target: "u", Observer: "o1", Policy: "passive"},
			{Op: ir.OpRequest, Observer: "o1", N: 2},
			{Op: ir.OpClose, Target: "u"},
		},
		Expect: []ir.Expectation{{
			Observer: "o1",
			Events:   []string{"on_next(1)", "on_next(2)", "on_complete()"},
			Disposed: &disposed,
			State:    "completed",
		}},
	}

	assert.Equal(t, ir.MustScenarioHash(yamlForm), ir.MustScenarioHash(scenarios[0]))
}

func TestCompileSource_ExplicitNameAndOrder(t *testing.T) {
	src := `
scenario: {
	second: {
		name: "merge-late"
		manual: true
		operators: [
			{name: "a", kind: "just", items: ["x", true, null, [1], {k: 2}]},
			{name: "m", kind: "merge", sources: ["a"], sealed: true},
			{name: "r", kind: "range", start: 5, count: 2},
			{name: "f", kind: "fail", error: "io:broken"},
		]
		steps: [{op: "subscribe", target: "m", observer: "o1"}, {op: "run"}]
	}
	first: {
		operators: [{name: "e", kind: "empty"}]
		steps: [{op: "subscribe", target: "e", observer: "o1"}]
		expect: [{observer: "o1", events: []}]
	}
}
`
	scenarios, err := CompileSource("order.cue", []byte(src))
	require.NoError(t, err)
	require.Len(t, scenarios, 2)

	s := scenarios[0]
	assert.Equal(t, "merge-late", s.Name)
	assert.True(t, s.Manual)
	assert.Equal(t, []any{"x", true, nil, []any{int64(1)}, map[string]any{"k": int64(2)}}, s.Operators[0].Items)
	assert.Equal(t, []string{"a"}, s.Operators[1].Sources)
	assert.True(t, s.Operators[1].Sealed)
	assert.Equal(t, int64(5), s.Operators[2].Start)
	assert.Equal(t, int64(2), s.Operators[2].Count)
	assert.Equal(t, "io:broken", s.Operators[3].Error)

	assert.Equal(t, "first", scenarios[1].Name)
	assert.NotNil(t, scenarios[1].Expect[0].Events)
	assert.Empty(t, scenarios[1].Expect[0].Events)
}

func TestCompileSource_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "no scenarios",
			src:     `other: 1`,
			wantErr: "no scenarios declared",
		},
		{
			name:    "syntax error",
			src:     `scenario: {`,
			wantErr: "syntax.cue",
		},
		{
			name: "unknown field",
			src: `scenario: s: {
				operators: [{name: "u", kind: "ucast", colour: "red"}]
				steps: [{op: "close", target: "u"}]
			}`,
			wantErr: "colour",
		},
		{
			name: "unknown kind",
			src: `scenario: s: {
				operators: [{name: "u", kind: "zip"}]
				steps: [{op: "close", target: "u"}]
			}`,
			wantErr: "scenario s",
		},
		{
			name: "float item",
			src: `scenario: s: {
				operators: [{name: "u", kind: "ucast"}]
				steps: [{op: "push", target: "u", items: [1.5]}]
			}`,
			wantErr: "floats are not allowed",
		},
		{
			name: "zero request",
			src: `scenario: s: {
				operators: [{name: "u", kind: "ucast"}]
				steps: [{op: "subscribe", target: "u", observer: "o"}, {op: "request", observer: "o", n: 0}]
			}`,
			wantErr: "scenario s",
		},
		{
			name: "undeclared target",
			src: `scenario: s: {
				operators: [{name: "u", kind: "ucast"}]
				steps: [{op: "close", target: "v"}]
			}`,
			wantErr: `unknown target "v"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filename := "input.cue"
			if tt.name == "syntax error" {
				filename = "syntax.cue"
			}
			_, err := CompileSource(filename, []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompileScenario_CompileErrorCarriesPosition(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		s: {
			operators: [{name: "u", kind: "ucast"}]
			steps: [{op: "close", target: "nope"}]
		}
	`, cue.Filename("pos.cue"))
	require.NoError(t, v.Err())

	_, err := CompileScenario("s", v.LookupPath(cue.ParsePath("s")))
	require.Error(t, err)

	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, "scenario", compileErr.Field)
	assert.True(t, compileErr.Pos.IsValid())
	assert.Contains(t, compileErr.Error(), "pos.cue:")
}

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buffered.cue")
	require.NoError(t, os.WriteFile(path, []byte(bufferedSource), 0644))

	scenarios, err := CompileFile(path)
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "ucast_buffered", scenarios[0].Name)
}

func TestCompileFile_NotFound(t *testing.T) {
	_, err := CompileFile(filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read CUE file")
}

func TestCompileDir_UnifiesPackageFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), []byte(`
package test

scenario: one: {
	operators: [{name: "u", kind: "ucast"}]
	steps: [{op: "close", target: "u"}]
}
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cue"), []byte(`
package test

scenario: one: description: "split across files"
`), 0644))

	scenarios, err := CompileDir(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "one", scenarios[0].Name)
	assert.Equal(t, "split across files", scenarios[0].Description)
}

func TestCompileValue_Repeatable(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(bufferedSource)
	require.NoError(t, v.Err())

	first, err := CompileValue(v)
	require.NoError(t, err)
	second, err := CompileValue(v)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
