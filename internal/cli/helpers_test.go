package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const bufferedYAML = `name: buffered
operators:
  - {name: u, kind: ucast}
steps:
  - {op: push, target: u, items: [1, 2]}
  - {op: close, target: u}
  - {op: subscribe, target: u, observer: o1}
expect:
  - observer: o1
    events: ["on_next(1)", "on_next(2)", "on_complete()"]
    state: completed
`

const failingYAML = `name: failing
operators:
  - {name: u, kind: ucast}
steps:
  - {op: push, target: u, items: [1]}
  - {op: subscribe, target: u, observer: o1}
expect:
  - observer: o1
    events: ["on_next(2)"]
`

const mergeCUE = `package scenarios

scenario: merge_just: {
	operators: [
		{name: "a", kind: "just", items: [1, 2]},
		{name: "b", kind: "empty"},
		{name: "m", kind: "merge", sources: ["a", "b"], sealed: true},
	]
	steps: [{op: "subscribe", target: "m", observer: "o1"}]
	expect: [{observer: "o1", events: ["on_next(1)", "on_next(2)", "on_complete()"]}]
}
`

const harnessScenarios = "../harness/testdata/scenarios"
const harnessGoldens = "../harness/testdata/golden"

// executeCommand runs the root command with args and returns its stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// scenarioDir writes files (name -> content) into a fresh temp dir.
func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		writeFile(t, dir, name, content)
	}
	return dir
}

// decodeResponse decodes a CLIResponse whose data is of type T.
func decodeResponse[T any](t *testing.T, out string) (CLIResponse, T) {
	t.Helper()

	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)

	var data T
	if len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, &data), string(raw.Data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}, data
}
