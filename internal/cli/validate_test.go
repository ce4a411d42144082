package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	out, err := executeCommand(t, "validate", harnessScenarios)
	require.NoError(t, err)
	assert.Equal(t, "✓ All scenarios valid (11)\n", out)
}

func TestValidate_ValidJSON(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"b.yaml": bufferedYAML, "m.cue": mergeCUE})

	out, err := executeCommand(t, "validate", "--format", "json", dir)
	require.NoError(t, err)

	resp, result := decodeResponse[ValidationResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Equal(t, []string{"buffered", "merge_just"}, result.Scenarios)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"a.yaml": "name: a\n",
		"b.yaml": bufferedYAML,
		"c.yaml": "name: c\nsteps: 3\n",
	})

	out, err := executeCommand(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 2 error(s)")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "a.yaml")
	assert.Contains(t, out, "c.yaml")
}

func TestValidate_ErrorsJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", `
scenario: bad: {
	operators: [{name: "u", kind: "ucast"}]
	steps: [{op: "dispose", observer: "ghost"}]
}
`)

	out, err := executeCommand(t, "validate", "--format", "json", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp, result := decodeResponse[ValidationResult](t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidScenario, resp.Error.Code)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, `unknown observer "ghost"`)
	assert.Equal(t, path, result.Errors[0].File)
	assert.Positive(t, result.Errors[0].Line)
}

func TestValidate_NotFound(t *testing.T) {
	out, err := executeCommand(t, "validate", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}
