package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Scenarios []string          `json:"scenarios,omitempty"`
	Errors    []ValidationIssue `json:"errors,omitempty"`
}

// ValidationIssue is one problem found while loading scenarios.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate scenarios without running them",
		Long: `Validate YAML and CUE scenarios without running them.

Checks syntax, the scenario schema and every name reference, and reports
all problems found rather than stopping at the first one.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadScenarios(path, LoadModeCollectAll)
	if loadResult == nil {
		code, message := loadErrorCode(loadErrors[0])
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}

	formatter.VerboseLog("Found %d scenario file(s) in %s", loadResult.FileCount, path)
	for _, s := range loadResult.Scenarios {
		formatter.VerboseLog("Validated scenario: %s (%s)", s.Name, loadResult.Sources[s.Name])
	}

	if len(loadErrors) > 0 {
		return outputValidationErrors(formatter, toIssues(loadErrors))
	}
	return outputValidateSuccess(formatter, loadResult)
}

// loadErrorCode splits err into an error code and a message.
func loadErrorCode(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

func toIssues(errs []error) []ValidationIssue {
	issues := make([]ValidationIssue, 0, len(errs))
	for _, err := range errs {
		issue := ValidationIssue{Code: ErrCodeGeneric, Message: err.Error()}
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			issue.Code = loadErr.Code
			issue.Message = loadErr.Message
			if loadErr.Pos.IsValid() {
				issue.File = loadErr.Pos.Filename()
				issue.Line = loadErr.Pos.Line()
			}
		}
		issues = append(issues, issue)
	}
	return issues
}

func outputValidateSuccess(formatter *OutputFormatter, result *LoadResult) error {
	if formatter.Format == "json" {
		names := make([]string, len(result.Scenarios))
		for i, s := range result.Scenarios {
			names[i] = s.Name
		}
		return formatter.Success(ValidationResult{Valid: true, Scenarios: names})
	}

	fmt.Fprintf(formatter.Writer, "✓ All scenarios valid (%d)\n", len(result.Scenarios))
	return nil
}

func outputValidationErrors(formatter *OutputFormatter, issues []ValidationIssue) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", issue.File, issue.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}
	return failure
}
