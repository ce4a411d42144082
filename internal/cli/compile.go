package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/flowrt/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledScenario is one scenario in compile output, keyed by its content
// hash.
type CompiledScenario struct {
	Name     string       `json:"name"`
	Hash     string       `json:"hash"`
	Source   string       `json:"source"`
	Scenario *ir.Scenario `json:"scenario"`
}

// CompilationResult holds every compiled scenario.
type CompilationResult struct {
	EngineVersion string             `json:"engine_version"`
	IRVersion     string             `json:"ir_version"`
	Scenarios     []CompiledScenario `json:"scenarios"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <path>",
		Short: "Compile YAML and CUE scenarios to JSON",
		Long: `Compile YAML and CUE scenarios into one JSON document.

Each scenario is listed with its content hash, which identifies the scenario
independently of its name, description and source format.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadScenarios(path, LoadModeCollectAll)
	if loadResult == nil {
		code, message := loadErrorCode(loadErrors[0])
		return outputCompileError(formatter, code, message)
	}

	formatter.VerboseLog("Found %d scenario file(s) in %s", loadResult.FileCount, path)

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result := &CompilationResult{
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	for _, s := range loadResult.Scenarios {
		formatter.VerboseLog("Compiling scenario: %s", s.Name)
		hash, err := ir.ScenarioHash(s)
		if err != nil {
			return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("hashing scenario %s: %v", s.Name, err))
		}
		result.Scenarios = append(result.Scenarios, CompiledScenario{
			Name:     s.Name,
			Hash:     hash,
			Source:   loadResult.Sources[s.Name],
			Scenario: s,
		})
	}

	if opts.Output != "" {
		if err := writeCompiled(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d scenario(s)\n\n", len(result.Scenarios))
	for _, cs := range result.Scenarios {
		fmt.Fprintf(formatter.Writer, "  %s: %d operator(s), %d step(s), %s\n",
			cs.Name, len(cs.Scenario.Operators), len(cs.Scenario.Steps), cs.Hash)
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote compiled scenarios to %s\n", outputFile)
	}
	return nil
}

func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	issues := toIssues(errs)
	failure := NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   issues,
			Error:  &CLIError{Code: issues[0].Code, Message: issues[0].Message},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", issue.File, issue.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}
	return failure
}

// writeCompiled writes the result as indented JSON. Canonical JSON without
// indentation is used only for hashing.
func writeCompiled(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling scenarios: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
