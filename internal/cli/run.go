package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/flowrt/internal/harness"
	"github.com/roach88/flowrt/internal/store"
	"github.com/roach88/flowrt/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Filter   string

	// Tokens overrides the flow token generator (for testing).
	// If nil, defaults to trace.UUIDv7Generator.
	Tokens trace.TokenGenerator
}

// RunSummary is the outcome of one persisted run.
type RunSummary struct {
	Scenario  string   `json:"scenario"`
	FlowToken string   `json:"flow_token"`
	Pass      bool     `json:"pass"`
	Events    int      `json:"events"`
	Errors    []string `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <path>",
		Short: "Run scenarios and record their traces",
		Long: `Run scenarios and record every run and its trace in a SQLite database.

Each run gets a fresh flow token. Recorded runs can be inspected with
"flowrt trace" and checked for determinism with "flowrt replay".

Example:
  flowrt run --db ./flowrt.db ./scenarios
  flowrt run --db /tmp/runs.db ./scenarios/merge-fail-fast.yaml --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by name glob pattern")

	return cmd
}

func runScenarios(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	loadResult, loadErrors := LoadScenarios(path, LoadModeFailFast)
	if len(loadErrors) > 0 {
		code, message := loadErrorCode(loadErrors[0])
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}
	scenarios, err := filterScenarios(loadResult.Scenarios, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to filter scenarios", err)
	}
	logger.Info("scenarios loaded", "path", path, "count", len(scenarios))

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens := opts.Tokens
	if tokens == nil {
		tokens = trace.UUIDv7Generator{}
	}
	h := harness.New(
		harness.WithStore(st),
		harness.WithTokens(tokens),
		harness.WithLogger(logger),
	)

	summaries := make([]RunSummary, 0, len(scenarios))
	failed := 0
	for _, s := range scenarios {
		result, err := h.Run(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("run interrupted", "scenario", s.Name)
				return WrapExitError(ExitCommandError, "interrupted", err)
			}
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to run scenario %s", s.Name), err)
		}
		summary := RunSummary{
			Scenario:  result.Scenario,
			FlowToken: result.FlowToken,
			Pass:      result.Pass,
			Events:    len(result.Trace),
			Errors:    result.Errors,
		}
		if !summary.Pass {
			failed++
		}
		summaries = append(summaries, summary)
	}

	if err := outputRuns(cmd, opts.Format, summaries); err != nil {
		return err
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", failed))
	}
	return nil
}

func outputRuns(cmd *cobra.Command, format string, summaries []RunSummary) error {
	w := cmd.OutOrStdout()

	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: summaries})
	}

	for _, s := range summaries {
		mark := "✓"
		if !s.Pass {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s  flow=%s  events=%d\n", mark, s.Scenario, s.FlowToken, s.Events)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	return nil
}

// commandContext returns the command's context, or Background when the
// command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
