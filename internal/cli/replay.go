package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/flowrt/internal/harness"
	"github.com/roach88/flowrt/internal/ir"
	"github.com/roach88/flowrt/internal/store"
	"github.com/roach88/flowrt/internal/trace"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	FlowToken string
}

// ReplayResult reports whether a recorded run reproduced.
type ReplayResult struct {
	FlowToken     string `json:"flow_token"`
	Scenario      string `json:"scenario"`
	Deterministic bool   `json:"deterministic"`
	Events        int    `json:"events"`
	Mismatch      string `json:"mismatch,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <path>",
		Short: "Re-run a recorded run and check it reproduces",
		Long: `Re-run a recorded scenario with its original flow token and compare
the new trace with the recorded one, event by event.

The scenario is looked up by name in <path> and must still hash to the
recorded scenario hash.

Exit codes:
  0 - Trace reproduced exactly
  1 - Scenario changed or trace differs
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.FlowToken, "flow", "", "flow token of the run to replay (required)")
	_ = cmd.MarkFlagRequired("flow")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, opts.FlowToken)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("no run found for flow: %s", opts.FlowToken))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	recorded, err := st.ReadTrace(ctx, opts.FlowToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	loadResult, loadErrors := LoadScenarios(path, LoadModeFailFast)
	if len(loadErrors) > 0 {
		code, message := loadErrorCode(loadErrors[0])
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}
	idx := slices.IndexFunc(loadResult.Scenarios, func(s *ir.Scenario) bool { return s.Name == run.Scenario })
	if idx < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenario %s not found in %s", run.Scenario, path))
	}
	scenario := loadResult.Scenarios[idx]

	result := ReplayResult{
		FlowToken: run.FlowToken,
		Scenario:  run.Scenario,
		Events:    len(recorded),
	}

	hash, err := ir.ScenarioHash(scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash scenario", err)
	}
	if hash != run.ScenarioHash {
		result.Mismatch = fmt.Sprintf("scenario changed since the run was recorded (hash %s, recorded %s)", hash, run.ScenarioHash)
		return outputReplay(cmd, opts.Format, result)
	}

	h := harness.New(
		harness.WithTokens(trace.NewFixedGenerator(run.FlowToken)),
		harness.WithLogger(newLogger(cmd.ErrOrStderr(), opts.Verbose)),
	)
	replayed, err := h.Run(ctx, scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	result.Mismatch = compareTraces(recorded, replayed.Trace)
	result.Deterministic = result.Mismatch == ""
	return outputReplay(cmd, opts.Format, result)
}

// compareTraces describes the first difference between two traces, or
// returns "" if they are identical.
func compareTraces(recorded, replayed []trace.Event) string {
	for i := range min(len(recorded), len(replayed)) {
		if recorded[i] != replayed[i] {
			return fmt.Sprintf("event %d: recorded [%d] %s %s, replayed [%d] %s %s", i,
				recorded[i].Seq, recorded[i].Observer, recorded[i],
				replayed[i].Seq, replayed[i].Observer, replayed[i])
		}
	}
	if len(recorded) != len(replayed) {
		return fmt.Sprintf("recorded %d event(s), replayed %d", len(recorded), len(replayed))
	}
	return ""
}

func outputReplay(cmd *cobra.Command, format string, result ReplayResult) error {
	var failure error
	if !result.Deterministic {
		failure = NewExitError(ExitFailure, fmt.Sprintf("replay of %s did not reproduce", result.FlowToken))
	}

	if format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if failure != nil {
			response.Status = "error"
			response.Error = &CLIError{Code: "E_NONDETERMINISTIC", Message: result.Mismatch}
		}
		if err := writeJSON(cmd.OutOrStdout(), response); err != nil {
			return err
		}
		return failure
	}

	w := cmd.OutOrStdout()
	if failure != nil {
		fmt.Fprintf(w, "✗ %s (%s)\n", result.Scenario, result.FlowToken)
		fmt.Fprintf(w, "  %s\n", result.Mismatch)
		return failure
	}
	fmt.Fprintf(w, "✓ %s (%s): %d event(s) reproduced\n", result.Scenario, result.FlowToken, result.Events)
	return nil
}
