package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/flowrt/internal/store"
	"github.com/roach88/flowrt/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	FlowToken string
	Observer  string
	Scenario  string
}

// TraceResult is the JSON output of a trace query for one run.
type TraceResult struct {
	Run      store.Run     `json:"run"`
	Timeline []trace.Event `json:"timeline"`
	Stats    TraceStats    `json:"stats"`
}

// TraceStats summarises a timeline.
type TraceStats struct {
	TotalEvents int                      `json:"total_events"`
	Observers   map[string]ObserverStats `json:"observers"`
}

// ObserverStats counts the signals one observer received.
type ObserverStats struct {
	Subscribes int `json:"subscribes"`
	Items      int `json:"items"`
	Errors     int `json:"errors"`
	Completes  int `json:"completes"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded runs and their traces",
		Long: `Query recorded runs from a SQLite database.

Without --flow, lists recorded runs (optionally for one scenario).
With --flow, prints the run's event timeline and per-observer counts.

Examples:
  flowrt trace --db ./flowrt.db
  flowrt trace --db ./flowrt.db --scenario merge-fail-fast
  flowrt trace --db ./flowrt.db --flow 019... --observer o1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.FlowToken, "flow", "", "flow token of the run to show")
	cmd.Flags().StringVar(&opts.Observer, "observer", "", "only show events of this observer")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "only list runs of this scenario")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.FlowToken == "" {
		runs, err := st.ListRuns(ctx, opts.Scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		return outputRunList(cmd, opts.Format, runs)
	}

	run, err := st.ReadRun(ctx, opts.FlowToken)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("no run found for flow: %s", opts.FlowToken))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	events, err := st.ReadTrace(ctx, opts.FlowToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	timeline := filterTimeline(events, opts.Observer)
	result := TraceResult{
		Run:      run,
		Timeline: timeline,
		Stats:    buildStats(timeline),
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result})
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

// filterTimeline keeps the events of observer, or every event when observer
// is empty.
func filterTimeline(events []trace.Event, observer string) []trace.Event {
	if observer == "" {
		return events
	}
	out := []trace.Event{}
	for _, ev := range events {
		if ev.Observer == observer {
			out = append(out, ev)
		}
	}
	return out
}

func buildStats(events []trace.Event) TraceStats {
	stats := TraceStats{
		TotalEvents: len(events),
		Observers:   make(map[string]ObserverStats),
	}
	for _, ev := range events {
		counts := stats.Observers[ev.Observer]
		switch ev.Kind {
		case trace.KindSubscribe:
			counts.Subscribes++
		case trace.KindNext:
			counts.Items++
		case trace.KindError:
			counts.Errors++
		case trace.KindComplete:
			counts.Completes++
		}
		stats.Observers[ev.Observer] = counts
	}
	return stats
}

func outputRunList(cmd *cobra.Command, format string, runs []store.Run) error {
	w := cmd.OutOrStdout()
	if format == "json" {
		return writeJSON(w, CLIResponse{Status: "ok", Data: runs})
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, run := range runs {
		status := "pass"
		if !run.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s  %-4s  %s\n", run.FlowToken, status, run.Scenario)
	}
	return nil
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	run := result.Run
	fmt.Fprintf(w, "Flow: %s\n", run.FlowToken)
	fmt.Fprintf(w, "Scenario: %s (%s)\n", run.Scenario, run.ScenarioHash)
	if run.Passed {
		fmt.Fprintln(w, "Result: pass")
	} else {
		fmt.Fprintln(w, "Result: FAIL")
		for _, f := range run.Failures {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
	if verbose {
		fmt.Fprintf(w, "Engine: %s  IR: %s\n", run.EngineVersion, run.IRVersion)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Timeline:")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %s %s\n", ev.Seq, ev.Observer, ev)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d event(s)\n", result.Stats.TotalEvents)
	for _, name := range slices.Sorted(maps.Keys(result.Stats.Observers)) {
		s := result.Stats.Observers[name]
		fmt.Fprintf(w, "  %s: %d item(s), %d error(s), %d complete(s)\n",
			name, s.Items, s.Errors, s.Completes)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
