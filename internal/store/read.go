package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/flowrt/internal/trace"
)

// ReadRun retrieves one run by flow token.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, flowToken string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT flow_token, scenario, scenario_hash, passed, failures, engine_version, ir_version
		FROM runs
		WHERE flow_token = ?
	`, flowToken)

	return scanRun(row)
}

// ListRuns returns runs in insertion order. An empty scenario name lists
// every run. Returns an empty slice (not nil) if there are none.
func (s *Store) ListRuns(ctx context.Context, scenario string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flow_token, scenario, scenario_hash, passed, failures, engine_version, ir_version
		FROM runs
		WHERE ? = '' OR scenario = ?
		ORDER BY rowid ASC
	`, scenario, scenario)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadTrace returns the events of a run with deterministic ordering:
// ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if no events exist for the flow token.
func (s *Store) ReadTrace(ctx context.Context, flowToken string) ([]trace.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, observer, kind, payload
		FROM events
		WHERE flow_token = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, flowToken)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []trace.Event{}
	for rows.Next() {
		var ev trace.Event
		var kind string
		if err := rows.Scan(&ev.Seq, &ev.Observer, &kind, &ev.Payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = trace.Kind(kind)
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LastSeq returns the highest seq recorded for a run, or 0 if it has no
// events. Used to continue a clock with trace.NewClockAt.
func (s *Store) LastSeq(ctx context.Context, flowToken string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM events WHERE flow_token = ?
	`, flowToken).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var failures string
	err := row.Scan(
		&run.FlowToken,
		&run.Scenario,
		&run.ScenarioHash,
		&run.Passed,
		&failures,
		&run.EngineVersion,
		&run.IRVersion,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.Failures, err = unmarshalFailures(failures)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}
