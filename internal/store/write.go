package store

import (
	"context"
	"fmt"

	"github.com/roach88/flowrt/internal/ir"
	"github.com/roach88/flowrt/internal/trace"
)

// Run is the stored summary of one scenario run.
type Run struct {
	FlowToken     string   `json:"flow_token"`
	Scenario      string   `json:"scenario"`
	ScenarioHash  string   `json:"scenario_hash"`
	Passed        bool     `json:"passed"`
	Failures      []string `json:"failures"`
	EngineVersion string   `json:"engine_version"`
	IRVersion     string   `json:"ir_version"`
}

// WriteRun records a run and its trace in one transaction.
//
// Uses ON CONFLICT DO NOTHING for idempotency: writing the same run twice
// leaves the first copy in place. Event ids are content-addressed, so a
// re-written trace collides with itself rather than duplicating.
func (s *Store) WriteRun(ctx context.Context, run Run, events []trace.Event) error {
	failuresJSON, err := marshalFailures(run.Failures)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(flow_token, scenario, scenario_hash, passed, failures, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(flow_token) DO NOTHING
	`,
		run.FlowToken,
		run.Scenario,
		run.ScenarioHash,
		run.Passed,
		failuresJSON,
		run.EngineVersion,
		run.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events
		(id, flow_token, seq, observer, kind, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write run: prepare events: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		id := ir.EventID(run.FlowToken, ev.Seq, ev.Observer, string(ev.Kind), ev.Payload)
		if _, err := stmt.ExecContext(ctx, id, run.FlowToken, ev.Seq, ev.Observer, string(ev.Kind), ev.Payload); err != nil {
			return fmt.Errorf("write run: event seq=%d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

// DeleteRun removes a run and, through the foreign key cascade, its trace.
// Returns false if no run had that flow token.
func (s *Store) DeleteRun(ctx context.Context, flowToken string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE flow_token = ?`, flowToken)
	if err != nil {
		return false, fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete run: %w", err)
	}
	return n > 0, nil
}
