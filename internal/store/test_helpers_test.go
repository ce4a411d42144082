package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/flowrt/internal/ir"
	"github.com/roach88/flowrt/internal/trace"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a passing run with minimal required fields.
func createTestRun(flowToken, scenario string) Run {
	return Run{
		FlowToken:     flowToken,
		Scenario:      scenario,
		ScenarioHash:  "test-hash",
		Passed:        true,
		Failures:      []string{},
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
}

// createTestTrace records a short ucast trace for observer o1.
func createTestTrace() []trace.Event {
	log := trace.NewLog()
	log.Append("o1", trace.KindSubscribe, "")
	log.Append("o1", trace.KindNext, "1")
	log.Append("o1", trace.KindNext, "2")
	log.Append("o1", trace.KindComplete, "")
	return log.Events()
}
