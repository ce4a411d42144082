package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowrt/internal/trace"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file should exist")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		require.NoError(t, s.Close())
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_MigratesOlderDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)

	_, err = s.DB().Exec(`DROP INDEX idx_events_observer`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`PRAGMA user_version = 0`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.verifyPragma("user_version", "1"))
	var name string
	require.NoError(t, s.DB().QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_events_observer'`,
	).Scan(&name))
}

func TestOpen_RefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.DB().Exec(`PRAGMA user_version = 99`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database schema v99 is newer than supported v1")
}

func TestOpen_MigrationIndex(t *testing.T) {
	s := createTestStore(t)

	var name string
	err := s.DB().QueryRow(`
		SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_events_observer'
	`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "idx_events_observer", name)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}

func TestWriteRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun("flow-1", "ucast-buffered")
	events := createTestTrace()
	require.NoError(t, s.WriteRun(ctx, run, events))

	got, err := s.ReadRun(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, run, got)

	stored, err := s.ReadTrace(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, events, stored)

	seq, err := s.LastSeq(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), seq)
}

func TestWriteRun_Failures(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun("flow-2", "broken")
	run.Passed = false
	run.Failures = []string{`o1: events mismatch <want "on_next(1)">`, "o2: not disposed"}
	require.NoError(t, s.WriteRun(ctx, run, nil))

	got, err := s.ReadRun(ctx, "flow-2")
	require.NoError(t, err)
	assert.False(t, got.Passed)
	assert.Equal(t, run.Failures, got.Failures)
}

func TestWriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun("flow-1", "ucast-buffered")
	events := createTestTrace()
	require.NoError(t, s.WriteRun(ctx, run, events))
	require.NoError(t, s.WriteRun(ctx, run, events))

	got, err := s.ReadTrace(ctx, "flow-1")
	require.NoError(t, err)
	assert.Len(t, got, len(events))

	runs, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestReadTrace_Empty(t *testing.T) {
	s := createTestStore(t)

	events, err := s.ReadTrace(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)

	seq, err := s.LastSeq(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}

func TestReadTrace_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	events := []trace.Event{
		{Seq: 3, Observer: "b", Kind: trace.KindComplete},
		{Seq: 1, Observer: "a", Kind: trace.KindSubscribe},
		{Seq: 2, Observer: "a", Kind: trace.KindNext, Payload: `"x"`},
	}
	require.NoError(t, s.WriteRun(ctx, createTestRun("flow-1", "s"), events))

	got, err := s.ReadTrace(ctx, "flow-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, int64(2), got[1].Seq)
	assert.Equal(t, `"x"`, got[1].Payload)
	assert.Equal(t, int64(3), got[2].Seq)
}

func TestListRuns_FilterAndOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, createTestRun("flow-b", "merge"), nil))
	require.NoError(t, s.WriteRun(ctx, createTestRun("flow-a", "ucast"), nil))
	require.NoError(t, s.WriteRun(ctx, createTestRun("flow-c", "merge"), nil))

	all, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "flow-b", all[0].FlowToken)
	assert.Equal(t, "flow-a", all[1].FlowToken)

	merges, err := s.ListRuns(ctx, "merge")
	require.NoError(t, err)
	require.Len(t, merges, 2)
	assert.Equal(t, "flow-c", merges[1].FlowToken)

	none, err := s.ListRuns(ctx, "unknown")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestDeleteRun_CascadesToEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, createTestRun("flow-1", "s"), createTestTrace()))

	deleted, err := s.DeleteRun(ctx, "flow-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	events, err := s.ReadTrace(ctx, "flow-1")
	require.NoError(t, err)
	assert.Empty(t, events)

	deleted, err = s.DeleteRun(ctx, "flow-1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestWriteRun_RejectsUnknownKind(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	events := []trace.Event{{Seq: 1, Observer: "a", Kind: trace.Kind("bogus")}}
	err := s.WriteRun(ctx, createTestRun("flow-1", "s"), events)
	require.Error(t, err)

	_, err = s.ReadRun(ctx, "flow-1")
	assert.True(t, errors.Is(err, sql.ErrNoRows), "transaction rolled back")
}

func TestMarshalFailures(t *testing.T) {
	data, err := marshalFailures(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", data)

	data, err = marshalFailures([]string{"a < b"})
	require.NoError(t, err)
	assert.Equal(t, `["a < b"]`, data)

	got, err := unmarshalFailures(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"a < b"}, got)

	_, err = unmarshalFailures("{")
	assert.Error(t, err)
}
