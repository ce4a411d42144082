package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/flowrt/internal/flow"
	"github.com/roach88/flowrt/internal/store"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewRunLoop creates a run loop coordinator that is disposed when the test
// ends.
func NewRunLoop(t testing.TB, opts ...flow.Option) *flow.RunLoop {
	t.Helper()
	opts = append([]flow.Option{flow.WithLogger(DiscardLogger())}, opts...)
	loop := flow.NewRunLoop(opts...)
	t.Cleanup(loop.Dispose)
	return loop
}

// TempStore opens a store in a per-test temp dir, closed when the test ends.
func TempStore(t testing.TB) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "flowrt.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}
