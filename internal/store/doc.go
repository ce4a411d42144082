// Package store provides SQLite-backed durable storage for flowrt scenario
// runs and their traces.
//
// The store is an append-only log with two tables:
//   - runs: one row per scenario run, keyed by flow token
//   - events: the trace of a run, one row per observer event
//
// # Ordering
//
// All ordering uses the logical seq INTEGER recorded by trace.Clock, never
// timestamps. Trace queries include ORDER BY seq ASC, id ASC COLLATE BINARY so
// that reads are identical across re-runs.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: events reference their run
//
// Event ids are content-addressed via ir.EventID.
package store
