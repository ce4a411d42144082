// Package trace records what observers see during a flow run.
//
// A Log collects Events stamped by a logical Clock; a Recorder is an observer
// decorator that appends every event it forwards. Flow tokens identify one
// run of a scenario and come from a TokenGenerator so that tests can pin
// them.
//
// Events carry logical sequence numbers only, never wall-clock time, so that
// re-running a scenario produces an identical trace.
package trace
