// Package compute turns raw source reads into diagnostic reports.
//
// engine.go provides the stateful Engine that parses each ReadResult, runs
// diagnostic.Diagnose, and tracks per-source state between polls: a SHA-256
// digest of the last input (so unchanged inputs are flagged) and a 20-poll
// availability window for UptimePct. Engine.Process accepts an injectable
// time.Time so tests are deterministic.
//
// state.go maps diagnose errors to report states: ok, invalid, underflow.
// Read failures are reported as unreachable.
package compute
