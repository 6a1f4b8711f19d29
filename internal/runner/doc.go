// Package runner executes one benchmark build and records its outcome.
//
// Ownership boundary:
// - command target shaping (docker exec, local shell)
//
// - process launch, local or over ssh
//
// - stdout/stderr fan-out to console and per-run log files
//
// - timing and result emission
//
// A non-zero exit is part of the result, not an error of Build. Build fails
// only when no result can be recorded: the process or a log file could not
// be created, or the recorder rejected the row.
package runner
