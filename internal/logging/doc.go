// Package logging assembles structured slog loggers and formatting helpers used
// across asrbatch.
//
// It owns the console and JSON handlers, centralizes level and output plumbing
// (including the rotating log file), and exposes context-aware helpers so stage
// code can automatically tag log lines with run IDs, task indexes, stages, and
// engine names. The package also provides a no-op logger for tests and wiring
// code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the pipeline.
package logging
