// Package logging assembles structured slog loggers and formatting helpers used
// across candyshop commands.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so ingest code can tag log lines with the
// pull request number, stage, and correlation ID. NewNop returns a logger for
// tests and wiring code that has nothing to report.
package logging
