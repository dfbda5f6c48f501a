// Package logging assembles structured slog loggers and formatting helpers used
// across livemon.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so refresh and probe code can tag
// log lines with the run identifier, source, channel, and phase. A no-op logger
// is provided for tests and wiring code that cannot fail.
package logging
