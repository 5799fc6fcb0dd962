// Package logging assembles structured slog loggers and formatting helpers used
// across articlesync services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing (including size-based rotation of the daemon log file), and exposes
// context-aware helpers so engine code can tag log lines with sync cycle IDs.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the system.
package logging
