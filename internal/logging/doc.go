// Package logging assembles structured slog loggers and formatting helpers used
// across mmproteo.
//
// It owns the console and JSON handlers, routes output to stderr and the
// optional log file inside the storage directory, and exposes context-aware
// helpers so stage code tags log lines with the stage and the run's
// correlation ID. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging
