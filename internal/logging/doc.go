// Package logging assembles the structured slog loggers shared by the rsextract
// CLI and its worker processes.
//
// It owns the console and JSON handlers, level parsing, and the optional JSON
// copy appended to the shared log file, and exposes context helpers that tag
// log lines with the run id and the take being processed. A no-op logger is
// available for tests and wiring code that cannot fail.
package logging
