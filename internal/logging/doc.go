// Package logging assembles structured slog loggers and formatting helpers used
// across weighstation.
//
// It owns the console and JSON handlers, the level and output plumbing, and
// the shared field names (component, session_id, weight, measurement_id) so
// every component emits lines with the same shape. A no-op logger is provided
// for tests and wiring code that cannot fail.
package logging
