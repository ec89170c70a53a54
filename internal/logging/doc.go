// Package logging assembles structured slog loggers and formatting helpers used
// across filescleaner.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and defines LevelCritical for reclamation shortfalls that need an operator.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
