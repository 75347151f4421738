// Package logging wraps log/slog with the console and JSON handlers used by
// the airpost CLI, plus small attr helpers shared across packages.
package logging
