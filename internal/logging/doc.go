// Package logging builds slog loggers with fieldcap's console and JSON
// handlers and provides shared attribute helpers.
package logging
