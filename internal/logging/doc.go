// Package logging configures structured slog output for pagedex.
//
// Logs are JSON lines. By default they go to stderr at the configured level;
// with --debug they are also written to a size-rotated file under
// ~/.pagedex/logs/ so long extraction runs can be inspected afterwards.
// User-facing progress is not logged here, it goes through internal/ui.
package logging
