// Package logging configures the process-wide slog logger for termsearch.
// Records are JSON, optionally mirrored to a size-rotated log file under
// ~/.termsearch/logs/. On an interactive terminal without a log file the
// human-readable text handler is used instead.
package logging
