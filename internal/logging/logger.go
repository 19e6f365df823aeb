// Package logging provides slog setup helpers for routingctl's ambient,
// operational log stream — process lifecycle, socket, and send/encode
// error messages. Malformed received datagrams are not logged here; they
// are only counted in internal/metrics. Distinct from internal/protolog, which implements the
// externally observable protocol log contract (spec §6).
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup initializes the default slog logger with the given level and
// output. Unlike the teacher's JSON handler (tuned for aggregated
// production logs), this defaults to a text handler: routingctl runs as
// a short-lived two-binary CLI tool whose logs are read directly, not
// ingested (see DESIGN.md Open Question decisions).
func Setup(level string, output io.Writer) *slog.Logger {
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	handler := slog.NewTextHandler(output, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel converts a string level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
