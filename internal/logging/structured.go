package logging

import (
	"log/slog"
	"os"
)

// InitStructured rebuilds the operational logger for the given format
// ("json" for log shippers, anything else selects text) and level, and
// installs it as slog's process default so third-party slog callers land in
// the same stream.
func InitStructured(format, level string) {
	SetLevelFromString(level)

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: logLevel}
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	opLogger.Store(logger)
	slog.SetDefault(logger)
}

// OpWithTrace returns the operational logger annotated with trace/span ids
// so operational lines correlate with the invocation's trace.
func OpWithTrace(traceID, spanID string) *slog.Logger {
	l := opLogger.Load()
	if traceID == "" {
		return l
	}
	args := []any{"trace_id", traceID}
	if spanID != "" {
		args = append(args, "span_id", spanID)
	}
	return l.With(args...)
}
