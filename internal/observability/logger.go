package observability

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger: JSON records on stdout, trace-correlated,
// tagged with the service name and environment. Dev gets Debug level.
func NewLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	if env == "dev" {
		opts.Level = slog.LevelDebug
	}

	handler := NewTraceHandler(slog.NewJSONHandler(os.Stdout, opts))

	return slog.New(handler).With(
		slog.String("service", "scholarhub"),
		slog.String("env", env),
	)
}
