package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type loggerContextKey struct{}

// NewRootLogger returns the JSON logger the service starts from.
// Records logged with a *Context method carry the active trace and span IDs.
func NewRootLogger(w io.Writer, instanceID string) *slog.Logger {
	handler := NewTracingLogHandler(slog.NewJSONHandler(w, nil))
	return slog.New(handler).With(slog.String("instanceID", instanceID))
}

func FromContext(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(loggerContextKey{}).(*slog.Logger)
	if !ok || logger == nil {
		fallback := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		fallback = fallback.With(slog.String("logger", "fallback"))
		return fallback
	}
	return logger
}

func AddToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

func AddMetaToContext(ctx context.Context, args ...slog.Attr) context.Context {
	anySlice := make([]any, len(args))
	for i, arg := range args {
		anySlice[i] = arg
	}

	return AddToContext(ctx, FromContext(ctx).With(anySlice...))
}
