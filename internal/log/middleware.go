package log

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey struct{}

// WithContext stores logger in ctx for FromContext.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the request-scoped logger, or one backed by
// slog.Default when ctx carries none.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return Default(ComponentHTTP)
}

type requestLine struct {
	method, path, query, userAgent string
}

// LogHTTPEnd records a finished request. 4xx log at warn, 5xx at error.
func LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(requestLine{r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()}).
		WithHTTPResponse(statusCode, durationMs)

	FromContext(ctx).WithComponent(ComponentHTTP).log(ctx, level, "HTTP request completed", fields.ToSlice())
}
