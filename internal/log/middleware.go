package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// StatusLevel picks the level for a finished request: info below 400,
// warn for client errors, error otherwise.
func StatusLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// HTTPCompleted writes the one line logged per served request.
func HTTPCompleted(ctx context.Context, l *Logger, r *http.Request, status int, took time.Duration, clientIP string) {
	l.Log(ctx, StatusLevel(status), "HTTP request completed",
		FieldMethod, r.Method,
		FieldPath, r.URL.Path,
		FieldQuery, r.URL.RawQuery,
		FieldStatusCode, status,
		FieldDuration, took.Milliseconds(),
		FieldClientIP, clientIP,
		FieldUserAgent, r.Header.Get("User-Agent"))
}
