// Package logging provides request-scoped logging with trace IDs.
package logging

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cardwise/commerce_layer/pkg/logger"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// Logger wraps the shared logger with request helpers.
type Logger struct {
	base *logger.Logger
}

// NewLogger creates a request logger for the given service.
func NewLogger(service string) *Logger {
	return &Logger{base: logger.NewDefault(service)}
}

// NewTraceID generates a new trace identifier.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID stores a trace ID in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the trace ID from the context, or "".
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// LogRequest records one completed HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	entry := l.base.
		WithField("method", method).
		WithField("path", path).
		WithField("status", status).
		WithField("duration_ms", duration.Milliseconds())
	if traceID := TraceID(ctx); traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
		return
	}
	entry.Info("request completed")
}

// LogSecurityEvent records a security-relevant event such as a rate limit hit.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, details map[string]interface{}) {
	entry := l.base.WithField("event", event).WithFields(details)
	if traceID := TraceID(ctx); traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	entry.Warn("security event")
}
