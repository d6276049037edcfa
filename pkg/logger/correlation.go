package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

// contextKey is an unexported type for context keys to avoid collisions.
type contextKey string

// correlationIDKey is the context key under which the request correlation ID
// is stored.
const correlationIDKey contextKey = "correlation_id"

// SetCorrelationID stores a correlation ID in the context. The middleware
// sets this once per inbound request; everything downstream reads it back
// for log tagging and trace propagation.
func SetCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID returns the correlation ID stored in the context, or the
// empty string when none is set.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID returns a log entry tagged with the context's
// correlation ID. When the context carries none, the plain logger entry is
// returned unchanged.
func WithCorrelationID(ctx context.Context, log *logrus.Logger) *logrus.Entry {
	if id := CorrelationID(ctx); id != "" {
		return log.WithField("correlation_id", id)
	}
	return logrus.NewEntry(log)
}
