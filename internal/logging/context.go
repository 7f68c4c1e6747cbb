package logging

import (
	"context"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type requestCtxKey struct{}
type remediationCtxKey struct{}
type loggerCtxKey struct{}

// remediationFields identify the request being remediated.
type remediationFields struct {
	cwe      string
	language string
}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	if r, ok := ctx.Value(remediationCtxKey{}).(remediationFields); ok {
		fields = append(fields,
			zap.String("cwe", r.cwe),
			zap.String("language", r.language),
		)
	}

	return fields
}

// ValidRequestID reports whether id is safe to use as a correlation id.
func ValidRequestID(id string) bool {
	return id != "" && len(id) <= maxIDLen && idPattern.MatchString(id)
}

// WithRequestID adds a request ID to context.
// Invalid IDs (empty, too long, or with characters outside [a-zA-Z0-9_-])
// leave the context unchanged.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if !ValidRequestID(requestID) {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithRemediation tags the context with the weakness category and language being fixed.
func WithRemediation(ctx context.Context, cwe, language string) context.Context {
	return context.WithValue(ctx, remediationCtxKey{}, remediationFields{cwe: cwe, language: language})
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
