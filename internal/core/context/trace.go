package context

import (
	"context"
)

// TraceContext carries the identifiers the HTTP layer assigns to a request.
// TraceID and SpanID come from the active span, or from headers when tracing is off.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// WithTrace stores trace on ctx.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns the request's TraceContext, or nil outside a request.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// LogFields returns the request identifiers and actor as log key-value pairs.
// Empty values are left out, so background jobs log without request noise.
func LogFields(ctx context.Context) []any {
	var kv []any
	if t := GetTrace(ctx); t != nil {
		if t.TraceID != "" {
			kv = append(kv, "trace_id", t.TraceID)
		}
		if t.SpanID != "" {
			kv = append(kv, "span_id", t.SpanID)
		}
		if t.RequestID != "" {
			kv = append(kv, "request_id", t.RequestID)
		}
	}
	if actor := GetActorID(ctx); actor != "" {
		kv = append(kv, "actor_id", actor)
	}
	return kv
}
