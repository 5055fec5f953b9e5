package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogFields(t *testing.T) {
	assert.Empty(t, LogFields(context.Background()))

	ctx := WithTrace(context.Background(), &TraceContext{TraceID: "t-1", RequestID: "r-1"})
	assert.Equal(t, []any{"trace_id", "t-1", "request_id", "r-1"}, LogFields(ctx))

	ctx = WithActor(ctx, "clerk-7")
	assert.Equal(t, []any{"trace_id", "t-1", "request_id", "r-1", "actor_id", "clerk-7"}, LogFields(ctx))
	assert.Equal(t, "t-1", GetTrace(ctx).TraceID)
}
