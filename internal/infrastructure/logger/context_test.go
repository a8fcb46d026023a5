package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	t.Run("adds request and operator fields", func(t *testing.T) {
		ctx := WithContext(context.Background(), base)
		ctx = WithRequestID(ctx, "req-1")
		ctx = WithOperator(ctx, "qc-team")

		L(ctx).Info("status changed", zap.String("record_id", "r1"))

		entry := logs.TakeAll()[0]
		fields := entry.ContextMap()
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "qc-team", fields["operator"])
		assert.Equal(t, "r1", fields["record_id"])
	})

	t.Run("adds trace ids from a valid span", func(t *testing.T) {
		traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
		spanID, _ := trace.SpanIDFromHex("0102030405060708")
		sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
		ctx := trace.ContextWithSpanContext(context.Background(), sc)

		WithLogger(ctx, base).Warn("traced")

		fields := logs.TakeAll()[0].ContextMap()
		assert.Equal(t, traceID.String(), fields["trace_id"])
		assert.Equal(t, spanID.String(), fields["span_id"])
		assert.Equal(t, traceID.String(), GetTraceID(ctx))
	})

	t.Run("falls back to the global logger", func(t *testing.T) {
		restore := zap.ReplaceGlobals(base)
		defer restore()

		L(context.Background()).With(zap.Int("n", 1)).Error("no logger in context")
		entries := logs.TakeAll()
		if assert.Len(t, entries, 1) {
			assert.EqualValues(t, 1, entries[0].ContextMap()["n"])
		}
	})

	t.Run("empty context values", func(t *testing.T) {
		ctx := context.Background()
		assert.Empty(t, GetRequestID(ctx))
		assert.Empty(t, GetOperator(ctx))
		assert.Empty(t, GetTraceID(ctx))
	})
}
