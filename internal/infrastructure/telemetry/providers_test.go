package telemetry

import (
	"context"
	"testing"

	"github.com/returnflow/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), config.TelemetryConfig{ServiceName: "rma"}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, p.TracingEnabled())
	assert.False(t, p.MetricsEnabled())
	assert.False(t, p.LogsEnabled())
	assert.NotNil(t, p.Meter())

	base := zap.NewNop()
	assert.Same(t, base, p.BridgeLogger(base, zapcore.InfoLevel))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestProviders_NilSafe(t *testing.T) {
	var p *Providers
	assert.False(t, p.TracingEnabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(newLevelFilterCore(inner, zapcore.WarnLevel)).With(zap.String("k", "v"))

	l.Info("dropped")
	l.Warn("kept")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Message)
	assert.Equal(t, "v", entries[0].ContextMap()["k"])
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOn")
	assert.Contains(t, sampler(0).Description(), "AlwaysOff")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}
