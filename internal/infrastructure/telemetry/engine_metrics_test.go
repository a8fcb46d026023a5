package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestEngineMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("nil receiver records nothing", func(t *testing.T) {
		var m *EngineMetrics
		assert.NotPanics(t, func() {
			m.NumberAllocated(ctx, "ncr", OutcomeSuccess)
			m.CounterRolledBack(ctx, "ncr", OutcomeSuccess)
			m.Transition(ctx, "submit", OutcomeFailure)
			m.SyncTargets(ctx, OutcomeSuccess, 3)
			m.ReconcileItems(ctx, "orphan_sweep", OutcomeSuccess, 2)
			m.LockDenied(ctx, "processing-locked")
			m.StoreCall(ctx, "memory", "get", time.Millisecond)
		})
	})

	t.Run("nil meter", func(t *testing.T) {
		_, err := NewEngineMetrics(nil)
		assert.ErrorIs(t, err, ErrMeterNil)
	})

	t.Run("counts are exported", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		m, err := NewEngineMetrics(provider.Meter("test"))
		require.NoError(t, err)

		m.NumberAllocated(ctx, "ncr", OutcomeSuccess)
		m.NumberAllocated(ctx, "return", OutcomeFailure)
		m.SyncTargets(ctx, OutcomeSuccess, 4)
		m.SyncTargets(ctx, OutcomeFailure, 0)
		m.ReconcileItems(ctx, "repair_sweep", OutcomeSuccess, 2)
		m.LockDenied(ctx, "exact-duplicate")

		sums := collect(t, reader)
		assert.Equal(t, int64(2), sums["rma_numbers_allocated_total"])
		assert.Equal(t, int64(4), sums["rma_sync_targets_total"])
		assert.Equal(t, int64(2), sums["rma_reconcile_items_total"])
		assert.Equal(t, int64(1), sums["rma_lock_denials_total"])
		assert.NotContains(t, sums, "rma_transitions_total")
	})
}
