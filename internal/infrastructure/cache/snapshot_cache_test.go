package cache

import (
	"context"
	"testing"

	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/returnflow/backend/internal/infrastructure/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSnapshotCache(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "return_records/r2", []byte(`{"productCode":"B","status":"PickupScheduled"}`)))
	require.NoError(t, store.Set(ctx, "return_records/r1", []byte(`{"productCode":"A"}`)))
	require.NoError(t, store.Set(ctx, "ncr_reports/n1", []byte(`{"ncrNo":"NCR-2024-0001","productCode":"A"}`)))

	c := NewSnapshotCache(store, zap.NewNop())
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	select {
	case <-c.Ready():
	default:
		t.Fatal("cache not ready after Start")
	}

	t.Run("loads sorted snapshots", func(t *testing.T) {
		records := c.Records()
		require.Len(t, records, 2)
		assert.Equal(t, "r1", records[0].ID)
		assert.Equal(t, returns.StatusRequested, records[0].Status)
		assert.Equal(t, returns.StatusPickupScheduled, records[1].Status)

		reports := c.Reports()
		require.Len(t, reports, 1)
		assert.Equal(t, "A", reports[0].Item.ProductCode)
	})

	t.Run("replaces wholesale on change", func(t *testing.T) {
		require.NoError(t, store.Remove(ctx, "return_records/r1"))
		records := c.Records()
		require.Len(t, records, 1)
		assert.Equal(t, "r2", records[0].ID)
	})

	t.Run("hands out copies", func(t *testing.T) {
		records := c.Records()
		records[0].Status = returns.StatusCanceled
		assert.Equal(t, returns.StatusPickupScheduled, c.Records()[0].Status)
	})

	t.Run("stop detaches from the store", func(t *testing.T) {
		c.Stop()
		require.NoError(t, store.Set(ctx, "return_records/r3", []byte(`{}`)))
		assert.Len(t, c.Records(), 1)
	})
}

func TestSnapshotCache_Quarantine(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "ncr_reports/rep1", []byte(`{"ncrNo":"NCR-2025-0001","status":"Open","item":{"productCode":"P1","quantity":""}}`)))
	require.NoError(t, store.Set(ctx, "ncr_reports/rep2", []byte(`["not","an","object"]`)))
	require.NoError(t, store.Set(ctx, "return_records/NCR-rep1_1", []byte(`{"ncrNumber":"NCR-2025-0001","productCode":"P1","quantity":"1"}`)))
	require.NoError(t, store.Set(ctx, "return_records/r9", []byte(`"broken"`)))

	c := NewSnapshotCache(store, zap.NewNop())
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	reports := c.Reports()
	require.Len(t, reports, 1, "a loosely typed report still decodes")
	assert.Equal(t, "rep1", reports[0].ID)
	assert.True(t, reports[0].Item.Quantity.IsZero())
	require.Len(t, c.Records(), 1)

	q := c.Quarantine()
	assert.Equal(t, []returns.StoredRef{{ID: "rep2"}}, q.Reports)
	assert.Equal(t, []returns.StoredRef{{ID: "r9"}}, q.Records)

	require.NoError(t, store.Remove(ctx, "ncr_reports/rep2"))
	assert.Empty(t, c.Quarantine().Reports, "quarantine follows the latest snapshot")
}
