package returns

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciliationService_PurgeOrphans(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	e.putReport(t, returns.NCRReport{ID: "live", NCRNo: "NCR-2025-0001", Status: returns.NCRStatusOpen, Item: returns.NCRItem{ProductCode: "P-1"}})
	e.putReport(t, returns.NCRReport{ID: "dead", NCRNo: "NCR-2025-0002", Status: returns.NCRStatusCanceled, Item: returns.NCRItem{ProductCode: "P-1"}})

	e.putRecord(t, returns.ReturnRecord{ID: "keep", NCRNumber: "NCR-2025-0001", ProductCode: "P-1", Status: returns.StatusRequested})
	e.putRecord(t, returns.ReturnRecord{ID: "canceled-parent", NCRNumber: "NCR-2025-0002", ProductCode: "P-1", Status: returns.StatusCanceled})
	e.putRecord(t, returns.ReturnRecord{ID: "no-parent", NCRNumber: "NCR-2024-0099", ProductCode: "P-1", Status: returns.StatusRequested})
	e.putRecord(t, returns.ReturnRecord{ID: "NCR-gone_1", ProductCode: "P-1", Status: returns.StatusRequested})
	e.putRecord(t, returns.ReturnRecord{ID: "logistics", DocumentNo: "INV-1", ProductCode: "P-1", Status: returns.StatusRequested})

	res := e.reconcile.PurgeOrphans(ctx)
	assert.Equal(t, JobOrphanSweep, res.Job)
	assert.Equal(t, 3, res.Found)
	assert.Equal(t, 3, res.Succeeded)
	assert.Zero(t, res.Failed)
	assert.ElementsMatch(t, []string{"canceled-parent", "no-parent", "NCR-gone_1"}, res.IDs)

	var left []string
	for _, rec := range e.snapshot.Records() {
		left = append(left, rec.ID)
	}
	assert.ElementsMatch(t, []string{"keep", "logistics"}, left)

	again := e.reconcile.PurgeOrphans(ctx)
	assert.Zero(t, again.Found)
	assert.Contains(t, e.events.types(), returns.EventTypeReconcileCompleted)
}

func TestReconciliationService_RepairMissing(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	e.reconcile.newID = func(time.Time) string { return "01TEST" }

	e.putReport(t, returns.NCRReport{ID: "has-record", NCRNo: "NCR-2025-0001", Status: returns.NCRStatusOpen, Item: returns.NCRItem{ProductCode: "P-1"}})
	e.putReport(t, returns.NCRReport{ID: "bare", NCRNo: "NCR-2025-0002", Status: returns.NCRStatusOpen, RefNo: "INV-2",
		Item: returns.NCRItem{ProductCode: "P-2"}})
	e.putReport(t, returns.NCRReport{ID: "settled", NCRNo: "NCR-2025-0003", Status: returns.NCRStatusOpen, Date: "2025-01-02",
		Item: returns.NCRItem{ProductCode: "P-3", Quantity: qty(4), IsFieldSettled: true}})
	e.putReport(t, returns.NCRReport{ID: "dead", NCRNo: "NCR-2025-0004", Status: returns.NCRStatusCanceled, Item: returns.NCRItem{ProductCode: "P-4"}})
	e.putRecord(t, returns.ReturnRecord{ID: "r1", NCRNumber: "ncr-2025-0001", ProductCode: "P-1", Status: returns.StatusRequested})

	res := e.reconcile.RepairMissing(ctx)
	assert.Equal(t, JobRepairSweep, res.Job)
	assert.Equal(t, 2, res.Found)
	assert.Equal(t, 2, res.Succeeded)
	require.Len(t, res.IDs, 2)

	bare := e.record(t, "NCR-bare_R01TEST")
	assert.Equal(t, returns.StatusRequested, bare.Status)
	assert.Equal(t, "NCR-2025-0002", bare.NCRNumber)
	assert.Equal(t, "INV-2", bare.DocumentNo)
	assert.True(t, bare.Quantity.Equal(qty(1)))
	assert.Equal(t, "Unit", bare.Unit)
	assert.Equal(t, "Head Office", bare.Branch)
	assert.Equal(t, "2025-03-14", bare.Date)
	assert.Equal(t, "2025-03-14", bare.DateRequested)
	assert.Empty(t, bare.ReturnNo, "repair artifacts get no business number")

	settled := e.record(t, "NCR-settled_R01TEST")
	assert.Equal(t, returns.StatusSettledOnField, settled.Status)
	assert.True(t, settled.Quantity.Equal(qty(4)))
	assert.Equal(t, "2025-01-02", settled.Date)

	again := e.reconcile.RepairMissing(ctx)
	assert.Zero(t, again.Found, "a second sweep finds nothing")
	for _, id := range res.IDs {
		assert.True(t, strings.HasPrefix(id, returns.NCRRecordPrefix))
	}
}

func TestReconciliationService_LooselyTypedReportKeepsRecords(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	e.reconcile.newID = func(time.Time) string { return "01TEST" }

	require.NoError(t, e.store.Set(ctx, "ncr_reports/rep1",
		[]byte(`{"ncrNo":"NCR-2025-0001","status":"Open","item":{"productCode":"P1","quantity":""}}`)))
	e.putRecord(t, returns.ReturnRecord{ID: "NCR-rep1_1", NCRNumber: "NCR-2025-0001", ProductCode: "P1", Quantity: qty(1), Status: returns.StatusRequested})

	purge := e.reconcile.PurgeOrphans(ctx)
	assert.Zero(t, purge.Found)
	e.record(t, "NCR-rep1_1")

	repair := e.reconcile.RepairMissing(ctx)
	assert.Zero(t, repair.Found)
}

func TestReconciliationService_UndecodableReportHoldsPurge(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	require.NoError(t, e.store.Set(ctx, "ncr_reports/rep1", []byte(`["NCR-2025-0001"]`)))
	require.NoError(t, e.store.Set(ctx, "ncr_reports/rep2", []byte(`{"ncrNo":"NCR-2025-0002","item":`)))
	e.putRecord(t, returns.ReturnRecord{ID: "NCR-rep1_1", ProductCode: "P1", Status: returns.StatusRequested})
	e.putRecord(t, returns.ReturnRecord{ID: "legacy", NCRNumber: "NCR-2025-0002", ProductCode: "P2", Status: returns.StatusRequested})
	e.putRecord(t, returns.ReturnRecord{ID: "NCR-gone_1", ProductCode: "P3", Status: returns.StatusRequested})

	res := e.reconcile.PurgeOrphans(ctx)
	assert.Equal(t, []string{"NCR-gone_1"}, res.IDs)
	e.record(t, "NCR-rep1_1")
	e.record(t, "legacy")
}

func TestReconciliationService_UndecodableRecordHoldsRepair(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	e.reconcile.newID = func(time.Time) string { return "01TEST" }

	e.putReport(t, returns.NCRReport{ID: "rep1", NCRNo: "NCR-2025-0001", Status: returns.NCRStatusOpen, Item: returns.NCRItem{ProductCode: "P1"}})
	e.putReport(t, returns.NCRReport{ID: "rep2", NCRNo: "NCR-2025-0002", Status: returns.NCRStatusOpen, Item: returns.NCRItem{ProductCode: "P2"}})
	e.putReport(t, returns.NCRReport{ID: "rep3", NCRNo: "NCR-2025-0003", Status: returns.NCRStatusOpen, Item: returns.NCRItem{ProductCode: "P3"}})

	require.NoError(t, e.store.Set(ctx, "return_records/NCR-rep1_1", []byte(`"truncated`)))
	require.NoError(t, e.store.Set(ctx, "return_records/legacy",
		[]byte(`{"ncrNumber":"NCR-2025-0002","productCode":"P2","quantity":"two","isFieldSettled":"yes"}`)))

	res := e.reconcile.RepairMissing(ctx)
	assert.Equal(t, []string{"NCR-rep3_R01TEST"}, res.IDs)

	legacy := e.record(t, "legacy")
	assert.True(t, legacy.Quantity.IsZero())
	assert.Equal(t, "NCR-2025-0002", legacy.NCRNumber)
}
