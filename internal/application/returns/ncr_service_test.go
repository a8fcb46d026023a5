package returns

import (
	"context"
	"testing"

	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/returnflow/backend/internal/domain/sequence"
	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitInput(refNo, product string) SubmitNCRInput {
	return SubmitNCRInput{
		Founder: "QC Team",
		RefNo:   refNo,
		Item: returns.NCRItem{
			ProductCode: product,
			ProductName: "Widget",
			Quantity:    qty(2),
			Customer:    "ACME",
			Branch:      "North",
		},
	}
}

func TestNCRService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("stores report and its record", func(t *testing.T) {
		e := newEngine(t)
		res, err := e.ncrSvc.Submit(ctx, submitInput("INV-7", "P-1"))
		require.NoError(t, err)

		assert.Equal(t, "NCR-2025-0001", res.Report.NCRNo)
		assert.Equal(t, "2025-03-14", res.Report.Date)
		require.True(t, res.RecordCreated)

		rec := e.record(t, returns.DerivedRecordID(res.Report.ID, "1"))
		assert.Equal(t, returns.StatusRequested, rec.Status)
		assert.Equal(t, "NCR-2025-0001", rec.NCRNumber)
		assert.Equal(t, "INV-7", rec.DocumentNo)
		assert.Equal(t, "ACME", rec.Customer)
		assert.Equal(t, "2025-03-14", rec.DateRequested)
		assert.Equal(t, returns.DocumentTypeNCR, rec.DocumentType)

		stored, err := e.ncrSvc.GetByID(ctx, res.Report.ID)
		require.NoError(t, err)
		assert.Equal(t, "P-1", stored.Item.ProductCode)
		assert.Contains(t, e.events.types(), returns.EventTypeNCRSubmitted)
	})

	t.Run("initial status follows the report flags", func(t *testing.T) {
		cases := []struct {
			name   string
			mutate func(*returns.NCRItem)
			want   returns.Status
		}{
			{"settled on field", func(it *returns.NCRItem) { it.IsFieldSettled = true }, returns.StatusSettledOnField},
			{"record only", func(it *returns.NCRItem) { it.IsRecordOnly = true }, returns.StatusCompleted},
			{"direct return", func(it *returns.NCRItem) { it.PreliminaryDecision = returns.PreliminaryDirectReturn }, returns.StatusDirectReturn},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				e := newEngine(t)
				in := submitInput("-", "P-1")
				tc.mutate(&in.Item)
				res, err := e.ncrSvc.Submit(ctx, in)
				require.NoError(t, err)
				require.NotNil(t, res.Record)
				assert.Equal(t, tc.want, res.Record.Status)
				assert.Empty(t, res.Record.DateRequested)
			})
		}
	})

	t.Run("locked document consumes no number", func(t *testing.T) {
		e := newEngine(t)
		e.putRecord(t, returns.ReturnRecord{ID: "x", DocumentNo: "INV-7", ProductCode: "P-9", Status: returns.StatusColInTransit})

		_, err := e.ncrSvc.Submit(ctx, submitInput("INV-7", "P-1"))
		assert.ErrorIs(t, err, shared.ErrDocumentLocked)

		_, ok, _ := e.allocator.Peek(ctx, sequence.FamilyNCR)
		assert.False(t, ok)
	})

	t.Run("invalid report", func(t *testing.T) {
		e := newEngine(t)
		in := submitInput("INV-7", "")
		in.Item.ProductName = ""
		_, err := e.ncrSvc.Submit(ctx, in)
		assert.Error(t, err)

		in = submitInput("INV-7", "P-1")
		in.Date = "14/03/2025"
		_, err = e.ncrSvc.Submit(ctx, in)
		assert.Error(t, err)
	})
}

func TestNCRService_Update(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	res, err := e.ncrSvc.Submit(ctx, submitInput("INV-7", "P-1"))
	require.NoError(t, err)
	recID := res.Record.ID

	t.Run("mirrors onto linked records", func(t *testing.T) {
		out, err := e.ncrSvc.Update(ctx, res.Report.ID, map[string]any{
			"quantity":    "5",
			"customer":    "Globex",
			"productCode": "P-2",
		})
		require.NoError(t, err)
		assert.Equal(t, SyncResult{Matched: 1, Succeeded: 1}, out.Sync)
		assert.Equal(t, "P-2", out.Report.Item.ProductCode)

		rec := e.record(t, recID)
		assert.True(t, rec.Quantity.Equal(qty(5)))
		assert.Equal(t, "Globex", rec.Customer)
		assert.Equal(t, "P-2", rec.ProductCode)
		assert.Equal(t, returns.StatusRequested, rec.Status, "status is never projected")
	})

	t.Run("follows the new product code next time", func(t *testing.T) {
		out, err := e.ncrSvc.Update(ctx, res.Report.ID, map[string]any{"item": map[string]any{"unit": "Box"}})
		require.NoError(t, err)
		assert.Equal(t, 1, out.Sync.Succeeded)
		assert.Equal(t, "Box", e.record(t, recID).Unit)
	})

	t.Run("protected fields", func(t *testing.T) {
		_, err := e.ncrSvc.Update(ctx, res.Report.ID, map[string]any{"ncrNo": "NCR-2025-9999"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		_, err = e.ncrSvc.Update(ctx, res.Report.ID, map[string]any{"status": "Canceled"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("missing report", func(t *testing.T) {
		_, err := e.ncrSvc.Update(ctx, "nope", map[string]any{"unit": "Box"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestNCRService_Cancel(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	res, err := e.ncrSvc.Submit(ctx, submitInput("INV-7", "P-1"))
	require.NoError(t, err)
	e.putRecord(t, returns.ReturnRecord{ID: "split", NCRNumber: res.Report.NCRNo, ProductCode: "P-1", Status: returns.StatusNCRInTransit})
	e.putRecord(t, returns.ReturnRecord{ID: "other", NCRNumber: res.Report.NCRNo, ProductCode: "P-3", Status: returns.StatusRequested})

	out, err := e.ncrSvc.Cancel(ctx, res.Report.ID)
	require.NoError(t, err)
	assert.Equal(t, returns.NCRStatusCanceled, out.Report.Status)
	assert.Equal(t, SyncResult{Matched: 2, Succeeded: 2}, out.Sync)

	assert.Equal(t, returns.StatusCanceled, e.record(t, res.Record.ID).Status)
	assert.Equal(t, returns.StatusCanceled, e.record(t, "split").Status)
	assert.Equal(t, returns.StatusRequested, e.record(t, "other").Status)

	stored, err := e.ncrSvc.GetByID(ctx, res.Report.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive())
	assert.Empty(t, e.ncrSvc.List(false))
	assert.Len(t, e.ncrSvc.List(true), 1)

	_, err = e.ncrSvc.Cancel(ctx, res.Report.ID)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = e.ncrSvc.Update(ctx, res.Report.ID, map[string]any{"unit": "Box"})
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}
