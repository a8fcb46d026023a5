package persistence_test

import (
	"context"
	"errors"
	"testing"

	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/returnflow/backend/internal/infrastructure/docstore"
	"github.com/returnflow/backend/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReturnRecordRepository(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	repo := persistence.NewReturnRecordRepository(store, zap.NewNop())

	rec := &returns.ReturnRecord{
		ID:          "r1",
		DocumentNo:  "INV-1",
		ProductCode: "SKU-1",
		Quantity:    decimal.NewFromInt(4),
		Status:      returns.StatusRequested,
	}
	require.NoError(t, repo.Save(ctx, rec))

	t.Run("find by id", func(t *testing.T) {
		got, err := repo.FindByID(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "INV-1", got.DocumentNo)
		assert.True(t, decimal.NewFromInt(4).Equal(got.Quantity))

		_, err = repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("find all skips undecodable documents", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "return_records/broken", []byte(`not json`)))
		require.NoError(t, store.Set(ctx, "return_records/a0", []byte(`{"productCode":"X"}`)))

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "a0", all[0].ID)
		assert.Equal(t, returns.StatusRequested, all[0].Status)
		assert.Equal(t, "r1", all[1].ID)

		require.NoError(t, store.Remove(ctx, "return_records/broken"))
		require.NoError(t, store.Remove(ctx, "return_records/a0"))
	})

	t.Run("patch merges", func(t *testing.T) {
		require.NoError(t, repo.Patch(ctx, "r1", map[string]any{"customer": "ACME"}))
		got, err := repo.FindByID(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "ACME", got.Customer)
		assert.Equal(t, "SKU-1", got.ProductCode)
	})

	t.Run("mutate commits or aborts", func(t *testing.T) {
		updated, err := repo.Mutate(ctx, "r1", func(r *returns.ReturnRecord) error {
			r.Notes = "checked"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "checked", updated.Notes)

		stop := errors.New("stop")
		_, err = repo.Mutate(ctx, "r1", func(r *returns.ReturnRecord) error {
			r.Notes = "discarded"
			return stop
		})
		assert.ErrorIs(t, err, stop)

		got, err := repo.FindByID(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "checked", got.Notes)

		_, err = repo.Mutate(ctx, "missing", func(*returns.ReturnRecord) error { return nil })
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "r1"))
		assert.ErrorIs(t, repo.Delete(ctx, "r1"), shared.ErrNotFound)
	})

	t.Run("save requires id", func(t *testing.T) {
		assert.Error(t, repo.Save(ctx, &returns.ReturnRecord{}))
	})
}

// atomicStore fails every atomic call without committing
type atomicStore struct {
	shared.DocumentStore
	mock.Mock
}

func (s *atomicStore) RunAtomic(ctx context.Context, path string, fn shared.AtomicUpdateFunc) (shared.AtomicResult, error) {
	args := s.Called(path)
	return args.Get(0).(shared.AtomicResult), args.Error(1)
}

func TestReturnRecordRepository_MutateNotCommitted(t *testing.T) {
	store := &atomicStore{DocumentStore: docstore.NewMemoryStore()}
	store.On("RunAtomic", "return_records/r1").Return(shared.AtomicResult{Committed: false}, nil)

	repo := persistence.NewReturnRecordRepository(store, zap.NewNop())
	_, err := repo.Mutate(context.Background(), "r1", func(*returns.ReturnRecord) error { return nil })

	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	store.AssertExpectations(t)
}

func TestNCRReportRepository(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	repo := persistence.NewNCRReportRepository(store, zap.NewNop())

	t.Run("reads flat legacy shape", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "ncr_reports/legacy", []byte(
			`{"ncrNo":"NCR-2023-0007","documentNo":"DOC-9","productCode":"P1","quantity":2,"status":7}`)))

		got, err := repo.FindByID(ctx, "legacy")
		require.NoError(t, err)
		assert.Equal(t, "NCR-2023-0007", got.NCRNo)
		assert.Equal(t, "DOC-9", got.RefNo)
		assert.Equal(t, "P1", got.Item.ProductCode)
		assert.Equal(t, returns.NCRStatusOpen, got.Status)
	})

	t.Run("writes nested shape", func(t *testing.T) {
		report := &returns.NCRReport{
			ID:     "n1",
			NCRNo:  "NCR-2024-0001",
			Status: returns.NCRStatusOpen,
			Item:   returns.NCRItem{ProductCode: "P2", Quantity: decimal.NewFromInt(1)},
		}
		require.NoError(t, repo.Save(ctx, report))

		raw, err := store.Get(ctx, "ncr_reports/n1")
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"item":{`)

		require.NoError(t, repo.Patch(ctx, "n1", map[string]any{"status": "Canceled"}))
		got, err := repo.FindByID(ctx, "n1")
		require.NoError(t, err)
		assert.False(t, got.IsActive())
	})

	t.Run("find all sorted", func(t *testing.T) {
		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "legacy", all[0].ID)
		assert.Equal(t, "n1", all[1].ID)
	})
}
