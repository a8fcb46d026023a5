package returns

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/returnflow/backend/internal/domain/sequence"
	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/returnflow/backend/internal/infrastructure/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockDocumentStore is a mock implementation of shared.DocumentStore
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Get(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDocumentStore) Set(ctx context.Context, path string, value []byte) error {
	return m.Called(ctx, path, value).Error(0)
}

func (m *MockDocumentStore) Update(ctx context.Context, path string, patch map[string]any) error {
	return m.Called(ctx, path, patch).Error(0)
}

func (m *MockDocumentStore) Remove(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

func (m *MockDocumentStore) List(ctx context.Context, collection string) (map[string][]byte, error) {
	args := m.Called(ctx, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]byte), args.Error(1)
}

func (m *MockDocumentStore) Subscribe(ctx context.Context, collection string, fn shared.SnapshotFunc) (func(), error) {
	args := m.Called(ctx, collection, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

func (m *MockDocumentStore) RunAtomic(ctx context.Context, path string, fn shared.AtomicUpdateFunc) (shared.AtomicResult, error) {
	args := m.Called(ctx, path, fn)
	return args.Get(0).(shared.AtomicResult), args.Error(1)
}

func (m *MockDocumentStore) Close() error {
	return m.Called().Error(0)
}

func TestSequenceAllocator_Allocate(t *testing.T) {
	ctx := context.Background()

	t.Run("numbers increase by one", func(t *testing.T) {
		a := NewSequenceAllocator(docstore.NewMemoryStore(), fixedClock(), zap.NewNop())
		assert.Equal(t, "NCR-2025-0001", a.Allocate(ctx, sequence.FamilyNCR))
		assert.Equal(t, "NCR-2025-0002", a.Allocate(ctx, sequence.FamilyNCR))
		assert.Equal(t, "RT-2025-0001", a.Allocate(ctx, sequence.FamilyReturn))
		assert.Equal(t, "COL-202503-0001", a.Allocate(ctx, sequence.FamilyCollection))
	})

	t.Run("new year starts over", func(t *testing.T) {
		store := docstore.NewMemoryStore()
		require.NoError(t, store.Set(ctx, sequence.FamilyNCR.Path(), []byte(`{"year":2024,"lastNumber":987}`)))
		a := NewSequenceAllocator(store, fixedClock(), zap.NewNop())
		assert.Equal(t, "NCR-2025-0001", a.Allocate(ctx, sequence.FamilyNCR))
	})

	t.Run("new month starts collections over", func(t *testing.T) {
		store := docstore.NewMemoryStore()
		require.NoError(t, store.Set(ctx, sequence.FamilyCollection.Path(), []byte(`{"year":2025,"month":2,"lastNumber":40}`)))
		a := NewSequenceAllocator(store, fixedClock(), zap.NewNop())
		assert.Equal(t, "COL-202503-0001", a.Allocate(ctx, sequence.FamilyCollection))
	})

	t.Run("concurrent callers get distinct numbers", func(t *testing.T) {
		a := NewSequenceAllocator(docstore.NewMemoryStore(), fixedClock(), zap.NewNop())
		const n = 40
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seen = make(map[string]struct{}, n)
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				number := a.Allocate(ctx, sequence.FamilyReturn)
				mu.Lock()
				seen[number] = struct{}{}
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Len(t, seen, n)
		c, ok, err := a.Peek(ctx, sequence.FamilyReturn)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, n, c.LastNumber)
	})
}

func TestSequenceAllocator_Sentinel(t *testing.T) {
	ctx := context.Background()

	t.Run("uncommitted transaction", func(t *testing.T) {
		store := new(MockDocumentStore)
		store.On("RunAtomic", mock.Anything, "counters/ncr_counter", mock.Anything).
			Return(shared.AtomicResult{Committed: false}, nil)

		a := NewSequenceAllocator(store, fixedClock(), zap.NewNop())
		number := a.Allocate(ctx, sequence.FamilyNCR)
		assert.True(t, sequence.IsSentinel(number))
		assert.Regexp(t, `^NCR-2025-ERR\d{4}$`, number)
		store.AssertExpectations(t)
	})

	t.Run("store error", func(t *testing.T) {
		store := new(MockDocumentStore)
		store.On("RunAtomic", mock.Anything, "counters/return_counter", mock.Anything).
			Return(shared.AtomicResult{}, shared.ErrStoreUnavailable)

		a := NewSequenceAllocator(store, fixedClock(), zap.NewNop())
		assert.True(t, sequence.IsSentinel(a.Allocate(ctx, sequence.FamilyReturn)))

		_, err := a.AllocateOrFail(ctx, sequence.FamilyReturn)
		assert.ErrorIs(t, err, ErrNumberUnavailable)
	})
}

func TestSequenceAllocator_Rollback(t *testing.T) {
	ctx := context.Background()

	t.Run("gives back the last number", func(t *testing.T) {
		a := NewSequenceAllocator(docstore.NewMemoryStore(), fixedClock(), zap.NewNop())
		a.Allocate(ctx, sequence.FamilyNCR)
		a.Allocate(ctx, sequence.FamilyNCR)
		a.Rollback(ctx, sequence.FamilyNCR)

		assert.Equal(t, "NCR-2025-0002", a.Allocate(ctx, sequence.FamilyNCR))
	})

	t.Run("never goes below zero", func(t *testing.T) {
		store := docstore.NewMemoryStore()
		require.NoError(t, store.Set(ctx, sequence.FamilyNCR.Path(), []byte(`{"year":2025,"lastNumber":0}`)))
		a := NewSequenceAllocator(store, fixedClock(), zap.NewNop())
		a.Rollback(ctx, sequence.FamilyNCR)

		c, _, err := a.Peek(ctx, sequence.FamilyNCR)
		require.NoError(t, err)
		assert.Equal(t, 0, c.LastNumber)
	})

	t.Run("missing counter stays missing", func(t *testing.T) {
		a := NewSequenceAllocator(docstore.NewMemoryStore(), fixedClock(), zap.NewNop())
		a.Rollback(ctx, sequence.FamilyCollection)

		_, ok, err := a.Peek(ctx, sequence.FamilyCollection)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("failures are swallowed", func(t *testing.T) {
		store := new(MockDocumentStore)
		store.On("RunAtomic", mock.Anything, mock.Anything, mock.Anything).
			Return(shared.AtomicResult{}, errors.New("boom"))
		a := NewSequenceAllocator(store, fixedClock(), zap.NewNop())
		assert.NotPanics(t, func() { a.Rollback(ctx, sequence.FamilyNCR) })
	})
}
