package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// snapshotRecorder collects subscription pushes
type snapshotRecorder struct {
	mu    sync.Mutex
	calls []map[string][]byte
}

func (r *snapshotRecorder) fn(docs map[string][]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, docs)
}

func (r *snapshotRecorder) last() map[string][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func (r *snapshotRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// runStoreContract exercises behaviour every DocumentStore must share
func runStoreContract(t *testing.T, newStore func(t *testing.T) shared.DocumentStore) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "return_records/nope")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "return_records/r1", []byte(`{"status":"Requested"}`)))

		got, err := s.Get(ctx, "return_records/r1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"Requested"}`, string(got))
	})

	t.Run("update merges shallowly", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "ncr_reports/n1", []byte(`{"ncrNo":"NCR-2024-0001","item":{"productCode":"A"}}`)))
		require.NoError(t, s.Update(ctx, "ncr_reports/n1", map[string]any{"status": "Canceled"}))

		got, err := s.Get(ctx, "ncr_reports/n1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"ncrNo":"NCR-2024-0001","item":{"productCode":"A"},"status":"Canceled"}`, string(got))

		err = s.Update(ctx, "ncr_reports/missing", map[string]any{"status": "Canceled"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "return_records/r1", []byte(`{}`)))
		require.NoError(t, s.Remove(ctx, "return_records/r1"))
		require.NoError(t, s.Remove(ctx, "return_records/r1"))

		_, err := s.Get(ctx, "return_records/r1")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("list returns direct children only", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "return_records/r1", []byte(`{"n":1}`)))
		require.NoError(t, s.Set(ctx, "return_records/r2", []byte(`{"n":2}`)))
		require.NoError(t, s.Set(ctx, "ncr_reports/n1", []byte(`{}`)))
		require.NoError(t, s.Set(ctx, "system_config", []byte(`{}`)))

		docs, err := s.List(ctx, "return_records")
		require.NoError(t, err)
		assert.Len(t, docs, 2)
		assert.JSONEq(t, `{"n":2}`, string(docs["r2"]))

		empty, err := s.List(ctx, "counters")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("invalid path", func(t *testing.T) {
		s := newStore(t)
		assert.Error(t, s.Set(ctx, "a/b/c", []byte(`{}`)))
		_, err := s.Get(ctx, "")
		assert.Error(t, err)
	})

	t.Run("atomic creates, skips and aborts", func(t *testing.T) {
		s := newStore(t)
		path := "counters/ncr_counter"

		res, err := s.RunAtomic(ctx, path, func(cur []byte) ([]byte, error) {
			assert.Nil(t, cur)
			return []byte(`{"lastNumber":1}`), nil
		})
		require.NoError(t, err)
		assert.True(t, res.Committed)
		assert.JSONEq(t, `{"lastNumber":1}`, string(res.Value))

		res, err = s.RunAtomic(ctx, path, func(cur []byte) ([]byte, error) {
			return nil, nil
		})
		require.NoError(t, err)
		assert.True(t, res.Committed)
		assert.JSONEq(t, `{"lastNumber":1}`, string(res.Value))

		boom := errors.New("boom")
		_, err = s.RunAtomic(ctx, path, func(cur []byte) ([]byte, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := s.Get(ctx, path)
		require.NoError(t, err)
		assert.JSONEq(t, `{"lastNumber":1}`, string(got))
	})

	t.Run("concurrent atomic increments are not lost", func(t *testing.T) {
		s := newStore(t)
		path := "counters/return_counter"
		const workers = 8

		var wg sync.WaitGroup
		var mu sync.Mutex
		committed := 0
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := s.RunAtomic(ctx, path, func(cur []byte) ([]byte, error) {
					var c struct{ LastNumber int }
					if cur != nil {
						if err := json.Unmarshal(cur, &c); err != nil {
							return nil, err
						}
					}
					return []byte(`{"LastNumber":` + strconv.Itoa(c.LastNumber+1) + `}`), nil
				})
				if assert.NoError(t, err) && res.Committed {
					mu.Lock()
					committed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		got, err := s.Get(ctx, path)
		require.NoError(t, err)
		var c struct{ LastNumber int }
		require.NoError(t, json.Unmarshal(got, &c))
		assert.Equal(t, committed, c.LastNumber)
		assert.Positive(t, committed)
	})

	t.Run("subscribe pushes initial and changed snapshots", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "return_records/r1", []byte(`{}`)))

		rec := &snapshotRecorder{}
		cancel, err := s.Subscribe(ctx, "return_records", rec.fn)
		require.NoError(t, err)
		require.Equal(t, 1, rec.count())
		assert.Len(t, rec.last(), 1)

		require.NoError(t, s.Set(ctx, "return_records/r2", []byte(`{}`)))
		require.Eventually(t, func() bool { return len(rec.last()) == 2 }, 5*time.Second, 20*time.Millisecond)

		require.NoError(t, s.Remove(ctx, "return_records/r1"))
		require.Eventually(t, func() bool {
			last := rec.last()
			_, ok := last["r2"]
			return len(last) == 1 && ok
		}, 5*time.Second, 20*time.Millisecond)

		cancel()
		seen := rec.count()
		require.NoError(t, s.Set(ctx, "return_records/r3", []byte(`{}`)))
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, seen, rec.count())
	})
}
