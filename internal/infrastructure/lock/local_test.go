package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDocumentMutex_SerializesSameKey(t *testing.T) {
	m := NewLocalDocumentMutex(0)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, "INV-1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, m.held())
}

func TestLocalDocumentMutex_IndependentKeys(t *testing.T) {
	m := NewLocalDocumentMutex(0)
	ctx := context.Background()

	unlockA, err := m.Lock(ctx, "A")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := m.Lock(ctx, "B")
	require.NoError(t, err)
	unlockB()
}

func TestLocalDocumentMutex_HonorsContext(t *testing.T) {
	m := NewLocalDocumentMutex(0)
	unlock, err := m.Lock(context.Background(), "A")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "A")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Zero(t, m.held())
}

func TestLocalDocumentMutex_GivesUpAfterWait(t *testing.T) {
	m := NewLocalDocumentMutex(20 * time.Millisecond)
	unlock, err := m.Lock(context.Background(), "INV-7")
	require.NoError(t, err)

	start := time.Now()
	_, err = m.Lock(context.Background(), "INV-7")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	unlock()
	again, err := m.Lock(context.Background(), "INV-7")
	require.NoError(t, err, "the wait applies per call")
	again()
	assert.Zero(t, m.held())
}
