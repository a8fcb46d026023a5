// Package lock provides the per-document mutexes that serialize writers of
// the same document number.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/returnflow/backend/internal/domain/shared"
)

// LocalDocumentMutex serializes writers within one process. Each key owns a
// one-slot channel; the entry is dropped once nobody holds or waits for it.
type LocalDocumentMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalDocumentMutex creates an empty keyed mutex. A waiter gives up after
// wait; zero waits for as long as the caller's context allows.
func NewLocalDocumentMutex(wait time.Duration) *LocalDocumentMutex {
	return &LocalDocumentMutex{slots: make(map[string]*slot), wait: wait}
}

func (m *LocalDocumentMutex) acquire(key string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	return s
}

func (m *LocalDocumentMutex) release(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}

// Lock blocks until key is free, the configured wait elapses or ctx is done
func (m *LocalDocumentMutex) Lock(ctx context.Context, key string) (func(), error) {
	if m.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.wait)
		defer cancel()
	}
	s := m.acquire(key)
	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, s)
		return nil, shared.WrapDomainError(shared.ErrConcurrencyConflict.Code,
			"Document number is busy, try again", ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			m.release(key, s)
		})
	}, nil
}

// held reports the number of keys with holders or waiters
func (m *LocalDocumentMutex) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
