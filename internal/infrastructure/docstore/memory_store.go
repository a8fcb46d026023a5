package docstore

import (
	"bytes"
	"context"
	"sync"

	"github.com/returnflow/backend/internal/domain/shared"
)

// MemoryStore keeps documents in process memory. Writes are serialized and
// subscribers are notified synchronously before the write call returns.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	feed   *feed
	closed bool
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string][]byte),
		feed: newFeed(),
	}
}

func (s *MemoryStore) checkOpen() error {
	if s.closed {
		return shared.ErrStoreUnavailable
	}
	return nil
}

// Get implements shared.DocumentStore
func (s *MemoryStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	v, ok := s.docs[path]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return bytes.Clone(v), nil
}

// Set implements shared.DocumentStore
func (s *MemoryStore) Set(ctx context.Context, path string, value []byte) error {
	if err := validatePath(path); err != nil {
		return err
	}
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.docs[path] = bytes.Clone(value)
	s.mu.Unlock()

	s.changed(path)
	return nil
}

// Update implements shared.DocumentStore
func (s *MemoryStore) Update(ctx context.Context, path string, patch map[string]any) error {
	if err := validatePath(path); err != nil {
		return err
	}
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	cur, ok := s.docs[path]
	if !ok {
		s.mu.Unlock()
		return shared.ErrNotFound
	}
	merged, err := mergePatch(cur, patch)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.docs[path] = merged
	s.mu.Unlock()

	s.changed(path)
	return nil
}

// Remove implements shared.DocumentStore
func (s *MemoryStore) Remove(ctx context.Context, path string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	_, existed := s.docs[path]
	delete(s.docs, path)
	s.mu.Unlock()

	if existed {
		s.changed(path)
	}
	return nil
}

// List implements shared.DocumentStore
func (s *MemoryStore) List(ctx context.Context, collection string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.listLocked(collection), nil
}

func (s *MemoryStore) listLocked(collection string) map[string][]byte {
	out := make(map[string][]byte)
	for path, v := range s.docs {
		c, id := shared.SplitPath(path)
		if c == collection && id != "" {
			out[id] = bytes.Clone(v)
		}
	}
	return out
}

// Subscribe implements shared.DocumentStore
func (s *MemoryStore) Subscribe(ctx context.Context, collection string, fn shared.SnapshotFunc) (func(), error) {
	s.mu.RLock()
	err := s.checkOpen()
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	id := s.feed.add(collection, fn)
	s.feed.publishTo(collection, id, s.snapshot(collection))

	var once sync.Once
	return func() { once.Do(func() { s.feed.remove(collection, id) }) }, nil
}

// RunAtomic implements shared.DocumentStore. The update function runs while
// the store is locked, so it never conflicts and never retries.
func (s *MemoryStore) RunAtomic(ctx context.Context, path string, fn shared.AtomicUpdateFunc) (shared.AtomicResult, error) {
	if err := validatePath(path); err != nil {
		return shared.AtomicResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return shared.AtomicResult{}, err
	}

	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return shared.AtomicResult{}, err
	}
	var cur []byte
	if v, ok := s.docs[path]; ok {
		cur = bytes.Clone(v)
	}
	next, err := fn(cur)
	if err != nil {
		s.mu.Unlock()
		return shared.AtomicResult{}, err
	}
	if next == nil {
		s.mu.Unlock()
		return shared.AtomicResult{Committed: true, Value: cur}, nil
	}
	s.docs[path] = bytes.Clone(next)
	s.mu.Unlock()

	s.changed(path)
	return shared.AtomicResult{Committed: true, Value: next}, nil
}

// Close implements shared.DocumentStore
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) snapshot(collection string) func() map[string][]byte {
	return func() map[string][]byte {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.listLocked(collection)
	}
}

func (s *MemoryStore) changed(path string) {
	collection, id := shared.SplitPath(path)
	if id == "" {
		return
	}
	s.feed.publish(collection, s.snapshot(collection))
}

var _ shared.DocumentStore = (*MemoryStore)(nil)
