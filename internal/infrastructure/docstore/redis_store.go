package docstore

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/returnflow/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// RedisStore keeps each document under its own key, indexes collection members
// in a set and announces changes on a per-collection pub/sub channel.
type RedisStore struct {
	client    *redis.Client
	namespace string
	retries   int
	logger    *zap.Logger

	mu   sync.Mutex
	subs []*redis.PubSub
}

// NewRedisStore wraps an existing client. namespace prefixes every key.
func NewRedisStore(client *redis.Client, namespace string, retries int, logger *zap.Logger) *RedisStore {
	if namespace == "" {
		namespace = "rma"
	}
	if retries < 1 {
		retries = DefaultAtomicRetries
	}
	return &RedisStore{
		client:    client,
		namespace: namespace,
		retries:   retries,
		logger:    logger.Named("redis_store"),
	}
}

func (s *RedisStore) docKey(path string) string {
	return s.namespace + ":doc:" + path
}

func (s *RedisStore) indexKey(collection string) string {
	return s.namespace + ":idx:" + collection
}

func (s *RedisStore) channel(collection string) string {
	return s.namespace + ":chg:" + collection
}

// Get implements shared.DocumentStore
func (s *RedisStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	v, err := s.client.Get(ctx, s.docKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, classify("get", err)
	}
	return v, nil
}

// queueWrite adds the value, its index entry and the change announcement to pipe
func (s *RedisStore) queueWrite(ctx context.Context, pipe redis.Pipeliner, path string, value []byte) {
	pipe.Set(ctx, s.docKey(path), value, 0)
	if collection, id := shared.SplitPath(path); id != "" {
		pipe.SAdd(ctx, s.indexKey(collection), id)
		pipe.Publish(ctx, s.channel(collection), id)
	}
}

// Set implements shared.DocumentStore
func (s *RedisStore) Set(ctx context.Context, path string, value []byte) error {
	if err := validatePath(path); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.queueWrite(ctx, pipe, path, value)
		return nil
	})
	return classify("set", err)
}

// Update implements shared.DocumentStore
func (s *RedisStore) Update(ctx context.Context, path string, patch map[string]any) error {
	res, err := s.RunAtomic(ctx, path, func(cur []byte) ([]byte, error) {
		if cur == nil {
			return nil, shared.ErrNotFound
		}
		return mergePatch(cur, patch)
	})
	if err != nil {
		return err
	}
	if !res.Committed {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Remove implements shared.DocumentStore
func (s *RedisStore) Remove(ctx context.Context, path string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(path))
		if collection, id := shared.SplitPath(path); id != "" {
			pipe.SRem(ctx, s.indexKey(collection), id)
			pipe.Publish(ctx, s.channel(collection), id)
		}
		return nil
	})
	return classify("remove", err)
}

// List implements shared.DocumentStore. Index entries whose document has
// vanished are skipped.
func (s *RedisStore) List(ctx context.Context, collection string) (map[string][]byte, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(collection)).Result()
	if err != nil {
		return nil, classify("list", err)
	}
	out := make(map[string][]byte, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(shared.DocumentPath(collection, id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, classify("list", err)
	}
	for i, v := range values {
		if str, ok := v.(string); ok {
			out[ids[i]] = []byte(str)
		}
	}
	return out, nil
}

// Subscribe implements shared.DocumentStore. Each change announcement triggers
// a fresh List of the collection.
func (s *RedisStore) Subscribe(ctx context.Context, collection string, fn shared.SnapshotFunc) (func(), error) {
	pubsub := s.client.Subscribe(ctx, s.channel(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, classify("subscribe", err)
	}

	docs, err := s.List(ctx, collection)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	fn(docs)

	s.mu.Lock()
	s.subs = append(s.subs, pubsub)
	s.mu.Unlock()

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				docs, err := s.List(subCtx, collection)
				if err != nil {
					s.logger.Warn("failed to reload collection after change",
						zap.String("collection", collection), zap.Error(err))
					continue
				}
				fn(docs)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = pubsub.Close()
			wg.Wait()
		})
	}, nil
}

// RunAtomic implements shared.DocumentStore with WATCH/MULTI/EXEC. A concurrent
// write to the watched key aborts EXEC and the attempt is retried.
func (s *RedisStore) RunAtomic(ctx context.Context, path string, fn shared.AtomicUpdateFunc) (shared.AtomicResult, error) {
	if err := validatePath(path); err != nil {
		return shared.AtomicResult{}, err
	}
	key := s.docKey(path)

	for attempt := 1; attempt <= s.retries; attempt++ {
		var result shared.AtomicResult
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				cur = nil
			} else if err != nil {
				return err
			}

			next, err := fn(cur)
			if err != nil {
				return &abortError{err: err}
			}
			if next == nil {
				result = shared.AtomicResult{Committed: true, Value: cur}
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				s.queueWrite(ctx, pipe, path, next)
				return nil
			})
			if err != nil {
				return err
			}
			result = shared.AtomicResult{Committed: true, Value: next}
			return nil
		}, key)

		var abort *abortError
		switch {
		case err == nil:
			return result, nil
		case errors.As(err, &abort):
			return shared.AtomicResult{}, abort.err
		case errors.Is(err, redis.TxFailedErr):
			s.logger.Debug("atomic update conflicted, retrying",
				zap.String("path", path), zap.Int("attempt", attempt))
			continue
		default:
			return shared.AtomicResult{}, classify("atomic", err)
		}
	}

	s.logger.Warn("atomic update gave up after retries",
		zap.String("path", path), zap.Int("attempts", s.retries))
	return shared.AtomicResult{Committed: false}, nil
}

// Close closes open subscriptions. The client is owned by the caller.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.subs {
		_ = p.Close()
	}
	s.subs = nil
	return nil
}

var _ shared.DocumentStore = (*RedisStore)(nil)
