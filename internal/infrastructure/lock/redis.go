package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/returnflow/backend/internal/domain/shared"
	"go.uber.org/zap"
)

const (
	keyPrefix       = "lock:doc:"
	retryInterval   = 50 * time.Millisecond
	releaseDeadline = 2 * time.Second
)

// RedisDocumentMutex serializes writers across processes with a Redis lease.
// A holder that dies keeps the key until the TTL expires.
type RedisDocumentMutex struct {
	locker    *redislock.Client
	namespace string
	ttl       time.Duration
	wait      time.Duration
	logger    *zap.Logger
}

// NewRedisDocumentMutex creates a mutex over client. Keys are prefixed with namespace.
func NewRedisDocumentMutex(client redis.UniversalClient, namespace string, ttl, wait time.Duration, logger *zap.Logger) *RedisDocumentMutex {
	return &RedisDocumentMutex{
		locker:    redislock.New(client),
		namespace: namespace,
		ttl:       ttl,
		wait:      wait,
		logger:    logger.Named("doclock"),
	}
}

func (m *RedisDocumentMutex) key(docNo string) string {
	if m.namespace == "" {
		return keyPrefix + docNo
	}
	return m.namespace + ":" + keyPrefix + docNo
}

// Lock obtains the lease for key, retrying until the configured wait elapses
func (m *RedisDocumentMutex) Lock(ctx context.Context, key string) (func(), error) {
	obtainCtx := ctx
	if m.wait > 0 {
		var cancel context.CancelFunc
		obtainCtx, cancel = context.WithTimeout(ctx, m.wait)
		defer cancel()
	}

	lease, err := m.locker.Obtain(obtainCtx, m.key(key), m.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(retryInterval),
	})
	switch {
	case errors.Is(err, redislock.ErrNotObtained),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return nil, shared.WrapDomainError(shared.ErrConcurrencyConflict.Code,
			"Document number is busy, try again", err)
	case err != nil:
		return nil, shared.WrapDomainError(shared.ErrStoreUnavailable.Code, shared.ErrStoreUnavailable.Message, err)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseDeadline)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			m.logger.Warn("failed to release document lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
