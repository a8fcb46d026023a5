package returns

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/returnflow/backend/internal/domain/sequence"
	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/returnflow/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ErrNumberUnavailable is returned when a document number could not be allocated
var ErrNumberUnavailable = shared.NewDomainError("NUMBER_UNAVAILABLE", "Document number could not be allocated, try again")

// SequenceAllocator hands out document numbers from the counters collection.
// Uniqueness rests entirely on the store's transaction primitive.
type SequenceAllocator struct {
	store   shared.DocumentStore
	clock   Clock
	logger  *zap.Logger
	metrics *telemetry.EngineMetrics
}

// NewSequenceAllocator creates a new SequenceAllocator
func NewSequenceAllocator(store shared.DocumentStore, clock Clock, logger *zap.Logger) *SequenceAllocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SequenceAllocator{
		store:  store,
		clock:  clock,
		logger: logger.Named("allocator"),
	}
}

// SetMetrics sets the engine metrics recorder
func (a *SequenceAllocator) SetMetrics(m *telemetry.EngineMetrics) {
	a.metrics = m
}

// Allocate returns the next number of family. When the transaction does not
// commit it returns a sentinel (see sequence.IsSentinel) instead of failing.
func (a *SequenceAllocator) Allocate(ctx context.Context, family sequence.Family) string {
	now := a.clock.Now()
	res, err := a.store.RunAtomic(ctx, family.Path(), func(current []byte) ([]byte, error) {
		c, exists, err := sequence.DecodeCounter(current)
		if err != nil {
			return nil, err
		}
		return json.Marshal(family.Next(c, exists, now))
	})
	if err == nil && res.Committed {
		c, ok, decodeErr := sequence.DecodeCounter(res.Value)
		if decodeErr == nil && ok {
			number := family.Format(c)
			a.metrics.NumberAllocated(ctx, family.Key, telemetry.OutcomeSuccess)
			return number
		}
		err = decodeErr
	}

	sentinel := family.Sentinel(now)
	a.logger.Warn("counter transaction did not commit, returning sentinel",
		zap.String("family", family.Name),
		zap.String("sentinel", sentinel),
		zap.Bool("committed", res.Committed),
		zap.Error(err),
	)
	a.metrics.NumberAllocated(ctx, family.Key, telemetry.OutcomeFailure)
	return sentinel
}

// AllocateOrFail is Allocate for callers that cannot use a sentinel
func (a *SequenceAllocator) AllocateOrFail(ctx context.Context, family sequence.Family) (string, error) {
	number := a.Allocate(ctx, family)
	if sequence.IsSentinel(number) {
		return "", ErrNumberUnavailable
	}
	return number, nil
}

// Rollback gives back the last number of family. It is best effort: failures
// are logged and never returned.
func (a *SequenceAllocator) Rollback(ctx context.Context, family sequence.Family) {
	res, err := a.store.RunAtomic(ctx, family.Path(), func(current []byte) ([]byte, error) {
		c, exists, err := sequence.DecodeCounter(current)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, nil
		}
		return json.Marshal(family.Rewind(c))
	})
	if err != nil || !res.Committed {
		a.logger.Error("counter rollback failed",
			zap.String("family", family.Name),
			zap.Bool("committed", res.Committed),
			zap.Error(err),
		)
		a.metrics.CounterRolledBack(ctx, family.Key, telemetry.OutcomeFailure)
		return
	}
	a.logger.Info("counter rolled back", zap.String("family", family.Name))
	a.metrics.CounterRolledBack(ctx, family.Key, telemetry.OutcomeSuccess)
}

// Peek returns the stored counter of family without changing it
func (a *SequenceAllocator) Peek(ctx context.Context, family sequence.Family) (sequence.Counter, bool, error) {
	raw, err := a.store.Get(ctx, family.Path())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return sequence.Counter{}, false, nil
		}
		return sequence.Counter{}, false, err
	}
	return sequence.DecodeCounter(raw)
}
