package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/returnflow/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Instrumented wraps a store with spans and latency metrics
type Instrumented struct {
	next    shared.DocumentStore
	driver  string
	metrics *telemetry.EngineMetrics
}

// NewInstrumented decorates next. metrics may be nil.
func NewInstrumented(next shared.DocumentStore, driver string, metrics *telemetry.EngineMetrics) *Instrumented {
	return &Instrumented{next: next, driver: driver, metrics: metrics}
}

func (s *Instrumented) observe(ctx context.Context, op, path string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "docstore."+op,
		telemetry.AttrDriver.String(s.driver),
		attribute.String("store.path", path),
	)
	return ctx, func(err error) {
		s.metrics.StoreCall(ctx, s.driver, op, time.Since(start))
		telemetry.EndSpan(span, err)
	}
}

// Get implements shared.DocumentStore
func (s *Instrumented) Get(ctx context.Context, path string) (_ []byte, err error) {
	ctx, done := s.observe(ctx, "get", path)
	defer func() { done(ignoreNotFound(err)) }()
	return s.next.Get(ctx, path)
}

// Set implements shared.DocumentStore
func (s *Instrumented) Set(ctx context.Context, path string, value []byte) (err error) {
	ctx, done := s.observe(ctx, "set", path)
	defer func() { done(err) }()
	return s.next.Set(ctx, path, value)
}

// Update implements shared.DocumentStore
func (s *Instrumented) Update(ctx context.Context, path string, patch map[string]any) (err error) {
	ctx, done := s.observe(ctx, "update", path)
	defer func() { done(err) }()
	return s.next.Update(ctx, path, patch)
}

// Remove implements shared.DocumentStore
func (s *Instrumented) Remove(ctx context.Context, path string) (err error) {
	ctx, done := s.observe(ctx, "remove", path)
	defer func() { done(err) }()
	return s.next.Remove(ctx, path)
}

// List implements shared.DocumentStore
func (s *Instrumented) List(ctx context.Context, collection string) (_ map[string][]byte, err error) {
	ctx, done := s.observe(ctx, "list", collection)
	defer func() { done(err) }()
	return s.next.List(ctx, collection)
}

// Subscribe implements shared.DocumentStore
func (s *Instrumented) Subscribe(ctx context.Context, collection string, fn shared.SnapshotFunc) (func(), error) {
	return s.next.Subscribe(ctx, collection, fn)
}

// RunAtomic implements shared.DocumentStore
func (s *Instrumented) RunAtomic(ctx context.Context, path string, fn shared.AtomicUpdateFunc) (_ shared.AtomicResult, err error) {
	ctx, done := s.observe(ctx, "atomic", path)
	defer func() { done(err) }()
	return s.next.RunAtomic(ctx, path, fn)
}

// Close implements shared.DocumentStore
func (s *Instrumented) Close() error {
	return s.next.Close()
}

func ignoreNotFound(err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	return err
}

var _ shared.DocumentStore = (*Instrumented)(nil)
