// Package cache holds the in-process snapshot of records and reports that
// the engine reads from.
package cache

import (
	"context"
	"slices"
	"sync"

	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/returnflow/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

// SnapshotCache mirrors the return_records and ncr_reports collections. Each
// push from the store replaces the cached slice wholesale.
type SnapshotCache struct {
	store  shared.DocumentStore
	logger *zap.Logger

	mu      sync.RWMutex
	records []returns.ReturnRecord
	reports []returns.NCRReport
	// documents present in the store that failed to decode
	badRecords []returns.StoredRef
	badReports []returns.StoredRef
	ready      chan struct{}
	once       sync.Once
	cancels    []func()
}

// NewSnapshotCache creates an empty cache over store
func NewSnapshotCache(store shared.DocumentStore, logger *zap.Logger) *SnapshotCache {
	return &SnapshotCache{
		store:  store,
		logger: logger.Named("snapshot"),
		ready:  make(chan struct{}),
	}
}

// Start subscribes to both collections. The store pushes the current
// contents during Subscribe, so the cache is populated when Start returns.
func (c *SnapshotCache) Start(ctx context.Context) error {
	cancelRecords, err := c.store.Subscribe(ctx, shared.CollectionReturnRecords, c.replaceRecords)
	if err != nil {
		return err
	}
	cancelReports, err := c.store.Subscribe(ctx, shared.CollectionNCRReports, c.replaceReports)
	if err != nil {
		cancelRecords()
		return err
	}

	c.mu.Lock()
	c.cancels = append(c.cancels, cancelRecords, cancelReports)
	c.mu.Unlock()
	c.once.Do(func() { close(c.ready) })

	c.logger.Info("snapshot cache started",
		zap.Int("records", len(c.Records())),
		zap.Int("reports", len(c.Reports())),
	)
	return nil
}

// Ready is closed once the first snapshots have been loaded
func (c *SnapshotCache) Ready() <-chan struct{} {
	return c.ready
}

// Stop cancels the subscriptions
func (c *SnapshotCache) Stop() {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	c.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

func (c *SnapshotCache) replaceRecords(docs map[string][]byte) {
	records, bad := persistence.DecodeRecords(docs, c.logger)
	c.mu.Lock()
	c.records, c.badRecords = records, bad
	c.mu.Unlock()
}

func (c *SnapshotCache) replaceReports(docs map[string][]byte) {
	reports, bad := persistence.DecodeReports(docs, c.logger)
	c.mu.Lock()
	c.reports, c.badReports = reports, bad
	c.mu.Unlock()
}

// Records returns a copy of the cached records sorted by id
func (c *SnapshotCache) Records() []returns.ReturnRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.records)
}

// Reports returns a copy of the cached reports sorted by id
func (c *SnapshotCache) Reports() []returns.NCRReport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.reports)
}

// Quarantine lists the stored documents the last snapshots could not decode
func (c *SnapshotCache) Quarantine() returns.Quarantine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return returns.Quarantine{
		Records: slices.Clone(c.badRecords),
		Reports: slices.Clone(c.badReports),
	}
}
