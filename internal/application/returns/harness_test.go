package returns

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/returnflow/backend/internal/infrastructure/cache"
	"github.com/returnflow/backend/internal/infrastructure/docstore"
	"github.com/returnflow/backend/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() Clock {
	return Clock{Location: time.UTC, NowFunc: func() time.Time { return testNow }}
}

// recordingPublisher collects published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// engine wires the services over an in-memory store the same way the server does
type engine struct {
	store     *docstore.MemoryStore
	records   *persistence.ReturnRecordRepository
	reports   *persistence.NCRReportRepository
	snapshot  *cache.SnapshotCache
	allocator *SequenceAllocator
	recordSvc *RecordService
	ncrSvc    *NCRService
	sync      *Synchronizer
	reconcile *ReconciliationService
	events    *recordingPublisher
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()

	e := &engine{store: docstore.NewMemoryStore(), events: &recordingPublisher{}}
	e.records = persistence.NewReturnRecordRepository(e.store, log)
	e.reports = persistence.NewNCRReportRepository(e.store, log)
	e.snapshot = cache.NewSnapshotCache(e.store, log)
	require.NoError(t, e.snapshot.Start(ctx))
	t.Cleanup(e.snapshot.Stop)

	clock := fixedClock()
	guard := returns.NewLockGuard()
	e.allocator = NewSequenceAllocator(e.store, clock, log)
	e.sync = NewSynchronizer(e.records, e.reports, e.snapshot, log)

	e.recordSvc = NewRecordService(e.records, e.snapshot, e.allocator, guard, clock, log)
	e.recordSvc.SetEventPublisher(e.events)

	e.ncrSvc = NewNCRService(e.reports, e.records, e.snapshot, e.allocator, e.sync, guard, clock, log)
	e.ncrSvc.SetEventPublisher(e.events)

	e.reconcile = NewReconciliationService(e.records, e.snapshot, returns.DefaultRepairDefaults(), clock, log)
	e.reconcile.SetEventPublisher(e.events)
	return e
}

func (e *engine) putRecord(t *testing.T, rec returns.ReturnRecord) {
	t.Helper()
	require.NoError(t, e.records.Save(context.Background(), &rec))
}

func (e *engine) putReport(t *testing.T, r returns.NCRReport) {
	t.Helper()
	require.NoError(t, e.reports.Save(context.Background(), &r))
}

func (e *engine) record(t *testing.T, id string) *returns.ReturnRecord {
	t.Helper()
	rec, err := e.records.FindByID(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func qty(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
