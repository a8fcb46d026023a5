// Package bootstrap wires the return engine from configuration. The API server
// and the returnctl command share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	returnsapp "github.com/returnflow/backend/internal/application/returns"
	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/returnflow/backend/internal/infrastructure/auth"
	"github.com/returnflow/backend/internal/infrastructure/cache"
	"github.com/returnflow/backend/internal/infrastructure/config"
	"github.com/returnflow/backend/internal/infrastructure/docstore"
	"github.com/returnflow/backend/internal/infrastructure/event"
	"github.com/returnflow/backend/internal/infrastructure/lock"
	"github.com/returnflow/backend/internal/infrastructure/notify"
	"github.com/returnflow/backend/internal/infrastructure/persistence"
	"github.com/returnflow/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine holds the assembled services and everything that must be closed
// with them
type Engine struct {
	Backend   *docstore.Backend
	Snapshot  *cache.SnapshotCache
	Allocator *returnsapp.SequenceAllocator
	Records   *returnsapp.RecordService
	Reports   *returnsapp.NCRService
	Reconcile *returnsapp.ReconciliationService
	Verifier  *auth.SecretVerifier // nil when no admin secret is configured

	bus     *event.InMemoryEventBus
	webhook *notify.WebhookNotifier
	log     *zap.Logger
}

// RepairDefaults converts the engine section into the values used when a
// record is rebuilt from a report
func RepairDefaults(cfg config.EngineConfig) returns.RepairDefaults {
	d := returns.DefaultRepairDefaults()
	if cfg.RepairQuantity > 0 {
		d.Quantity = decimal.NewFromInt(cfg.RepairQuantity)
	}
	if cfg.RepairUnit != "" {
		d.Unit = cfg.RepairUnit
	}
	if cfg.RepairBranch != "" {
		d.Branch = cfg.RepairBranch
	}
	if cfg.RepairCustomer != "" {
		d.Customer = cfg.RepairCustomer
	}
	if cfg.RepairDestination != "" {
		d.Destination = cfg.RepairDestination
	}
	return d
}

// Build opens the store and starts the snapshot cache and event bus.
// metrics may be nil.
func Build(ctx context.Context, cfg *config.Config, metrics *telemetry.EngineMetrics, log *zap.Logger) (*Engine, error) {
	backend, err := docstore.Open(ctx, cfg, metrics, log)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}

	e := &Engine{Backend: backend, log: log}

	records := persistence.NewReturnRecordRepository(backend.Store, log)
	reports := persistence.NewNCRReportRepository(backend.Store, log)

	e.Snapshot = cache.NewSnapshotCache(backend.Store, log)
	if err := e.Snapshot.Start(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("start snapshot cache: %w", err)
	}

	clock := returnsapp.NewClock(cfg.App.Location())
	guard := returns.NewLockGuard(cfg.Engine.PlaceholderDocuments...)

	e.Allocator = returnsapp.NewSequenceAllocator(backend.Store, clock, log)
	synchronizer := returnsapp.NewSynchronizer(records, reports, e.Snapshot, log)
	e.Records = returnsapp.NewRecordService(records, e.Snapshot, e.Allocator, guard, clock, log)
	e.Reports = returnsapp.NewNCRService(reports, records, e.Snapshot, e.Allocator, synchronizer, guard, clock, log)
	e.Reconcile = returnsapp.NewReconciliationService(records, e.Snapshot, RepairDefaults(cfg.Engine), clock, log)

	e.Allocator.SetMetrics(metrics)
	synchronizer.SetMetrics(metrics)
	e.Records.SetMetrics(metrics)
	e.Reports.SetMetrics(metrics)
	e.Reconcile.SetMetrics(metrics)

	if mutex := newDocumentMutex(cfg, backend, log); mutex != nil {
		e.Records.SetDocumentMutex(mutex)
		e.Reports.SetDocumentMutex(mutex)
	}

	var notifier returnsapp.Notifier = notify.LogNotifier{}
	if cfg.Notify.Enabled && cfg.Notify.WebhookURL != "" {
		e.webhook = notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout, log)
		notifier = e.webhook
	}
	e.bus = event.NewInMemoryEventBus(log)
	e.bus.Subscribe(returnsapp.NewNotificationHandler(notifier, log))
	if err := e.bus.Start(ctx); err != nil {
		e.Snapshot.Stop()
		_ = backend.Close()
		return nil, fmt.Errorf("start event bus: %w", err)
	}
	e.Records.SetEventPublisher(e.bus)
	e.Reports.SetEventPublisher(e.bus)
	e.Reconcile.SetEventPublisher(e.bus)

	verifier, err := auth.NewSecretVerifier(cfg.Admin)
	switch {
	case errors.Is(err, auth.ErrNoSecretConfigured):
		log.Warn("admin secret not configured, destructive operations are disabled")
	case err != nil:
		_ = e.Close(ctx)
		return nil, fmt.Errorf("admin secret: %w", err)
	default:
		e.Verifier = verifier
	}

	return e, nil
}

func newDocumentMutex(cfg *config.Config, backend *docstore.Backend, log *zap.Logger) returnsapp.DocumentMutex {
	if !cfg.Lock.Enabled {
		return nil
	}
	if backend.Redis != nil {
		log.Info("document mutex backed by redis")
		return lock.NewRedisDocumentMutex(backend.Redis, cfg.Store.KeyNamespace, cfg.Lock.TTL, cfg.Lock.Wait, log)
	}
	return lock.NewLocalDocumentMutex(cfg.Lock.Wait)
}

// Close drains pending notifications and releases the store
func (e *Engine) Close(ctx context.Context) error {
	if e.bus != nil {
		if err := e.bus.Stop(ctx); err != nil {
			e.log.Warn("event bus stop", zap.Error(err))
		}
	}
	if e.webhook != nil {
		if err := e.webhook.Flush(ctx); err != nil {
			e.log.Warn("webhook flush", zap.Error(err))
		}
	}
	e.Snapshot.Stop()
	return e.Backend.Close()
}
