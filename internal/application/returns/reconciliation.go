package returns

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/returnflow/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ReconciliationService runs the operator maintenance sweeps over the cached
// snapshot. Sweeps always run to the end and report counts.
type ReconciliationService struct {
	records        returns.RecordRepository
	snapshot       Snapshot
	defaults       returns.RepairDefaults
	clock          Clock
	newID          func(now time.Time) string
	eventPublisher shared.EventPublisher
	metrics        *telemetry.EngineMetrics
	logger         *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(records returns.RecordRepository, snapshot Snapshot, defaults returns.RepairDefaults, clock Clock, logger *zap.Logger) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{
		records:  records,
		snapshot: snapshot,
		defaults: defaults,
		clock:    clock,
		newID: func(now time.Time) string {
			return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
		},
		logger: logger.Named("reconcile"),
	}
}

// SetEventPublisher sets the event publisher for notifications
func (s *ReconciliationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the engine metrics recorder
func (s *ReconciliationService) SetMetrics(m *telemetry.EngineMetrics) {
	s.metrics = m
}

// PurgeOrphans deletes NCR-linked records whose report is missing or canceled
func (s *ReconciliationService) PurgeOrphans(ctx context.Context) ReconcileResult {
	q := s.snapshot.Quarantine()
	orphans := returns.FindOrphans(s.snapshot.Records(), s.snapshot.Reports(), q)
	result := ReconcileResult{Job: JobOrphanSweep, Found: len(orphans)}
	s.logQuarantine(q)

	for _, id := range orphans {
		if err := s.records.Delete(ctx, id); err != nil {
			result.Failed++
			s.logger.Warn("failed to delete orphan record", zap.String("record_id", id), zap.Error(err))
			continue
		}
		result.Succeeded++
		result.IDs = append(result.IDs, id)
	}

	s.finish(ctx, result)
	return result
}

// RepairMissing rebuilds the record of every active report that has none.
// Rebuilt records get repair ids, not new business numbers.
func (s *ReconciliationService) RepairMissing(ctx context.Context) ReconcileResult {
	q := s.snapshot.Quarantine()
	missing := returns.FindMissing(s.snapshot.Records(), s.snapshot.Reports(), q)
	result := ReconcileResult{Job: JobRepairSweep, Found: len(missing)}
	s.logQuarantine(q)
	now := s.clock.Now()
	today := s.clock.Today()

	for _, report := range missing {
		id := returns.DerivedRecordID(report.ID, "R"+s.newID(now))
		rec, err := returns.SynthesizeRecord(report, id, today, s.defaults)
		if err == nil {
			rec.CreatedAt = now
			rec.UpdatedAt = now
			err = s.records.Save(ctx, &rec)
		}
		if err != nil {
			result.Failed++
			s.logger.Warn("failed to rebuild record for report",
				zap.String("ncr_no", report.NCRNo),
				zap.String("report_id", report.ID),
				zap.Error(err),
			)
			continue
		}
		result.Succeeded++
		result.IDs = append(result.IDs, rec.ID)
	}

	s.finish(ctx, result)
	return result
}

func (s *ReconciliationService) logQuarantine(q returns.Quarantine) {
	if len(q.Records) == 0 && len(q.Reports) == 0 {
		return
	}
	s.logger.Warn("sweep held back by undecodable documents",
		zap.Int("records", len(q.Records)),
		zap.Int("reports", len(q.Reports)),
	)
}

func (s *ReconciliationService) finish(ctx context.Context, result ReconcileResult) {
	s.metrics.ReconcileItems(ctx, result.Job, telemetry.OutcomeSuccess, result.Succeeded)
	s.metrics.ReconcileItems(ctx, result.Job, telemetry.OutcomeFailure, result.Failed)
	s.logger.Info("reconciliation finished",
		zap.String("job", result.Job),
		zap.Int("found", result.Found),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	publishEvents(ctx, s.eventPublisher, s.logger,
		returns.NewReconcileCompletedEvent(result.Job, result.Found, result.Succeeded, result.Failed))
}
