package returns

import (
	"context"

	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/returnflow/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Synchronizer keeps return records in line with the report they were produced from.
// Every target is written independently: one failure never blocks the others.
type Synchronizer struct {
	records  returns.RecordRepository
	reports  returns.NCRReportRepository
	snapshot Snapshot
	metrics  *telemetry.EngineMetrics
	logger   *zap.Logger
}

// NewSynchronizer creates a new Synchronizer
func NewSynchronizer(records returns.RecordRepository, reports returns.NCRReportRepository, snapshot Snapshot, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		records:  records,
		reports:  reports,
		snapshot: snapshot,
		logger:   logger.Named("synchronizer"),
	}
}

// SetMetrics sets the engine metrics recorder
func (s *Synchronizer) SetMetrics(m *telemetry.EngineMetrics) {
	s.metrics = m
}

// OnNCRUpdated mirrors the effective report (old merged with patch) onto every
// record linked to the old report number and product code.
func (s *Synchronizer) OnNCRUpdated(ctx context.Context, old returns.NCRReport, patch map[string]any) (SyncResult, error) {
	linked := returns.LinkedRecords(old, s.snapshot.Records())
	if len(linked) == 0 {
		return SyncResult{}, nil
	}

	effective, err := old.Merge(patch)
	if err != nil {
		return SyncResult{}, err
	}
	fields, err := returns.ProjectionPatch(effective)
	if err != nil {
		return SyncResult{}, err
	}

	return s.fanOut(ctx, old, linked, fields), nil
}

// OnNCRCanceled soft-cancels the report and every record linked to it.
// Only a failure to cancel the report itself is returned as an error.
func (s *Synchronizer) OnNCRCanceled(ctx context.Context, report returns.NCRReport) (SyncResult, error) {
	if err := s.reports.Patch(ctx, report.ID, map[string]any{"status": string(returns.NCRStatusCanceled)}); err != nil {
		return SyncResult{}, err
	}
	linked := returns.LinkedRecords(report, s.snapshot.Records())
	return s.fanOut(ctx, report, linked, map[string]any{"status": string(returns.StatusCanceled)}), nil
}

func (s *Synchronizer) fanOut(ctx context.Context, report returns.NCRReport, linked []returns.ReturnRecord, fields map[string]any) SyncResult {
	result := SyncResult{Matched: len(linked)}
	for _, rec := range linked {
		if err := s.records.Patch(ctx, rec.ID, fields); err != nil {
			result.Failed++
			s.logger.Warn("failed to sync linked record",
				zap.String("ncr_no", report.NCRNo),
				zap.String("record_id", rec.ID),
				zap.Error(err),
			)
			continue
		}
		result.Succeeded++
	}

	s.metrics.SyncTargets(ctx, telemetry.OutcomeSuccess, result.Succeeded)
	s.metrics.SyncTargets(ctx, telemetry.OutcomeFailure, result.Failed)
	s.logger.Info("linked records synced",
		zap.String("ncr_no", report.NCRNo),
		zap.Int("matched", result.Matched),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	return result
}
