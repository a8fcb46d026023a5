package returns

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/returnflow/backend/internal/domain/sequence"
	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/returnflow/backend/internal/infrastructure/logger"
	"github.com/returnflow/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// NCRService handles problem reports and the return records they produce
type NCRService struct {
	reports        returns.NCRReportRepository
	records        returns.RecordRepository
	snapshot       Snapshot
	allocator      *SequenceAllocator
	synchronizer   *Synchronizer
	guard          returns.LockGuard
	mutex          DocumentMutex
	clock          Clock
	eventPublisher shared.EventPublisher
	metrics        *telemetry.EngineMetrics
	logger         *zap.Logger
}

// NewNCRService creates a new NCRService
func NewNCRService(
	reports returns.NCRReportRepository,
	records returns.RecordRepository,
	snapshot Snapshot,
	allocator *SequenceAllocator,
	synchronizer *Synchronizer,
	guard returns.LockGuard,
	clock Clock,
	log *zap.Logger,
) *NCRService {
	if log == nil {
		log = zap.NewNop()
	}
	return &NCRService{
		reports:      reports,
		records:      records,
		snapshot:     snapshot,
		allocator:    allocator,
		synchronizer: synchronizer,
		guard:        guard,
		clock:        clock,
		logger:       log.Named("ncr"),
	}
}

// SetEventPublisher sets the event publisher for notifications
func (s *NCRService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetDocumentMutex makes the derived record's lock check single-writer
func (s *NCRService) SetDocumentMutex(m DocumentMutex) {
	s.mutex = m
}

// SetMetrics sets the engine metrics recorder
func (s *NCRService) SetMetrics(m *telemetry.EngineMetrics) {
	s.metrics = m
}

// List returns every known report from the snapshot
func (s *NCRService) List(includeCanceled bool) []returns.NCRReport {
	var out []returns.NCRReport
	for _, r := range s.snapshot.Reports() {
		if includeCanceled || r.IsActive() {
			out = append(out, r)
		}
	}
	return out
}

// GetByID reads a report from the store
func (s *NCRService) GetByID(ctx context.Context, id string) (*returns.NCRReport, error) {
	return s.reports.FindByID(ctx, id)
}

// Submit stores a new report under a fresh NCR number and creates the return
// record it produces. A record that fails to persist is left for the repair sweep.
func (s *NCRService) Submit(ctx context.Context, input SubmitNCRInput) (*SubmitNCRResult, error) {
	now := s.clock.Now()
	report := returns.NCRReport{
		ID:        uuid.New().String(),
		Date:      input.Date,
		Status:    returns.NCRStatusOpen,
		Founder:   input.Founder,
		RefNo:     input.RefNo,
		Item:      input.Item,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if report.Date == "" {
		report.Date = s.clock.Today()
	}
	if err := report.Validate(); err != nil {
		return nil, err
	}

	productKey := report.Item.ProductCode
	if productKey == "" {
		productKey = report.Item.ProductName
	}
	release, err := checkDocumentLock(ctx, lockCheck{
		guard:    s.guard,
		mutex:    s.mutex,
		snapshot: s.snapshot,
		records:  s.records,
		metrics:  s.metrics,
	}, report.RefNo, productKey, "")
	if err != nil {
		return nil, err
	}
	defer release()

	ncrNo, err := s.allocator.AllocateOrFail(ctx, sequence.FamilyNCR)
	if err != nil {
		return nil, err
	}
	report.NCRNo = ncrNo

	if err := s.reports.Save(ctx, &report); err != nil {
		s.allocator.Rollback(ctx, sequence.FamilyNCR)
		return nil, err
	}

	result := &SubmitNCRResult{Report: report}
	status := returns.InitialStatusForReport(report)
	rec, err := returns.RecordFromReport(report, returns.DerivedRecordID(report.ID, "1"), status)
	if err == nil {
		if status == returns.StatusRequested {
			rec.DateRequested = report.Date
		}
		rec.CreatedAt = now
		rec.UpdatedAt = now
		err = s.records.Save(ctx, &rec)
	}
	if err != nil {
		logger.L(ctx).Warn("report stored without its return record, repair sweep will rebuild it",
			zap.String("ncr_no", ncrNo),
			zap.String("report_id", report.ID),
			zap.Error(err),
		)
	} else {
		result.Record = &rec
		result.RecordCreated = true
	}

	logger.L(ctx).Info("ncr report submitted",
		zap.String("ncr_no", ncrNo),
		zap.String("report_id", report.ID),
		zap.String("record_status", string(status)),
	)
	publishEvents(ctx, s.eventPublisher, s.logger, returns.NewNCRSubmittedEvent(report))
	return result, nil
}

// Update applies a partial change to a report and mirrors it onto linked records
func (s *NCRService) Update(ctx context.Context, id string, patch map[string]any) (*NCRChangeResult, error) {
	old, err := s.reports.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !old.IsActive() {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("report %s is canceled", old.NCRNo))
	}
	if _, ok := patch["ncrNo"]; ok {
		return nil, shared.NewDomainError("INVALID_INPUT", "ncrNo cannot be changed")
	}
	if _, ok := patch["status"]; ok {
		return nil, shared.NewDomainError("INVALID_INPUT", "use cancel to change the report status")
	}

	updated, err := old.Merge(patch)
	if err != nil {
		return nil, err
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.clock.Now()
	if err := s.reports.Save(ctx, &updated); err != nil {
		return nil, err
	}

	sync, err := s.synchronizer.OnNCRUpdated(ctx, *old, patch)
	if err != nil {
		return nil, err
	}
	return &NCRChangeResult{Report: updated, Sync: sync}, nil
}

// Cancel soft-cancels a report and every record produced from it
func (s *NCRService) Cancel(ctx context.Context, id string) (*NCRChangeResult, error) {
	report, err := s.reports.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !report.IsActive() {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("report %s is already canceled", report.NCRNo))
	}

	sync, err := s.synchronizer.OnNCRCanceled(ctx, *report)
	if err != nil {
		return nil, err
	}
	report.Status = returns.NCRStatusCanceled

	logger.L(ctx).Info("ncr report canceled",
		zap.String("ncr_no", report.NCRNo),
		zap.Int("records_canceled", sync.Succeeded),
	)
	publishEvents(ctx, s.eventPublisher, s.logger, returns.NewNCRCanceledEvent(*report, sync.Succeeded))
	return &NCRChangeResult{Report: *report, Sync: sync}, nil
}
