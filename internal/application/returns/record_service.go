package returns

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/returnflow/backend/internal/domain/sequence"
	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/returnflow/backend/internal/infrastructure/logger"
	"github.com/returnflow/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecordService drives return records through intake and the workflow tracks
type RecordService struct {
	records        returns.RecordRepository
	snapshot       Snapshot
	allocator      *SequenceAllocator
	guard          returns.LockGuard
	mutex          DocumentMutex
	clock          Clock
	eventPublisher shared.EventPublisher
	metrics        *telemetry.EngineMetrics
	logger         *zap.Logger
}

// NewRecordService creates a new RecordService
func NewRecordService(
	records returns.RecordRepository,
	snapshot Snapshot,
	allocator *SequenceAllocator,
	guard returns.LockGuard,
	clock Clock,
	log *zap.Logger,
) *RecordService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecordService{
		records:   records,
		snapshot:  snapshot,
		allocator: allocator,
		guard:     guard,
		clock:     clock,
		logger:    log.Named("records"),
	}
}

// SetEventPublisher sets the event publisher for notifications
func (s *RecordService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetDocumentMutex makes lock checks single-writer per document number.
// With a mutex set the check also reads records from the store instead of the snapshot.
func (s *RecordService) SetDocumentMutex(m DocumentMutex) {
	s.mutex = m
}

// SetMetrics sets the engine metrics recorder
func (s *RecordService) SetMetrics(m *telemetry.EngineMetrics) {
	s.metrics = m
}

// List returns snapshot records passing filter
func (s *RecordService) List(filter RecordFilter) []returns.ReturnRecord {
	var out []returns.ReturnRecord
	for _, rec := range s.snapshot.Records() {
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// GetByID reads a record from the store
func (s *RecordService) GetByID(ctx context.Context, id string) (*returns.ReturnRecord, error) {
	return s.records.FindByID(ctx, id)
}

// acquire runs the document lock check for docNo. On success the returned
// release must be called once the write has been issued.
func (s *RecordService) acquire(ctx context.Context, docNo, productKey, excludeID string) (func(), error) {
	return checkDocumentLock(ctx, lockCheck{
		guard:    s.guard,
		mutex:    s.mutex,
		snapshot: s.snapshot,
		records:  s.records,
		metrics:  s.metrics,
	}, docNo, productKey, excludeID)
}

// Create stores a new logistics intake line with a fresh RT number
func (s *RecordService) Create(ctx context.Context, input CreateRecordInput) (*returns.ReturnRecord, error) {
	docNo := input.DocumentNo
	if docNo == "" {
		docNo = input.RefNo
	}
	productKey := input.ProductCode
	if productKey == "" {
		productKey = input.ProductName
	}

	release, err := s.acquire(ctx, docNo, productKey, "")
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.clock.Now()
	today := s.clock.Today()
	rec := &returns.ReturnRecord{
		ID:           uuid.New().String(),
		DocumentNo:   input.DocumentNo,
		RefNo:        input.RefNo,
		Status:       returns.StatusDraft,
		DocumentType: returns.DocumentTypeLogistics,
		ProductCode:  strings.TrimSpace(input.ProductCode),
		ProductName:  strings.TrimSpace(input.ProductName),
		Quantity:     input.Quantity,
		Unit:         input.Unit,
		Customer:     input.Customer,
		Branch:       input.Branch,
		Destination:  input.Destination,
		Founder:      input.Founder,
		PricePerUnit: input.PricePerUnit,
		PriceBill:    input.PriceBill,
		ProblemFlags: input.Problems,
		CostInfo:     input.Cost,
		Notes:        input.Notes,
		Date:         input.Date,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if rec.Date == "" {
		rec.Date = today
	}
	if input.Submit {
		if err := rec.Apply(returns.ActionSubmit, returns.StatusDraft, today); err != nil {
			return nil, err
		}
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	returnNo, err := s.allocator.AllocateOrFail(ctx, sequence.FamilyReturn)
	if err != nil {
		return nil, err
	}
	rec.ReturnNo = returnNo

	if err := s.records.Save(ctx, rec); err != nil {
		s.allocator.Rollback(ctx, sequence.FamilyReturn)
		return nil, err
	}

	logger.L(ctx).Info("return record created",
		zap.String("record_id", rec.ID),
		zap.String("return_no", rec.ReturnNo),
		zap.String("document_no", rec.EffectiveDocumentNo()),
	)
	s.publish(ctx, returns.NewRecordCreatedEvent(*rec))
	return rec, nil
}

// Update changes content fields of a record that is still in intake
func (s *RecordService) Update(ctx context.Context, id string, input UpdateRecordInput) (*returns.ReturnRecord, error) {
	current, err := s.records.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.IsInitial() {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("record %s is %s and can no longer be edited", id, current.Status))
	}

	candidate := *current
	applyUpdate(&candidate, input)

	release, err := s.acquire(ctx, candidate.EffectiveDocumentNo(), candidate.ProductKey(), id)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.records.Mutate(ctx, id, func(rec *returns.ReturnRecord) error {
		if !rec.Status.IsInitial() {
			return shared.NewDomainError("INVALID_STATE",
				fmt.Sprintf("record %s is %s and can no longer be edited", id, rec.Status))
		}
		applyUpdate(rec, input)
		rec.UpdatedAt = s.clock.Now()
		return rec.Validate()
	})
}

func applyUpdate(rec *returns.ReturnRecord, in UpdateRecordInput) {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	setDecimal := func(dst *decimal.Decimal, v *decimal.Decimal) {
		if v != nil {
			*dst = *v
		}
	}
	setString(&rec.DocumentNo, in.DocumentNo)
	setString(&rec.ProductCode, in.ProductCode)
	setString(&rec.ProductName, in.ProductName)
	setDecimal(&rec.Quantity, in.Quantity)
	setString(&rec.Unit, in.Unit)
	setString(&rec.Customer, in.Customer)
	setString(&rec.Branch, in.Branch)
	setString(&rec.Destination, in.Destination)
	setDecimal(&rec.PricePerUnit, in.PricePerUnit)
	setDecimal(&rec.PriceBill, in.PriceBill)
	setString(&rec.Notes, in.Notes)
	setString(&rec.ControlDate, in.ControlDate)
}

// Transition applies an operator action. expected is the status the operator
// was looking at; a record that moved in the meantime is rejected.
func (s *RecordService) Transition(ctx context.Context, id string, action returns.Action, expected returns.Status) (*returns.ReturnRecord, error) {
	if !action.IsValid() {
		return nil, shared.NewDomainError("INVALID_ACTION", fmt.Sprintf("unknown action %q", action))
	}
	if action == returns.ActionSchedulePickup {
		return nil, shared.NewDomainError("INVALID_ACTION", "Pickups are scheduled through collection orders")
	}

	today := s.clock.Today()
	rec, err := s.records.Mutate(ctx, id, func(rec *returns.ReturnRecord) error {
		if err := rec.Apply(action, expected, today); err != nil {
			return err
		}
		rec.UpdatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		s.metrics.Transition(ctx, string(action), telemetry.OutcomeFailure)
		return nil, err
	}
	s.metrics.Transition(ctx, string(action), telemetry.OutcomeSuccess)
	s.publish(ctx, returns.NewStatusChangedEvent(rec.ID, expected, rec.Status, string(action)))
	return rec, nil
}

// Cancel soft-deletes a record by moving it to Canceled
func (s *RecordService) Cancel(ctx context.Context, id string, expected returns.Status) (*returns.ReturnRecord, error) {
	return s.Transition(ctx, id, returns.ActionCancel, expected)
}

// Undo reverts the last step. Callers must have confirmed the shared secret.
func (s *RecordService) Undo(ctx context.Context, id string, expected returns.Status) (*returns.ReturnRecord, error) {
	rec, err := s.records.Mutate(ctx, id, func(rec *returns.ReturnRecord) error {
		if err := rec.Undo(expected); err != nil {
			return err
		}
		rec.UpdatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		s.metrics.Transition(ctx, "undo", telemetry.OutcomeFailure)
		return nil, err
	}
	logger.L(ctx).Warn("record status undone",
		zap.String("record_id", id),
		zap.String("from", string(expected)),
		zap.String("to", string(rec.Status)),
	)
	s.metrics.Transition(ctx, "undo", telemetry.OutcomeSuccess)
	s.publish(ctx, returns.NewStatusChangedEvent(rec.ID, expected, rec.Status, "undo"))
	return rec, nil
}

// SetDisposition records post-inspection routing
func (s *RecordService) SetDisposition(ctx context.Context, id string, d returns.Disposition) (*returns.ReturnRecord, error) {
	return s.records.Mutate(ctx, id, func(rec *returns.ReturnRecord) error {
		if err := rec.SetDisposition(d); err != nil {
			return err
		}
		rec.UpdatedAt = s.clock.Now()
		return nil
	})
}

// Split fans a record out into several records with the given quantities.
// The new records are stored first; if the original cannot be shrunk afterwards
// they are removed again.
func (s *RecordService) Split(ctx context.Context, id string, quantities []decimal.Decimal) ([]returns.ReturnRecord, error) {
	original, err := s.records.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	taken := make(map[string]struct{})
	for _, rec := range s.snapshot.Records() {
		taken[rec.ID] = struct{}{}
	}
	next := 0
	newID := func(int) string {
		for {
			next++
			candidate := fmt.Sprintf("%s_S%d", id, next)
			if _, ok := taken[candidate]; !ok {
				taken[candidate] = struct{}{}
				return candidate
			}
		}
	}

	working := *original
	parts, err := working.Split(quantities, newID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	saved := make([]string, 0, len(parts))
	for i := range parts {
		parts[i].CreatedAt = now
		parts[i].UpdatedAt = now
		if err := s.records.Save(ctx, &parts[i]); err != nil {
			s.discard(ctx, saved)
			return nil, err
		}
		saved = append(saved, parts[i].ID)
	}

	updated, err := s.records.Mutate(ctx, id, func(rec *returns.ReturnRecord) error {
		if rec.Status != original.Status || !rec.Quantity.Equal(original.Quantity) {
			return shared.NewDomainError("INVALID_TRANSITION",
				fmt.Sprintf("record %s changed while it was being split", id))
		}
		rec.Quantity = working.Quantity
		rec.UpdatedAt = now
		return nil
	})
	if err != nil {
		s.discard(ctx, saved)
		return nil, err
	}

	logger.L(ctx).Info("return record split",
		zap.String("record_id", id),
		zap.Strings("new_ids", saved),
	)
	return append([]returns.ReturnRecord{*updated}, parts...), nil
}

func (s *RecordService) discard(ctx context.Context, ids []string) {
	for _, id := range ids {
		if err := s.records.Delete(ctx, id); err != nil {
			s.logger.Error("failed to discard split record", zap.String("record_id", id), zap.Error(err))
		}
	}
}

// ScheduleCollection opens a collection order for the given Requested records.
// Each record is scheduled independently; if none could be scheduled the
// collection number is rolled back.
func (s *RecordService) ScheduleCollection(ctx context.Context, ids []string) (*CollectionResult, error) {
	ids = uniqueNonEmpty(ids)
	if len(ids) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "At least one record id is required")
	}

	colNo, err := s.allocator.AllocateOrFail(ctx, sequence.FamilyCollection)
	if err != nil {
		return nil, err
	}

	result := &CollectionResult{CollectionOrderID: colNo, Failed: map[string]string{}}
	today := s.clock.Today()
	for _, id := range ids {
		_, err := s.records.Mutate(ctx, id, func(rec *returns.ReturnRecord) error {
			if err := rec.Apply(returns.ActionSchedulePickup, returns.StatusRequested, today); err != nil {
				return err
			}
			rec.CollectionOrderID = colNo
			rec.UpdatedAt = s.clock.Now()
			return nil
		})
		if err != nil {
			s.logger.Warn("record not added to collection order",
				zap.String("collection_order_id", colNo),
				zap.String("record_id", id),
				zap.Error(err),
			)
			result.Failed[id] = err.Error()
			continue
		}
		result.Scheduled = append(result.Scheduled, id)
		s.publish(ctx, returns.NewStatusChangedEvent(id, returns.StatusRequested, returns.StatusPickupScheduled, string(returns.ActionSchedulePickup)))
	}

	if len(result.Scheduled) == 0 {
		s.allocator.Rollback(ctx, sequence.FamilyCollection)
		return result, shared.NewDomainError("COLLECTION_EMPTY", "None of the records could be scheduled for pickup")
	}
	return result, nil
}

// Purge hard-deletes a record. Callers must have confirmed the shared secret.
func (s *RecordService) Purge(ctx context.Context, id string) error {
	if _, err := s.records.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}
	logger.L(ctx).Warn("return record purged", zap.String("record_id", id))
	return nil
}

func (s *RecordService) publish(ctx context.Context, events ...shared.DomainEvent) {
	publishEvents(ctx, s.eventPublisher, s.logger, events...)
}

func publishEvents(ctx context.Context, publisher shared.EventPublisher, log *zap.Logger, events ...shared.DomainEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		log.Warn("failed to publish domain events", zap.Error(err))
	}
}

func uniqueNonEmpty(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
