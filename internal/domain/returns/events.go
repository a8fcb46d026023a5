package returns

import "github.com/returnflow/backend/internal/domain/shared"

// Aggregate types
const (
	AggregateTypeReturnRecord = "ReturnRecord"
	AggregateTypeNCRReport    = "NCRReport"
)

// Event types
const (
	EventTypeRecordCreated      = "return.record.created"
	EventTypeStatusChanged      = "return.status.changed"
	EventTypeNCRSubmitted       = "ncr.submitted"
	EventTypeNCRCanceled        = "ncr.canceled"
	EventTypeReconcileCompleted = "reconcile.completed"
)

// RecordCreatedEvent is published after a return record is first stored
type RecordCreatedEvent struct {
	shared.BaseDomainEvent
	ReturnNo   string `json:"return_no"`
	DocumentNo string `json:"document_no"`
	Product    string `json:"product"`
	Status     Status `json:"status"`
}

// NewRecordCreatedEvent creates a RecordCreatedEvent
func NewRecordCreatedEvent(rec ReturnRecord) *RecordCreatedEvent {
	return &RecordCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRecordCreated, AggregateTypeReturnRecord, rec.ID),
		ReturnNo:        rec.ReturnNo,
		DocumentNo:      rec.EffectiveDocumentNo(),
		Product:         rec.ProductKey(),
		Status:          rec.Status,
	}
}

// StatusChangedEvent is published after a transition or undo commits
type StatusChangedEvent struct {
	shared.BaseDomainEvent
	From   Status `json:"from"`
	To     Status `json:"to"`
	Action string `json:"action"`
}

// NewStatusChangedEvent creates a StatusChangedEvent. action is "undo" for reverse steps.
func NewStatusChangedEvent(recordID string, from, to Status, action string) *StatusChangedEvent {
	return &StatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStatusChanged, AggregateTypeReturnRecord, recordID),
		From:            from,
		To:              to,
		Action:          action,
	}
}

// NCRSubmittedEvent is published after a problem report and its record are stored
type NCRSubmittedEvent struct {
	shared.BaseDomainEvent
	NCRNo    string `json:"ncr_no"`
	Product  string `json:"product"`
	Customer string `json:"customer"`
	Founder  string `json:"founder"`
}

// NewNCRSubmittedEvent creates an NCRSubmittedEvent
func NewNCRSubmittedEvent(r NCRReport) *NCRSubmittedEvent {
	product := r.Item.ProductCode
	if product == "" {
		product = r.Item.ProductName
	}
	return &NCRSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNCRSubmitted, AggregateTypeNCRReport, r.ID),
		NCRNo:           r.NCRNo,
		Product:         product,
		Customer:        r.Item.Customer,
		Founder:         r.Founder,
	}
}

// NCRCanceledEvent is published after a report cancellation cascaded
type NCRCanceledEvent struct {
	shared.BaseDomainEvent
	NCRNo         string `json:"ncr_no"`
	RecordsSynced int    `json:"records_synced"`
}

// NewNCRCanceledEvent creates an NCRCanceledEvent
func NewNCRCanceledEvent(r NCRReport, synced int) *NCRCanceledEvent {
	return &NCRCanceledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNCRCanceled, AggregateTypeNCRReport, r.ID),
		NCRNo:           r.NCRNo,
		RecordsSynced:   synced,
	}
}

// ReconcileCompletedEvent is published at the end of a maintenance sweep
type ReconcileCompletedEvent struct {
	shared.BaseDomainEvent
	Job       string `json:"job"`
	Found     int    `json:"found"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// NewReconcileCompletedEvent creates a ReconcileCompletedEvent
func NewReconcileCompletedEvent(job string, found, succeeded, failed int) *ReconcileCompletedEvent {
	return &ReconcileCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReconcileCompleted, "Reconciliation", job),
		Job:             job,
		Found:           found,
		Succeeded:       succeeded,
		Failed:          failed,
	}
}
