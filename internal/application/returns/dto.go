package returns

import (
	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/shopspring/decimal"
)

// ==================== Return Record DTOs ====================

// CreateRecordInput is a logistics intake line
type CreateRecordInput struct {
	DocumentNo   string
	RefNo        string
	ProductCode  string
	ProductName  string
	Quantity     decimal.Decimal
	Unit         string
	Customer     string
	Branch       string
	Destination  string
	Founder      string
	PricePerUnit decimal.Decimal
	PriceBill    decimal.Decimal
	Problems     returns.ProblemFlags
	Cost         returns.CostInfo
	Notes        string
	Date         string
	// Submit starts the record in Requested instead of Draft
	Submit bool
}

// UpdateRecordInput carries the content fields an operator may change during intake.
// Nil fields are left untouched.
type UpdateRecordInput struct {
	DocumentNo   *string
	ProductCode  *string
	ProductName  *string
	Quantity     *decimal.Decimal
	Unit         *string
	Customer     *string
	Branch       *string
	Destination  *string
	PricePerUnit *decimal.Decimal
	PriceBill    *decimal.Decimal
	Notes        *string
	ControlDate  *string
}

// RecordFilter narrows a snapshot listing
type RecordFilter struct {
	Status     returns.Status
	DocumentNo string
	NCRNumber  string
}

// Matches reports whether rec passes the filter
func (f RecordFilter) Matches(rec returns.ReturnRecord) bool {
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if f.DocumentNo != "" && returns.Normalize(rec.EffectiveDocumentNo()) != returns.Normalize(f.DocumentNo) {
		return false
	}
	if f.NCRNumber != "" && returns.Normalize(rec.NCRNumber) != returns.Normalize(f.NCRNumber) {
		return false
	}
	return true
}

// CollectionResult reports a collection order
type CollectionResult struct {
	CollectionOrderID string            `json:"collectionOrderId"`
	Scheduled         []string          `json:"scheduled"`
	Failed            map[string]string `json:"failed,omitempty"`
}

// ==================== NCR DTOs ====================

// SubmitNCRInput is a new problem report
type SubmitNCRInput struct {
	Date    string
	Founder string
	RefNo   string
	Item    returns.NCRItem
}

// SubmitNCRResult is the outcome of a report submission
type SubmitNCRResult struct {
	Report        returns.NCRReport     `json:"report"`
	Record        *returns.ReturnRecord `json:"record,omitempty"`
	RecordCreated bool                  `json:"recordCreated"`
}

// SyncResult counts the linked records touched by a report mutation
type SyncResult struct {
	Matched   int `json:"matched"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// NCRChangeResult is the outcome of a report update or cancellation
type NCRChangeResult struct {
	Report returns.NCRReport `json:"report"`
	Sync   SyncResult        `json:"sync"`
}

// ==================== Reconciliation DTOs ====================

// Reconciliation job names
const (
	JobOrphanSweep = "orphan_sweep"
	JobRepairSweep = "repair_sweep"
)

// ReconcileResult is the final count of a maintenance sweep
type ReconcileResult struct {
	Job       string   `json:"job"`
	Found     int      `json:"found"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	IDs       []string `json:"ids,omitempty"`
}
