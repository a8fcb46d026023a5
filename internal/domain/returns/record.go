package returns

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DateLayout is the layout of every business date stored on records and reports
const DateLayout = "2006-01-02"

// ProblemFlags are the problem-type checkboxes shared by reports and records
type ProblemFlags struct {
	ProblemDamaged         bool   `json:"problemDamaged,omitempty"`
	ProblemDamagedInBox    bool   `json:"problemDamagedInBox,omitempty"`
	ProblemLost            bool   `json:"problemLost,omitempty"`
	ProblemMixed           bool   `json:"problemMixed,omitempty"`
	ProblemWrongInvoice    bool   `json:"problemWrongInv,omitempty"`
	ProblemLate            bool   `json:"problemLate,omitempty"`
	ProblemDuplicate       bool   `json:"problemDuplicate,omitempty"`
	ProblemWrongItem       bool   `json:"problemWrong,omitempty"`
	ProblemIncomplete      bool   `json:"problemIncomplete,omitempty"`
	ProblemOver            bool   `json:"problemOver,omitempty"`
	ProblemWrongInfo       bool   `json:"problemWrongInfo,omitempty"`
	ProblemShortExpiry     bool   `json:"problemShortExpiry,omitempty"`
	ProblemTransportDamage bool   `json:"problemTransportDamage,omitempty"`
	ProblemAccident        bool   `json:"problemAccident,omitempty"`
	ProblemOther           bool   `json:"problemOther,omitempty"`
	ProblemOtherText       string `json:"problemOtherText,omitempty"`
	ProblemDetail          string `json:"problemDetail,omitempty"`
}

// CostInfo records who bears the cost of a problem and why it happened
type CostInfo struct {
	HasCost         bool            `json:"hasCost,omitempty"`
	CostAmount      decimal.Decimal `json:"costAmount"`
	CostResponsible string          `json:"costResponsible,omitempty"`
	RootCause       string          `json:"rootCause,omitempty"`
	ActionType      string          `json:"actionType,omitempty"`
}

// ReturnRecord is one physical movement of one product under one return case
type ReturnRecord struct {
	ID                string       `json:"id"`
	ReturnNo          string       `json:"returnNo,omitempty"`
	DocumentNo        string       `json:"documentNo,omitempty"`
	RefNo             string       `json:"refNo,omitempty"`
	NCRNumber         string       `json:"ncrNumber,omitempty"`
	CollectionOrderID string       `json:"collectionOrderId,omitempty"`
	Status            Status       `json:"status"`
	Disposition       Disposition  `json:"disposition,omitempty"`
	DocumentType      DocumentType `json:"documentType,omitempty"`

	ProductCode  string          `json:"productCode,omitempty"`
	ProductName  string          `json:"productName,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit,omitempty"`
	Customer     string          `json:"customer,omitempty"`
	Branch       string          `json:"branch,omitempty"`
	Destination  string          `json:"destination,omitempty"`
	Founder      string          `json:"founder,omitempty"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
	PriceBill    decimal.Decimal `json:"priceBill"`
	ProblemFlags
	CostInfo
	PreliminaryDecision string `json:"preliminaryDecision,omitempty"`
	Notes               string `json:"notes,omitempty"`

	Date           string `json:"date,omitempty"`
	DateRequested  string `json:"dateRequested,omitempty"`
	DateInTransit  string `json:"dateInTransit,omitempty"`
	DateReceived   string `json:"dateReceived,omitempty"`
	DateGraded     string `json:"dateGraded,omitempty"`
	DateDocumented string `json:"dateDocumented,omitempty"`
	DateCompleted  string `json:"dateCompleted,omitempty"`
	ControlDate    string `json:"controlDate,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DecodeReturnRecord parses a stored record. The store path id wins over the payload id.
// Loosely typed fields are coerced: numeric text becomes a number, unreadable
// numbers and flags become zero. Only a payload that is not an object fails.
func DecodeReturnRecord(id string, raw []byte) (ReturnRecord, error) {
	doc, err := parseObject(raw)
	if err != nil {
		return ReturnRecord{}, fmt.Errorf("decode return record %s: %w", id, err)
	}
	coerceFields(doc, recordKinds())
	normalized, err := json.Marshal(doc)
	if err != nil {
		return ReturnRecord{}, fmt.Errorf("decode return record %s: %w", id, err)
	}
	var r ReturnRecord
	if err := json.Unmarshal(normalized, &r); err != nil {
		return ReturnRecord{}, fmt.Errorf("decode return record %s: %w", id, err)
	}
	if id != "" {
		r.ID = id
	}
	if r.Status == "" {
		r.Status = StatusRequested
	}
	return r, nil
}

// Encode serializes the record for storage
func (r ReturnRecord) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// EffectiveDocumentNo returns documentNo, falling back to the refNo alias
func (r ReturnRecord) EffectiveDocumentNo() string {
	if r.DocumentNo != "" {
		return r.DocumentNo
	}
	return r.RefNo
}

// ProductKey returns the product identity used by the document lock
func (r ReturnRecord) ProductKey() string {
	if r.ProductCode != "" {
		return r.ProductCode
	}
	return r.ProductName
}

// Validate checks content invariants that hold for every stored record
func (r ReturnRecord) Validate() error {
	if r.ID == "" {
		return shared.NewDomainError("INVALID_ID", "Record id cannot be empty")
	}
	if !r.Status.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("unknown status %q", r.Status))
	}
	if r.Quantity.IsNegative() {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}
	if r.ProductCode == "" && r.ProductName == "" {
		return shared.NewDomainError("INVALID_PRODUCT", "Product code or name is required")
	}
	if r.Disposition != "" && !r.Disposition.IsValid() {
		return shared.NewDomainError("INVALID_DISPOSITION", fmt.Sprintf("unknown disposition %q", r.Disposition))
	}
	return nil
}

// stampFor returns the date field written when action is applied
func (r *ReturnRecord) stampFor(action Action) *string {
	switch action {
	case ActionSubmit:
		return &r.DateRequested
	case ActionShipNCR, ActionDispatchToHub:
		return &r.DateInTransit
	case ActionReceiveAtHub, ActionReceiveNCRAtHub:
		return &r.DateReceived
	case ActionCompleteQC:
		return &r.DateGraded
	case ActionConsolidate:
		return &r.DateDocumented
	case ActionComplete:
		return &r.DateCompleted
	}
	return nil
}

// Apply moves the record with action. expected is the status the operator saw;
// a mismatch means someone else already moved the record and the call is rejected.
func (r *ReturnRecord) Apply(action Action, expected Status, today string) error {
	if r.Status != expected {
		return shared.NewDomainError("INVALID_TRANSITION",
			fmt.Sprintf("record %s is %s, expected %s", r.ID, r.Status, expected))
	}
	to, err := Next(r.Status, action)
	if err != nil {
		return err
	}
	if stamp := r.stampFor(action); stamp != nil {
		// only the completion date is ever rewritten
		if *stamp == "" || action == ActionComplete {
			*stamp = today
		}
	}
	r.Status = to
	return nil
}

// Undo moves the record one step back and clears the date written by the undone step
func (r *ReturnRecord) Undo(expected Status) error {
	if r.Status != expected {
		return shared.NewDomainError("INVALID_TRANSITION",
			fmt.Sprintf("record %s is %s, expected %s", r.ID, r.Status, expected))
	}
	prev, err := Previous(r.Status)
	if err != nil {
		return err
	}
	for _, a := range AllActions() {
		if to, ok := transitions[edge{prev, a}]; ok && to == r.Status {
			if stamp := r.stampFor(a); stamp != nil {
				*stamp = ""
			}
			break
		}
	}
	r.Status = prev
	return nil
}

// SetDisposition records post-inspection routing. It can be set once; Pending may be replaced.
func (r *ReturnRecord) SetDisposition(d Disposition) error {
	if !d.IsValid() {
		return shared.NewDomainError("INVALID_DISPOSITION", fmt.Sprintf("unknown disposition %q", d))
	}
	if !r.Status.AcceptsDisposition() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("disposition cannot be set while record is %s", r.Status))
	}
	if r.Disposition != "" && r.Disposition != DispositionPending {
		return shared.NewDomainError("DISPOSITION_ALREADY_SET",
			fmt.Sprintf("record %s already has disposition %s", r.ID, r.Disposition))
	}
	r.Disposition = d
	return nil
}

// Split divides the record into several records with the given quantities.
// The receiver keeps the first quantity; the rest are returned as new records
// sharing identity fields and status, with ids from newID.
// Intake records cannot be split: the parts would repeat the same product
// under the same document number, which intake rejects as a duplicate line.
func (r *ReturnRecord) Split(quantities []decimal.Decimal, newID func(i int) string) ([]ReturnRecord, error) {
	if len(quantities) < 2 {
		return nil, shared.NewDomainError("INVALID_SPLIT", "Split needs at least two quantities")
	}
	if r.Status.IsTerminal() || r.Status.IsInitial() {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("record in status %s cannot be split", r.Status))
	}
	total := decimal.Zero
	for _, q := range quantities {
		if !q.IsPositive() {
			return nil, shared.NewDomainError("INVALID_SPLIT", "Split quantities must be positive")
		}
		total = total.Add(q)
	}
	if !total.Equal(r.Quantity) {
		return nil, shared.NewDomainError("INVALID_SPLIT",
			fmt.Sprintf("split quantities sum to %s, record quantity is %s", total, r.Quantity))
	}

	parts := make([]ReturnRecord, 0, len(quantities)-1)
	for i, q := range quantities[1:] {
		part := *r
		part.ID = newID(i + 1)
		part.Quantity = q
		parts = append(parts, part)
	}
	r.Quantity = quantities[0]
	return parts, nil
}
