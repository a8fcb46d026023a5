package returns

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// NCRStatus is the status of a problem report
type NCRStatus string

const (
	NCRStatusOpen     NCRStatus = "Open"
	NCRStatusCanceled NCRStatus = "Canceled"
)

// ParseNCRStatus maps a stored value to a status; anything unknown is Open
func ParseNCRStatus(s string) NCRStatus {
	if NCRStatus(s) == NCRStatusCanceled {
		return NCRStatusCanceled
	}
	return NCRStatusOpen
}

// PreliminaryDirectReturn routes a report straight back without going through the hub
const PreliminaryDirectReturn = "DirectReturn"

// NCRItem is the product payload of a problem report
type NCRItem struct {
	ProductCode  string          `json:"productCode,omitempty"`
	ProductName  string          `json:"productName,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit,omitempty"`
	Customer     string          `json:"customer,omitempty"`
	Branch       string          `json:"branch,omitempty"`
	Destination  string          `json:"destination,omitempty"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
	ProblemFlags
	CostInfo
	PreliminaryDecision string `json:"preliminaryDecision,omitempty"`
	IsFieldSettled      bool   `json:"isFieldSettled,omitempty"`
	IsRecordOnly        bool   `json:"isRecordOnly,omitempty"`
	Notes               string `json:"notes,omitempty"`
}

// NCRReport is one reported non-conformance in canonical shape
type NCRReport struct {
	ID        string    `json:"id"`
	NCRNo     string    `json:"ncrNo"`
	Date      string    `json:"date,omitempty"`
	Status    NCRStatus `json:"status"`
	Founder   string    `json:"founder,omitempty"`
	RefNo     string    `json:"refNo,omitempty"`
	Item      NCRItem   `json:"item"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsActive reports whether the report has not been canceled
func (r NCRReport) IsActive() bool {
	return r.Status != NCRStatusCanceled
}

// Encode serializes the report in canonical shape
func (r NCRReport) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// reportHeader captures header fields of either stored shape.
// Status is raw so that non-string values fall back to Open instead of failing.
type reportHeader struct {
	ID         string          `json:"id"`
	NCRNo      string          `json:"ncrNo"`
	Date       string          `json:"date"`
	Status     json.RawMessage `json:"status"`
	Founder    string          `json:"founder"`
	RefNo      string          `json:"refNo"`
	DocumentNo string          `json:"documentNo"`
	Item       json.RawMessage `json:"item"`
	CreatedAt  *time.Time      `json:"createdAt"`
	UpdatedAt  *time.Time      `json:"updatedAt"`
}

// DecodeNCRReport normalizes a stored report into canonical shape.
// Product fields are taken from a nested item object when present, otherwise
// from the top level of the document.
// Loosely typed values are coerced the same way DecodeReturnRecord does.
func DecodeNCRReport(id string, raw []byte) (NCRReport, error) {
	doc, err := parseObject(raw)
	if err != nil {
		return NCRReport{}, fmt.Errorf("decode ncr report %s: %w", id, err)
	}
	coerceFields(doc, headerKinds)
	if nested, ok := doc["item"].(map[string]any); ok {
		coerceFields(nested, itemKinds())
	} else {
		coerceFields(doc, itemKinds())
	}
	if raw, err = json.Marshal(doc); err != nil {
		return NCRReport{}, fmt.Errorf("decode ncr report %s: %w", id, err)
	}

	var h reportHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return NCRReport{}, fmt.Errorf("decode ncr report %s: %w", id, err)
	}

	var item NCRItem
	itemSource := raw
	if len(h.Item) > 0 && string(h.Item) != "null" && h.Item[0] == '{' {
		itemSource = h.Item
	}
	if err := json.Unmarshal(itemSource, &item); err != nil {
		return NCRReport{}, fmt.Errorf("decode ncr report %s item: %w", id, err)
	}

	var status string
	if len(h.Status) > 0 {
		_ = json.Unmarshal(h.Status, &status)
	}

	r := NCRReport{
		ID:      h.ID,
		NCRNo:   h.NCRNo,
		Date:    h.Date,
		Status:  ParseNCRStatus(status),
		Founder: h.Founder,
		RefNo:   h.RefNo,
		Item:    item,
	}
	if r.RefNo == "" {
		r.RefNo = h.DocumentNo
	}
	if id != "" {
		r.ID = id
	}
	if h.CreatedAt != nil {
		r.CreatedAt = *h.CreatedAt
	}
	if h.UpdatedAt != nil {
		r.UpdatedAt = *h.UpdatedAt
	}
	return r, nil
}

var reportHeaderKeys = map[string]bool{
	"ncrNo": true, "date": true, "status": true, "founder": true,
	"refNo": true, "createdAt": true, "updatedAt": true,
}

// Merge applies a partial update to the report and returns the effective report.
// Keys may address either shape: a nested "item" object or flat product fields.
// The id never changes.
func (r NCRReport) Merge(patch map[string]any) (NCRReport, error) {
	raw, err := r.Encode()
	if err != nil {
		return NCRReport{}, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return NCRReport{}, err
	}
	item, _ := doc["item"].(map[string]any)
	if item == nil {
		item = map[string]any{}
	}

	for k, v := range patch {
		switch {
		case k == "id":
		case k == "item":
			nested, ok := v.(map[string]any)
			if !ok {
				return NCRReport{}, shared.NewDomainError("INVALID_INPUT", "item must be an object")
			}
			for ik, iv := range nested {
				item[ik] = iv
			}
		case k == "documentNo":
			doc["refNo"] = v
		case reportHeaderKeys[k]:
			doc[k] = v
		default:
			item[k] = v
		}
	}
	doc["item"] = item

	merged, err := json.Marshal(doc)
	if err != nil {
		return NCRReport{}, err
	}
	return DecodeNCRReport(r.ID, merged)
}

// Validate checks the fields every submitted report must carry
func (r NCRReport) Validate() error {
	if r.Item.ProductCode == "" && r.Item.ProductName == "" {
		return shared.NewDomainError("INVALID_PRODUCT", "Product code or name is required")
	}
	if r.Item.Quantity.IsNegative() {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}
	if r.Date != "" {
		if _, err := time.Parse(DateLayout, r.Date); err != nil {
			return shared.NewDomainError("INVALID_DATE", fmt.Sprintf("date %q is not YYYY-MM-DD", r.Date))
		}
	}
	return nil
}
