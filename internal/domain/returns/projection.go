package returns

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NCRRecordPrefix marks record ids produced from a problem report: NCR-<reportId>_<suffix>
const NCRRecordPrefix = "NCR-"

// DerivedRecordID builds the id of a record produced from a report
func DerivedRecordID(reportID, suffix string) string {
	return NCRRecordPrefix + reportID + "_" + suffix
}

// ReportIDFromRecordID extracts the report id from a derived record id
func ReportIDFromRecordID(id string) (string, bool) {
	rest, ok := strings.CutPrefix(id, NCRRecordPrefix)
	if !ok {
		return "", false
	}
	reportID, _, _ := strings.Cut(rest, "_")
	if reportID == "" {
		return "", false
	}
	return reportID, true
}

// projection is the fixed set of report fields mirrored onto linked records
type projection struct {
	Date        string          `json:"date"`
	Founder     string          `json:"founder"`
	DocumentNo  string          `json:"documentNo"`
	RefNo       string          `json:"refNo"`
	ProductCode string          `json:"productCode"`
	ProductName string          `json:"productName"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	Customer    string          `json:"customer"`
	Branch      string          `json:"branch"`
	Destination string          `json:"destination"`

	ProblemDamaged         bool   `json:"problemDamaged"`
	ProblemDamagedInBox    bool   `json:"problemDamagedInBox"`
	ProblemLost            bool   `json:"problemLost"`
	ProblemMixed           bool   `json:"problemMixed"`
	ProblemWrongInvoice    bool   `json:"problemWrongInv"`
	ProblemLate            bool   `json:"problemLate"`
	ProblemDuplicate       bool   `json:"problemDuplicate"`
	ProblemWrongItem       bool   `json:"problemWrong"`
	ProblemIncomplete      bool   `json:"problemIncomplete"`
	ProblemOver            bool   `json:"problemOver"`
	ProblemWrongInfo       bool   `json:"problemWrongInfo"`
	ProblemShortExpiry     bool   `json:"problemShortExpiry"`
	ProblemTransportDamage bool   `json:"problemTransportDamage"`
	ProblemAccident        bool   `json:"problemAccident"`
	ProblemOther           bool   `json:"problemOther"`
	ProblemOtherText       string `json:"problemOtherText"`
	ProblemDetail          string `json:"problemDetail"`

	HasCost             bool            `json:"hasCost"`
	CostAmount          decimal.Decimal `json:"costAmount"`
	CostResponsible     string          `json:"costResponsible"`
	RootCause           string          `json:"rootCause"`
	ActionType          string          `json:"actionType"`
	PreliminaryDecision string          `json:"preliminaryDecision"`
}

func projectReport(r NCRReport) projection {
	it := r.Item
	return projection{
		Date:        r.Date,
		Founder:     r.Founder,
		DocumentNo:  r.RefNo,
		RefNo:       r.RefNo,
		ProductCode: it.ProductCode,
		ProductName: it.ProductName,
		Quantity:    it.Quantity,
		Unit:        it.Unit,
		Customer:    it.Customer,
		Branch:      it.Branch,
		Destination: it.Destination,

		ProblemDamaged:         it.ProblemDamaged,
		ProblemDamagedInBox:    it.ProblemDamagedInBox,
		ProblemLost:            it.ProblemLost,
		ProblemMixed:           it.ProblemMixed,
		ProblemWrongInvoice:    it.ProblemWrongInvoice,
		ProblemLate:            it.ProblemLate,
		ProblemDuplicate:       it.ProblemDuplicate,
		ProblemWrongItem:       it.ProblemWrongItem,
		ProblemIncomplete:      it.ProblemIncomplete,
		ProblemOver:            it.ProblemOver,
		ProblemWrongInfo:       it.ProblemWrongInfo,
		ProblemShortExpiry:     it.ProblemShortExpiry,
		ProblemTransportDamage: it.ProblemTransportDamage,
		ProblemAccident:        it.ProblemAccident,
		ProblemOther:           it.ProblemOther,
		ProblemOtherText:       it.ProblemOtherText,
		ProblemDetail:          it.ProblemDetail,

		HasCost:             it.HasCost,
		CostAmount:          it.CostAmount,
		CostResponsible:     it.CostResponsible,
		RootCause:           it.RootCause,
		ActionType:          it.ActionType,
		PreliminaryDecision: it.PreliminaryDecision,
	}
}

// ProjectionPatch returns the partial update that mirrors report onto its linked records
func ProjectionPatch(report NCRReport) (map[string]any, error) {
	raw, err := json.Marshal(projectReport(report))
	if err != nil {
		return nil, fmt.Errorf("encode projection: %w", err)
	}
	var patch map[string]any
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, fmt.Errorf("decode projection: %w", err)
	}
	return patch, nil
}

// ApplyProjection copies the projected report fields onto rec
func ApplyProjection(rec *ReturnRecord, report NCRReport) error {
	raw, err := json.Marshal(projectReport(report))
	if err != nil {
		return fmt.Errorf("encode projection: %w", err)
	}
	return json.Unmarshal(raw, rec)
}

// LinkedRecords returns the records produced from report, matched on the report
// number and product code.
func LinkedRecords(report NCRReport, records []ReturnRecord) []ReturnRecord {
	ncrNo := Normalize(report.NCRNo)
	if ncrNo == "" {
		return nil
	}
	code := Normalize(report.Item.ProductCode)
	var linked []ReturnRecord
	for _, rec := range records {
		if Normalize(rec.NCRNumber) == ncrNo && Normalize(rec.ProductCode) == code {
			linked = append(linked, rec)
		}
	}
	return linked
}

// InitialStatusForReport picks the starting status of a record produced from a report
func InitialStatusForReport(report NCRReport) Status {
	switch {
	case report.Item.IsFieldSettled:
		return StatusSettledOnField
	case report.Item.IsRecordOnly:
		return StatusCompleted
	case report.Item.PreliminaryDecision == PreliminaryDirectReturn:
		return StatusDirectReturn
	}
	return StatusRequested
}

// RecordFromReport builds the record a report produces
func RecordFromReport(report NCRReport, id string, status Status) (ReturnRecord, error) {
	rec := ReturnRecord{
		ID:           id,
		NCRNumber:    report.NCRNo,
		Status:       status,
		DocumentType: DocumentTypeNCR,
		PricePerUnit: report.Item.PricePerUnit,
		Notes:        report.Item.Notes,
	}
	if err := ApplyProjection(&rec, report); err != nil {
		return ReturnRecord{}, err
	}
	return rec, nil
}
