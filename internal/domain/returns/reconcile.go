package returns

import (
	"sort"

	"github.com/shopspring/decimal"
)

// RepairDefaults fill fields a report may leave empty when a record is rebuilt from it
type RepairDefaults struct {
	Quantity    decimal.Decimal
	Unit        string
	Branch      string
	Customer    string
	Destination string
}

// DefaultRepairDefaults returns the stock defaults for repair artifacts
func DefaultRepairDefaults() RepairDefaults {
	return RepairDefaults{
		Quantity:    decimal.NewFromInt(1),
		Unit:        "Unit",
		Branch:      "Head Office",
		Customer:    "-",
		Destination: "-",
	}
}

// IsNCRLinked reports whether a record was produced from a problem report
func IsNCRLinked(rec ReturnRecord) bool {
	if rec.NCRNumber != "" {
		return true
	}
	_, ok := ReportIDFromRecordID(rec.ID)
	return ok
}

type reportIndex struct {
	byNo map[string]NCRReport
	byID map[string]NCRReport
}

// put keeps an active report over a canceled one sharing the same key
func put(m map[string]NCRReport, key string, r NCRReport) {
	if key == "" {
		return
	}
	if existing, ok := m[key]; ok && existing.IsActive() && !r.IsActive() {
		return
	}
	m[key] = r
}

func indexReports(reports []NCRReport) reportIndex {
	idx := reportIndex{
		byNo: make(map[string]NCRReport, len(reports)),
		byID: make(map[string]NCRReport, len(reports)),
	}
	for _, r := range reports {
		put(idx.byNo, Normalize(r.NCRNo), r)
		put(idx.byID, r.ID, r)
	}
	return idx
}

func (idx reportIndex) parentOf(rec ReturnRecord) (NCRReport, bool) {
	if rec.NCRNumber != "" {
		if r, ok := idx.byNo[Normalize(rec.NCRNumber)]; ok {
			return r, true
		}
	}
	if reportID, ok := ReportIDFromRecordID(rec.ID); ok {
		if r, ok := idx.byID[reportID]; ok {
			return r, true
		}
	}
	return NCRReport{}, false
}

// Quarantine lists stored documents that exist but could not be decoded.
// The sweeps treat them as present and never act on what they might link to.
type Quarantine struct {
	Reports []StoredRef
	Records []StoredRef
}

type refIndex struct {
	ids       map[string]struct{}
	numbers   map[string]struct{}
	anonymous bool
}

func indexRefs(refs []StoredRef) refIndex {
	idx := refIndex{ids: make(map[string]struct{}), numbers: make(map[string]struct{})}
	for _, ref := range refs {
		idx.ids[ref.ID] = struct{}{}
		if n := Normalize(ref.NCRNo); n != "" {
			idx.numbers[n] = struct{}{}
		} else {
			idx.anonymous = true
		}
	}
	return idx
}

func (idx refIndex) hasNumber(n string) bool {
	_, ok := idx.numbers[Normalize(n)]
	return ok && n != ""
}

func (idx refIndex) hasID(id string) bool {
	_, ok := idx.ids[id]
	return ok && id != ""
}

// mayParent reports whether an undecodable report could be the parent of rec.
// A report whose number is unreadable could parent any record linked by number.
func (idx refIndex) mayParent(rec ReturnRecord) bool {
	if reportID, ok := ReportIDFromRecordID(rec.ID); ok && idx.hasID(reportID) {
		return true
	}
	if rec.NCRNumber == "" {
		return false
	}
	return idx.hasNumber(rec.NCRNumber) || idx.anonymous
}

// FindOrphans returns the ids of NCR-linked records whose report is missing or
// canceled. A record whose report may be one of the quarantined documents is kept.
func FindOrphans(records []ReturnRecord, reports []NCRReport, q Quarantine) []string {
	idx := indexReports(reports)
	unreadable := indexRefs(q.Reports)
	var orphans []string
	for _, rec := range records {
		if !IsNCRLinked(rec) {
			continue
		}
		parent, ok := idx.parentOf(rec)
		if ok && parent.IsActive() {
			continue
		}
		if !ok && unreadable.mayParent(rec) {
			continue
		}
		// an unreadable twin of a canceled report may still be active
		if ok && unreadable.hasNumber(rec.NCRNumber) {
			continue
		}
		orphans = append(orphans, rec.ID)
	}
	sort.Strings(orphans)
	return orphans
}

// FindMissing returns active reports whose number appears on no record.
// A report that a quarantined record may project is not missing.
func FindMissing(records []ReturnRecord, reports []NCRReport, q Quarantine) []NCRReport {
	projected := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if n := Normalize(rec.NCRNumber); n != "" {
			projected[n] = struct{}{}
		}
	}
	unreadable := indexRefs(q.Records)
	projectedIDs := make(map[string]struct{})
	for _, ref := range q.Records {
		if reportID, ok := ReportIDFromRecordID(ref.ID); ok {
			projectedIDs[reportID] = struct{}{}
		}
	}

	var missing []NCRReport
	seen := make(map[string]struct{})
	for _, r := range reports {
		n := Normalize(r.NCRNo)
		if !r.IsActive() || n == "" {
			continue
		}
		if _, ok := projected[n]; ok {
			continue
		}
		if _, ok := projectedIDs[r.ID]; ok || unreadable.hasNumber(r.NCRNo) {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		missing = append(missing, r)
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].NCRNo < missing[j].NCRNo })
	return missing
}

// SynthesizeRecord rebuilds the record a report should have produced
func SynthesizeRecord(report NCRReport, id, today string, d RepairDefaults) (ReturnRecord, error) {
	status := StatusRequested
	switch {
	case report.Item.IsFieldSettled:
		status = StatusSettledOnField
	case report.Item.IsRecordOnly:
		status = StatusCompleted
	}
	rec, err := RecordFromReport(report, id, status)
	if err != nil {
		return ReturnRecord{}, err
	}
	if !rec.Quantity.IsPositive() {
		rec.Quantity = d.Quantity
	}
	if rec.Unit == "" {
		rec.Unit = d.Unit
	}
	if rec.Branch == "" {
		rec.Branch = d.Branch
	}
	if rec.Customer == "" {
		rec.Customer = d.Customer
	}
	if rec.Destination == "" {
		rec.Destination = d.Destination
	}
	if rec.Date == "" {
		rec.Date = today
	}
	if rec.ProductCode == "" && rec.ProductName == "" {
		rec.ProductName = "-"
	}
	if status == StatusRequested {
		rec.DateRequested = rec.Date
	}
	return rec, nil
}
