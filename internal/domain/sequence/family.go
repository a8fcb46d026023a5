// Package sequence holds the numbering rules for business document numbers:
// counter families, the period reset rule and the printed format.
package sequence

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"

	"github.com/returnflow/backend/internal/domain/shared"
)

// Family describes one independent document-number sequence
type Family struct {
	Name    string // counter document id under counters/
	Key     string // short name used by operators and the API
	Prefix  string
	Monthly bool // period is year+month instead of year
}

// Known families
var (
	FamilyNCR        = Family{Name: "ncr_counter", Key: "ncr", Prefix: "NCR"}
	FamilyReturn     = Family{Name: "return_counter", Key: "return", Prefix: "RT"}
	FamilyCollection = Family{Name: "collection_counter", Key: "collection", Prefix: "COL", Monthly: true}
)

// Families lists every family in a stable order
func Families() []Family {
	return []Family{FamilyNCR, FamilyReturn, FamilyCollection}
}

// ParseFamily resolves a family by key ("ncr") or counter name ("ncr_counter")
func ParseFamily(s string) (Family, error) {
	for _, f := range Families() {
		if s == f.Key || s == f.Name {
			return f, nil
		}
	}
	return Family{}, shared.NewDomainError("INVALID_FAMILY", fmt.Sprintf("unknown counter family %q", s))
}

// Path returns the store path of the family's counter document
func (f Family) Path() string {
	return shared.DocumentPath(shared.CollectionCounters, f.Name)
}

// Counter is the persisted state of a family
type Counter struct {
	Year       int  `json:"year"`
	Month      *int `json:"month,omitempty"`
	LastNumber int  `json:"lastNumber"`
}

// DecodeCounter parses a stored counter. A nil or empty document yields ok=false.
func DecodeCounter(raw []byte) (Counter, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Counter{}, false, nil
	}
	var c Counter
	if err := json.Unmarshal(raw, &c); err != nil {
		return Counter{}, false, fmt.Errorf("decode counter: %w", err)
	}
	return c, true, nil
}

func (f Family) samePeriod(c Counter, now time.Time) bool {
	if c.Year != now.Year() {
		return false
	}
	if !f.Monthly {
		return true
	}
	return c.Month != nil && *c.Month == int(now.Month())
}

func (f Family) period(now time.Time, last int) Counter {
	c := Counter{Year: now.Year(), LastNumber: last}
	if f.Monthly {
		m := int(now.Month())
		c.Month = &m
	}
	return c
}

// Next returns the counter after one allocation at now.
// A missing counter or a counter from another period starts again at 1.
func (f Family) Next(current Counter, exists bool, now time.Time) Counter {
	if !exists || !f.samePeriod(current, now) {
		return f.period(now, 1)
	}
	current.LastNumber++
	return current
}

// Rewind returns the counter after a rollback; lastNumber never goes below zero
func (f Family) Rewind(current Counter) Counter {
	if current.LastNumber > 0 {
		current.LastNumber--
	}
	return current
}

// Format renders the committed counter as a document number
func (f Family) Format(c Counter) string {
	if f.Monthly {
		month := 0
		if c.Month != nil {
			month = *c.Month
		}
		return fmt.Sprintf("%s-%04d%02d-%04d", f.Prefix, c.Year, month, c.LastNumber)
	}
	return fmt.Sprintf("%s-%04d-%04d", f.Prefix, c.Year, c.LastNumber)
}

// Sentinel returns the tagged placeholder handed out when allocation could not commit
func (f Family) Sentinel(now time.Time) string {
	return fmt.Sprintf("%s-%04d-ERR%04d", f.Prefix, now.Year(), rand.IntN(10000))
}

var sentinelPattern = regexp.MustCompile(`^[A-Z]+-\d{4}-ERR\d+$`)

// IsSentinel reports whether number is an allocation failure placeholder
func IsSentinel(number string) bool {
	return sentinelPattern.MatchString(number)
}
