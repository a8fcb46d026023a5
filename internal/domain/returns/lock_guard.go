package returns

import (
	"strings"

	"github.com/returnflow/backend/internal/domain/shared"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// LockReason explains why a write to a document number was denied
type LockReason string

const (
	LockReasonNone             LockReason = ""
	LockReasonProcessingLocked LockReason = "processing-locked"
	LockReasonExactDuplicate   LockReason = "exact-duplicate"
)

// LockDecision is the outcome of a lock check
type LockDecision struct {
	Allowed bool
	Reason  LockReason
}

// Err converts a denial into its domain error; an allowed decision returns nil
func (d LockDecision) Err() error {
	switch d.Reason {
	case LockReasonProcessingLocked:
		return shared.ErrDocumentLocked
	case LockReasonExactDuplicate:
		return shared.ErrDuplicateLine
	}
	return nil
}

// DefaultPlaceholders are document numbers that mean "no number yet"
var DefaultPlaceholders = []string{"-", "n/a", "none", "tbd"}

// Normalize trims and lower-cases a key for comparison.
// A Caser keeps state, so one is built per call.
func Normalize(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// LockGuard decides whether a line may be written under a document number
type LockGuard struct {
	placeholders map[string]struct{}
}

// NewLockGuard creates a guard treating the given tokens as placeholder document numbers
func NewLockGuard(placeholders ...string) LockGuard {
	if len(placeholders) == 0 {
		placeholders = DefaultPlaceholders
	}
	g := LockGuard{placeholders: make(map[string]struct{}, len(placeholders))}
	for _, p := range placeholders {
		g.placeholders[Normalize(p)] = struct{}{}
	}
	return g
}

// IsPlaceholder reports whether docNo carries no real document number
func (g LockGuard) IsPlaceholder(docNo string) bool {
	n := Normalize(docNo)
	if n == "" {
		return true
	}
	_, ok := g.placeholders[n]
	return ok
}

// CanWrite checks a create or update against the records already known.
// excludeID skips the record being edited.
func (g LockGuard) CanWrite(docNo, productKey string, records []ReturnRecord, excludeID string) LockDecision {
	if g.IsPlaceholder(docNo) {
		return LockDecision{Allowed: true}
	}
	candidate := Normalize(docNo)
	key := Normalize(productKey)

	duplicate := false
	for _, rec := range records {
		if excludeID != "" && rec.ID == excludeID {
			continue
		}
		if Normalize(rec.DocumentNo) != candidate && Normalize(rec.RefNo) != candidate {
			continue
		}
		if !rec.Status.IsInitial() {
			return LockDecision{Reason: LockReasonProcessingLocked}
		}
		if key != "" && Normalize(rec.ProductKey()) == key {
			duplicate = true
		}
	}
	if duplicate {
		return LockDecision{Reason: LockReasonExactDuplicate}
	}
	return LockDecision{Allowed: true}
}

// String returns the reason as reported to operators
func (r LockReason) String() string {
	return string(r)
}
