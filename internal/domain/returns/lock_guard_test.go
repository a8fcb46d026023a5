package returns

import (
	"errors"
	"testing"

	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

func sibling(id, docNo, code string, status Status) ReturnRecord {
	return ReturnRecord{ID: id, DocumentNo: docNo, ProductCode: code, Status: status}
}

func TestLockGuard_CanWrite(t *testing.T) {
	guard := NewLockGuard()

	tests := []struct {
		name      string
		docNo     string
		product   string
		records   []ReturnRecord
		excludeID string
		want      LockDecision
	}{
		{
			name:    "processing sibling locks the document",
			docNo:   "R-100",
			product: "P2",
			records: []ReturnRecord{sibling("a", "R-100", "P1", StatusJobAccepted)},
			want:    LockDecision{Reason: LockReasonProcessingLocked},
		},
		{
			name:    "draft sibling allows a different product",
			docNo:   "R-100",
			product: "P2",
			records: []ReturnRecord{sibling("a", "R-100", "P1", StatusDraft)},
			want:    LockDecision{Allowed: true},
		},
		{
			name:    "same product is an exact duplicate",
			docNo:   "R-100",
			product: "P1",
			records: []ReturnRecord{sibling("a", "R-100", "P1", StatusDraft)},
			want:    LockDecision{Reason: LockReasonExactDuplicate},
		},
		{
			name:    "normalization ignores case and spaces",
			docNo:   "  r-100 ",
			product: " p1",
			records: []ReturnRecord{sibling("a", "R-100", "P1", StatusRequested)},
			want:    LockDecision{Reason: LockReasonExactDuplicate},
		},
		{
			name:    "processing lock wins over duplicate",
			docNo:   "R-100",
			product: "P1",
			records: []ReturnRecord{
				sibling("a", "R-100", "P1", StatusDraft),
				sibling("b", "R-100", "P3", StatusNCRInTransit),
			},
			want: LockDecision{Reason: LockReasonProcessingLocked},
		},
		{
			name:    "refNo is an alias of documentNo",
			docNo:   "R-100",
			product: "P2",
			records: []ReturnRecord{{ID: "a", RefNo: "R-100", ProductCode: "P1", Status: StatusCompleted}},
			want:    LockDecision{Reason: LockReasonProcessingLocked},
		},
		{
			name:      "the edited record is excluded",
			docNo:     "R-100",
			product:   "P1",
			records:   []ReturnRecord{sibling("a", "R-100", "P1", StatusDraft)},
			excludeID: "a",
			want:      LockDecision{Allowed: true},
		},
		{
			name:    "empty document number always allowed",
			docNo:   "   ",
			product: "P1",
			records: []ReturnRecord{sibling("a", "", "P1", StatusJobAccepted)},
			want:    LockDecision{Allowed: true},
		},
		{
			name:    "placeholder document number always allowed",
			docNo:   "N/A",
			product: "P1",
			records: []ReturnRecord{sibling("a", "n/a", "P1", StatusJobAccepted)},
			want:    LockDecision{Allowed: true},
		},
		{
			name:    "product name is the key when code is empty",
			docNo:   "R-7",
			product: "Blue Widget",
			records: []ReturnRecord{{ID: "a", DocumentNo: "R-7", ProductName: "blue widget", Status: StatusDraft}},
			want:    LockDecision{Reason: LockReasonExactDuplicate},
		},
		{
			name:    "other documents do not matter",
			docNo:   "R-200",
			product: "P1",
			records: []ReturnRecord{sibling("a", "R-100", "P1", StatusCompleted)},
			want:    LockDecision{Allowed: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := guard.CanWrite(tt.docNo, tt.product, tt.records, tt.excludeID)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLockDecision_Err(t *testing.T) {
	assert.NoError(t, LockDecision{Allowed: true}.Err())
	assert.True(t, errors.Is(LockDecision{Reason: LockReasonProcessingLocked}.Err(), shared.ErrDocumentLocked))
	assert.True(t, errors.Is(LockDecision{Reason: LockReasonExactDuplicate}.Err(), shared.ErrDuplicateLine))
}

func TestLockGuard_CustomPlaceholders(t *testing.T) {
	guard := NewLockGuard("xxx")
	assert.True(t, guard.IsPlaceholder("XXX"))
	assert.False(t, guard.IsPlaceholder("-"))
}
