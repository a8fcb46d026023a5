package returns

import (
	"context"
	"time"

	"github.com/returnflow/backend/internal/domain/returns"
)

// Snapshot is the latest known state of every record and report.
// Implementations hand out copies; callers never mutate them in place.
type Snapshot interface {
	Records() []returns.ReturnRecord
	Reports() []returns.NCRReport
	// Quarantine names stored documents that exist but could not be decoded
	Quarantine() returns.Quarantine
}

// DocumentMutex serializes writers of the same document number across processes
type DocumentMutex interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Notifier delivers an operator-facing message. Delivery is fire-and-forget.
type Notifier interface {
	Send(ctx context.Context, message string)
}

// Clock yields business dates in the configured time zone
type Clock struct {
	Location *time.Location
	NowFunc  func() time.Time
}

// NewClock creates a clock in loc; a nil loc means UTC
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Location: loc, NowFunc: time.Now}
}

// Now returns the current time in the clock's location
func (c Clock) Now() time.Time {
	now := time.Now
	if c.NowFunc != nil {
		now = c.NowFunc
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

// Today returns the current business date
func (c Clock) Today() string {
	return c.Now().Format(returns.DateLayout)
}
