package returns

import "context"

// RecordRepository persists return records
type RecordRepository interface {
	FindByID(ctx context.Context, id string) (*ReturnRecord, error)
	FindAll(ctx context.Context) ([]ReturnRecord, error)
	Save(ctx context.Context, rec *ReturnRecord) error
	// Patch shallow-merges fields into the stored record
	Patch(ctx context.Context, id string, fields map[string]any) error
	// Mutate runs fn against the current record inside the store transaction primitive
	Mutate(ctx context.Context, id string, fn func(rec *ReturnRecord) error) (*ReturnRecord, error)
	Delete(ctx context.Context, id string) error
}

// NCRReportRepository persists problem reports
type NCRReportRepository interface {
	FindByID(ctx context.Context, id string) (*NCRReport, error)
	FindAll(ctx context.Context) ([]NCRReport, error)
	Save(ctx context.Context, report *NCRReport) error
	Patch(ctx context.Context, id string, fields map[string]any) error
}
