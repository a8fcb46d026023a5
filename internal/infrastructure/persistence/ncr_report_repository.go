package persistence

import (
	"context"
	"sort"

	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/returnflow/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// NCRReportRepository stores problem reports under ncr_reports/<id>. Reads go
// through the two-shape decoder; writes always use the nested item shape.
type NCRReportRepository struct {
	store  shared.DocumentStore
	logger *zap.Logger
}

// NewNCRReportRepository creates a report repository on store
func NewNCRReportRepository(store shared.DocumentStore, logger *zap.Logger) *NCRReportRepository {
	return &NCRReportRepository{store: store, logger: logger}
}

func reportPath(id string) string {
	return shared.DocumentPath(shared.CollectionNCRReports, id)
}

// FindByID loads one report
func (r *NCRReportRepository) FindByID(ctx context.Context, id string) (*returns.NCRReport, error) {
	raw, err := r.store.Get(ctx, reportPath(id))
	if err != nil {
		return nil, err
	}
	report, err := returns.DecodeNCRReport(id, raw)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// FindAll loads every report sorted by id
func (r *NCRReportRepository) FindAll(ctx context.Context) ([]returns.NCRReport, error) {
	docs, err := r.store.List(ctx, shared.CollectionNCRReports)
	if err != nil {
		return nil, err
	}
	reports, _ := DecodeReports(docs, r.logger)
	return reports, nil
}

// DecodeReports decodes a collection snapshot sorted by id. Documents that are
// not JSON objects come back as refs so callers can tell them from absent ones.
func DecodeReports(docs map[string][]byte, logger *zap.Logger) ([]returns.NCRReport, []returns.StoredRef) {
	out := make([]returns.NCRReport, 0, len(docs))
	var unreadable []returns.StoredRef
	for id, raw := range docs {
		report, err := returns.DecodeNCRReport(id, raw)
		if err != nil {
			logger.Warn("undecodable NCR report quarantined", zap.String("report_id", id), zap.Error(err))
			unreadable = append(unreadable, returns.ReadStoredRef(id, raw, "ncrNo"))
			continue
		}
		out = append(out, report)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	sortRefs(unreadable)
	return out, unreadable
}

// Save writes the whole report
func (r *NCRReportRepository) Save(ctx context.Context, report *returns.NCRReport) error {
	if report.ID == "" {
		return shared.NewDomainError("INVALID_INPUT", "report id is required")
	}
	raw, err := report.Encode()
	if err != nil {
		return err
	}
	return r.store.Set(ctx, reportPath(report.ID), raw)
}

// Patch shallow-merges top-level fields into the stored report
func (r *NCRReportRepository) Patch(ctx context.Context, id string, fields map[string]any) error {
	return r.store.Update(ctx, reportPath(id), fields)
}

var _ returns.NCRReportRepository = (*NCRReportRepository)(nil)
