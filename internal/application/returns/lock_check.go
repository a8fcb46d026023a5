package returns

import (
	"context"

	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/returnflow/backend/internal/infrastructure/logger"
	"github.com/returnflow/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

type lockCheck struct {
	guard    returns.LockGuard
	mutex    DocumentMutex
	snapshot Snapshot
	records  returns.RecordRepository
	metrics  *telemetry.EngineMetrics
}

func noop() {}

// checkDocumentLock runs the lock guard for one write. Without a mutex the check
// is advisory against the cached snapshot. With a mutex the document number is
// held until release is called and the check reads the store directly.
func checkDocumentLock(ctx context.Context, lc lockCheck, docNo, productKey, excludeID string) (release func(), err error) {
	if lc.guard.IsPlaceholder(docNo) {
		return noop, nil
	}

	release = noop
	records := lc.snapshot.Records()
	if lc.mutex != nil {
		release, err = lc.mutex.Lock(ctx, returns.Normalize(docNo))
		if err != nil {
			return noop, err
		}
		records, err = lc.records.FindAll(ctx)
		if err != nil {
			release()
			return noop, err
		}
	}

	decision := lc.guard.CanWrite(docNo, productKey, records, excludeID)
	if !decision.Allowed {
		release()
		logger.L(ctx).Info("document lock denied write",
			zap.String("document_no", docNo),
			zap.String("product", productKey),
			zap.String("reason", decision.Reason.String()),
		)
		lc.metrics.LockDenied(ctx, decision.Reason.String())
		return noop, decision.Err()
	}
	return release, nil
}
