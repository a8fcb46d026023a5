package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// EngineMetrics records lifecycle engine activity. A nil *EngineMetrics is valid
// and records nothing, so services can run without telemetry.
type EngineMetrics struct {
	numbersAllocated *Counter
	counterRollbacks *Counter
	transitions      *Counter
	syncTargets      *Counter
	reconcileItems   *Counter
	lockDenials      *Counter
	storeDuration    *Histogram
}

// NewEngineMetrics registers the engine instruments on meter
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	m := &EngineMetrics{}
	var err error

	if m.numbersAllocated, err = NewCounter(meter, "rma_numbers_allocated_total",
		"Document numbers handed out by the sequence allocator", "{numbers}"); err != nil {
		return nil, err
	}
	if m.counterRollbacks, err = NewCounter(meter, "rma_counter_rollbacks_total",
		"Compensating counter rollbacks", "{rollbacks}"); err != nil {
		return nil, err
	}
	if m.transitions, err = NewCounter(meter, "rma_transitions_total",
		"Workflow transitions attempted", "{transitions}"); err != nil {
		return nil, err
	}
	if m.syncTargets, err = NewCounter(meter, "rma_sync_targets_total",
		"Linked records written by the synchronizer", "{records}"); err != nil {
		return nil, err
	}
	if m.reconcileItems, err = NewCounter(meter, "rma_reconcile_items_total",
		"Records handled by maintenance sweeps", "{records}"); err != nil {
		return nil, err
	}
	if m.lockDenials, err = NewCounter(meter, "rma_lock_denials_total",
		"Writes denied by the document lock", "{writes}"); err != nil {
		return nil, err
	}
	if m.storeDuration, err = NewHistogram(meter, "rma_store_operation_duration_seconds",
		"Document store call latency", "s", StoreDurationBuckets...); err != nil {
		return nil, err
	}
	return m, nil
}

// NumberAllocated counts one allocation attempt
func (m *EngineMetrics) NumberAllocated(ctx context.Context, family, outcome string) {
	if m == nil {
		return
	}
	m.numbersAllocated.Inc(ctx, AttrFamily.String(family), AttrOutcome.String(outcome))
}

// CounterRolledBack counts one rollback attempt
func (m *EngineMetrics) CounterRolledBack(ctx context.Context, family, outcome string) {
	if m == nil {
		return
	}
	m.counterRollbacks.Inc(ctx, AttrFamily.String(family), AttrOutcome.String(outcome))
}

// Transition counts one transition attempt
func (m *EngineMetrics) Transition(ctx context.Context, action, outcome string) {
	if m == nil {
		return
	}
	m.transitions.Inc(ctx, AttrAction.String(action), AttrOutcome.String(outcome))
}

// SyncTargets counts n synchronizer writes
func (m *EngineMetrics) SyncTargets(ctx context.Context, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.syncTargets.Add(ctx, int64(n), AttrOutcome.String(outcome))
}

// ReconcileItems counts n records handled by a sweep
func (m *EngineMetrics) ReconcileItems(ctx context.Context, job, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.reconcileItems.Add(ctx, int64(n), AttrJob.String(job), AttrOutcome.String(outcome))
}

// LockDenied counts one denied write
func (m *EngineMetrics) LockDenied(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.lockDenials.Inc(ctx, AttrReason.String(reason))
}

// StoreCall records the latency of one document store call
func (m *EngineMetrics) StoreCall(ctx context.Context, driver, op string, d time.Duration) {
	if m == nil {
		return
	}
	m.storeDuration.RecordDuration(ctx, d, AttrDriver.String(driver), AttrOp.String(op))
}
