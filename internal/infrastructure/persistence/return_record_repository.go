package persistence

import (
	"context"
	"errors"
	"sort"

	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/returnflow/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ReturnRecordRepository stores return records under return_records/<id>
type ReturnRecordRepository struct {
	store  shared.DocumentStore
	logger *zap.Logger
}

// NewReturnRecordRepository creates a record repository on store
func NewReturnRecordRepository(store shared.DocumentStore, logger *zap.Logger) *ReturnRecordRepository {
	return &ReturnRecordRepository{store: store, logger: logger}
}

func recordPath(id string) string {
	return shared.DocumentPath(shared.CollectionReturnRecords, id)
}

// FindByID loads one record
func (r *ReturnRecordRepository) FindByID(ctx context.Context, id string) (*returns.ReturnRecord, error) {
	raw, err := r.store.Get(ctx, recordPath(id))
	if err != nil {
		return nil, err
	}
	rec, err := returns.DecodeReturnRecord(id, raw)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindAll loads every record sorted by id. Documents that fail to decode are
// logged and skipped.
func (r *ReturnRecordRepository) FindAll(ctx context.Context) ([]returns.ReturnRecord, error) {
	docs, err := r.store.List(ctx, shared.CollectionReturnRecords)
	if err != nil {
		return nil, err
	}
	out, _ := DecodeRecords(docs, r.logger)
	return out, nil
}

// DecodeRecords decodes a collection snapshot sorted by id, returning refs
// for the documents that could not be decoded.
func DecodeRecords(docs map[string][]byte, logger *zap.Logger) ([]returns.ReturnRecord, []returns.StoredRef) {
	out := make([]returns.ReturnRecord, 0, len(docs))
	var unreadable []returns.StoredRef
	for id, raw := range docs {
		rec, err := returns.DecodeReturnRecord(id, raw)
		if err != nil {
			logger.Warn("undecodable return record quarantined", zap.String("record_id", id), zap.Error(err))
			unreadable = append(unreadable, returns.ReadStoredRef(id, raw, "ncrNumber"))
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	sortRefs(unreadable)
	return out, unreadable
}

func sortRefs(refs []returns.StoredRef) {
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
}

// Save writes the whole record
func (r *ReturnRecordRepository) Save(ctx context.Context, rec *returns.ReturnRecord) error {
	if rec.ID == "" {
		return shared.NewDomainError("INVALID_INPUT", "record id is required")
	}
	raw, err := rec.Encode()
	if err != nil {
		return err
	}
	return r.store.Set(ctx, recordPath(rec.ID), raw)
}

// Patch shallow-merges fields into the stored record
func (r *ReturnRecordRepository) Patch(ctx context.Context, id string, fields map[string]any) error {
	return r.store.Update(ctx, recordPath(id), fields)
}

// Mutate applies fn to the stored record through the store's atomic primitive.
// fn may run more than once when the store retries.
func (r *ReturnRecordRepository) Mutate(ctx context.Context, id string, fn func(rec *returns.ReturnRecord) error) (*returns.ReturnRecord, error) {
	var updated returns.ReturnRecord
	res, err := r.store.RunAtomic(ctx, recordPath(id), func(cur []byte) ([]byte, error) {
		if cur == nil {
			return nil, shared.ErrNotFound
		}
		rec, err := returns.DecodeReturnRecord(id, cur)
		if err != nil {
			return nil, err
		}
		if err := fn(&rec); err != nil {
			return nil, err
		}
		updated = rec
		return rec.Encode()
	})
	if err != nil {
		return nil, err
	}
	if !res.Committed {
		return nil, shared.ErrConcurrencyConflict
	}
	return &updated, nil
}

// Delete removes the record. Deleting a missing record reports ErrNotFound so
// callers can tell a purge of nothing from a purge.
func (r *ReturnRecordRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.store.Get(ctx, recordPath(id)); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrNotFound
		}
		return err
	}
	return r.store.Remove(ctx, recordPath(id))
}

var _ returns.RecordRepository = (*ReturnRecordRepository)(nil)
