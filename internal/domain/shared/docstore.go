package shared

import (
	"context"
	"strings"
)

// Document collections and well-known paths
const (
	CollectionReturnRecords = "return_records"
	CollectionNCRReports    = "ncr_reports"
	CollectionCounters      = "counters"
	PathSystemConfig        = "system_config"
)

// DocumentPath joins a collection and a document id into a store path
func DocumentPath(collection, id string) string {
	return collection + "/" + id
}

// SplitPath returns the collection and id parts of a store path.
// Top-level documents such as system_config have an empty id.
func SplitPath(path string) (collection, id string) {
	collection, id, _ = strings.Cut(path, "/")
	return collection, id
}

// AtomicResult is the outcome of a transaction primitive call
type AtomicResult struct {
	Committed bool
	Value     []byte
}

// AtomicUpdateFunc receives the current document (nil when absent) and returns its
// replacement. Returning a nil value commits without writing; returning an error
// abandons the transaction.
type AtomicUpdateFunc func(current []byte) ([]byte, error)

// SnapshotFunc receives every document of a collection keyed by id
type SnapshotFunc func(docs map[string][]byte)

// DocumentStore is a hierarchical JSON document store with change subscriptions
// and a single-document atomic read-modify-write primitive.
type DocumentStore interface {
	// Get returns the raw document or ErrNotFound
	Get(ctx context.Context, path string) ([]byte, error)
	// Set replaces the document at path
	Set(ctx context.Context, path string, value []byte) error
	// Update shallow-merges patch into the JSON object at path. Returns ErrNotFound when absent.
	Update(ctx context.Context, path string, patch map[string]any) error
	// Remove deletes the document. Removing a missing document is not an error.
	Remove(ctx context.Context, path string) error
	// List returns the direct children of a collection keyed by id
	List(ctx context.Context, collection string) (map[string][]byte, error)
	// Subscribe pushes the whole collection once immediately and again after each change
	Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (cancel func(), err error)
	// RunAtomic runs fn against the current value, retrying on write conflicts.
	// Committed is false when the store gave up after its retry budget.
	RunAtomic(ctx context.Context, path string, fn AtomicUpdateFunc) (AtomicResult, error)
	// Close releases store resources
	Close() error
}
