// Package docstore provides DocumentStore implementations: an in-process
// memory store, a Redis store and a SQL store on GORM.
package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/returnflow/backend/internal/domain/shared"
)

// DefaultAtomicRetries bounds RunAtomic attempts when no retry count is configured
const DefaultAtomicRetries = 5

// validatePath accepts "collection/id" and top-level "name" paths
func validatePath(path string) error {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") || strings.Count(path, "/") > 1 {
		return shared.NewDomainError("INVALID_PATH", fmt.Sprintf("invalid document path %q", path))
	}
	return nil
}

// mergePatch shallow-merges patch into the JSON object raw. Keys absent from
// patch keep their encoded bytes untouched.
func mergePatch(raw []byte, patch map[string]any) ([]byte, error) {
	doc := make(map[string]json.RawMessage)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("document is not a JSON object: %w", err)
		}
	}
	for k, v := range patch {
		enc, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", k, err)
		}
		doc[k] = enc
	}
	return json.Marshal(doc)
}

func sameDocs(a, b map[string][]byte) bool {
	return maps.EqualFunc(a, b, bytes.Equal)
}

// abortError carries an AtomicUpdateFunc error through store transactions so it
// can be returned to the caller unchanged.
type abortError struct{ err error }

func (e *abortError) Error() string { return e.err.Error() }
func (e *abortError) Unwrap() error { return e.err }

// feed fans collection snapshots out to subscribers. Deliveries are serialized
// per feed so a subscriber never sees an older snapshot after a newer one.
type feed struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]shared.SnapshotFunc
}

func newFeed() *feed {
	return &feed{subs: make(map[string]map[int]shared.SnapshotFunc)}
}

func (f *feed) add(collection string, fn shared.SnapshotFunc) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if f.subs[collection] == nil {
		f.subs[collection] = make(map[int]shared.SnapshotFunc)
	}
	f.subs[collection][f.nextID] = fn
	return f.nextID
}

func (f *feed) remove(collection string, id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs[collection], id)
}

func (f *feed) has(collection string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[collection]) > 0
}

// publish loads the collection while holding the delivery lock and hands the
// result to every subscriber. Subscribers must not write to the store.
func (f *feed) publish(collection string, load func() map[string][]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs[collection]) == 0 {
		return
	}
	docs := load()
	for _, fn := range f.subs[collection] {
		fn(cloneDocs(docs))
	}
}

// publishTo delivers the current collection to a single subscriber
func (f *feed) publishTo(collection string, id int, load func() map[string][]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn, ok := f.subs[collection][id]
	if !ok {
		return
	}
	fn(load())
}

func cloneDocs(docs map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(docs))
	for k, v := range docs {
		out[k] = bytes.Clone(v)
	}
	return out
}
