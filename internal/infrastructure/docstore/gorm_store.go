package docstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/returnflow/backend/internal/domain/shared"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentModel is one row of the documents table
type DocumentModel struct {
	Path       string         `gorm:"primaryKey;size:255"`
	Collection string         `gorm:"size:100;not null;index"`
	DocID      string         `gorm:"column:doc_id;size:150;not null"`
	Body       datatypes.JSON `gorm:"not null"`
	UpdatedAt  time.Time
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

func newDocumentModel(path string, body []byte) DocumentModel {
	collection, id := shared.SplitPath(path)
	return DocumentModel{
		Path:       path,
		Collection: collection,
		DocID:      id,
		Body:       datatypes.JSON(body),
		UpdatedAt:  time.Now(),
	}
}

// GormStoreOptions tunes a GormStore
type GormStoreOptions struct {
	Retries      int
	PollInterval time.Duration
}

// GormStore keeps documents in a SQL table. Row locks serialize RunAtomic;
// subscribers see local writes at once and remote writes on the next poll.
type GormStore struct {
	db     *gorm.DB
	opts   GormStoreOptions
	logger *zap.Logger

	mu      sync.Mutex
	kicks   map[string][]chan struct{}
	cancels []func()
}

// NewGormStore wraps db. The documents table must already exist.
func NewGormStore(db *gorm.DB, opts GormStoreOptions, logger *zap.Logger) *GormStore {
	if opts.Retries < 1 {
		opts.Retries = DefaultAtomicRetries
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &GormStore{
		db:     db,
		opts:   opts,
		logger: logger.Named("gorm_store"),
		kicks:  make(map[string][]chan struct{}),
	}
}

// AutoMigrate creates the documents table. Production schema comes from migrations.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&DocumentModel{})
}

// Get implements shared.DocumentStore
func (s *GormStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	var row DocumentModel
	err := s.db.WithContext(ctx).Where("path = ?", path).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, classify("get", err)
	}
	return []byte(row.Body), nil
}

func upsert(tx *gorm.DB, path string, body []byte) error {
	row := newDocumentModel(path, body)
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&row).Error
}

// writeLocked stores next for a row read inside the same transaction. A
// missing row is inserted without ON CONFLICT so a concurrent creator fails
// with a unique violation instead of being overwritten.
func writeLocked(tx *gorm.DB, path string, next []byte, exists bool) error {
	if !exists {
		row := newDocumentModel(path, next)
		return tx.Create(&row).Error
	}
	return tx.Model(&DocumentModel{}).Where("path = ?", path).
		Updates(map[string]any{"body": datatypes.JSON(next), "updated_at": time.Now()}).Error
}

// Set implements shared.DocumentStore
func (s *GormStore) Set(ctx context.Context, path string, value []byte) error {
	if err := validatePath(path); err != nil {
		return err
	}
	if err := upsert(s.db.WithContext(ctx), path, value); err != nil {
		return classify("set", err)
	}
	s.changed(path)
	return nil
}

// Update implements shared.DocumentStore
func (s *GormStore) Update(ctx context.Context, path string, patch map[string]any) error {
	res, err := s.RunAtomic(ctx, path, func(cur []byte) ([]byte, error) {
		if cur == nil {
			return nil, shared.ErrNotFound
		}
		return mergePatch(cur, patch)
	})
	if err != nil {
		return err
	}
	if !res.Committed {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Remove implements shared.DocumentStore
func (s *GormStore) Remove(ctx context.Context, path string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Where("path = ?", path).Delete(&DocumentModel{})
	if result.Error != nil {
		return classify("remove", result.Error)
	}
	if result.RowsAffected > 0 {
		s.changed(path)
	}
	return nil
}

// List implements shared.DocumentStore
func (s *GormStore) List(ctx context.Context, collection string) (map[string][]byte, error) {
	var rows []DocumentModel
	err := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id <> ''", collection).
		Find(&rows).Error
	if err != nil {
		return nil, classify("list", err)
	}
	out := make(map[string][]byte, len(rows))
	for _, row := range rows {
		out[row.DocID] = []byte(row.Body)
	}
	return out, nil
}

// RunAtomic implements shared.DocumentStore. The row is read FOR UPDATE inside
// a transaction; a concurrent insert of the same path surfaces as a unique
// violation and the attempt is retried.
func (s *GormStore) RunAtomic(ctx context.Context, path string, fn shared.AtomicUpdateFunc) (shared.AtomicResult, error) {
	if err := validatePath(path); err != nil {
		return shared.AtomicResult{}, err
	}

	for attempt := 1; attempt <= s.opts.Retries; attempt++ {
		var result shared.AtomicResult
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var row DocumentModel
			var cur []byte
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("path = ?", path).First(&row).Error
			switch {
			case err == nil:
				cur = []byte(row.Body)
			case errors.Is(err, gorm.ErrRecordNotFound):
			default:
				return err
			}

			next, err := fn(cur)
			if err != nil {
				return &abortError{err: err}
			}
			if next == nil {
				result = shared.AtomicResult{Committed: true, Value: cur}
				return nil
			}
			if err := writeLocked(tx, path, next, cur != nil); err != nil {
				return err
			}
			result = shared.AtomicResult{Committed: true, Value: next}
			return nil
		})

		var abort *abortError
		switch {
		case err == nil:
			if result.Value != nil {
				s.changed(path)
			}
			return result, nil
		case errors.As(err, &abort):
			return shared.AtomicResult{}, abort.err
		case isRetryable(err):
			s.logger.Debug("atomic update conflicted, retrying",
				zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
			continue
		default:
			return shared.AtomicResult{}, classify("atomic", err)
		}
	}

	s.logger.Warn("atomic update gave up after retries",
		zap.String("path", path), zap.Int("attempts", s.opts.Retries))
	return shared.AtomicResult{Committed: false}, nil
}

// Subscribe implements shared.DocumentStore
func (s *GormStore) Subscribe(ctx context.Context, collection string, fn shared.SnapshotFunc) (func(), error) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	fn(docs)

	last := docs
	kick := make(chan struct{}, 1)
	s.mu.Lock()
	s.kicks[collection] = append(s.kicks[collection], kick)
	s.mu.Unlock()

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
			case <-kick:
			}
			docs, err := s.List(subCtx, collection)
			if err != nil {
				if subCtx.Err() == nil {
					s.logger.Warn("failed to poll collection",
						zap.String("collection", collection), zap.Error(err))
				}
				continue
			}
			if sameDocs(last, docs) {
				continue
			}
			last = docs
			fn(docs)
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			wg.Wait()
			s.dropKick(collection, kick)
		})
	}
	s.mu.Lock()
	s.cancels = append(s.cancels, stop)
	s.mu.Unlock()
	return stop, nil
}

func (s *GormStore) dropKick(collection string, kick chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kicks := s.kicks[collection]
	for i, k := range kicks {
		if k == kick {
			s.kicks[collection] = append(kicks[:i], kicks[i+1:]...)
			return
		}
	}
}

// changed wakes local subscribers of the path's collection
func (s *GormStore) changed(path string) {
	collection, id := shared.SplitPath(path)
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kick := range s.kicks[collection] {
		select {
		case kick <- struct{}{}:
		default:
		}
	}
}

// Close stops all subscriptions. The database handle is owned by the caller.
func (s *GormStore) Close() error {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()
	for _, stop := range cancels {
		stop()
	}
	return nil
}

var _ shared.DocumentStore = (*GormStore)(nil)
