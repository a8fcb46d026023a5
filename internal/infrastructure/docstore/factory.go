package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/returnflow/backend/internal/domain/shared"
	"github.com/returnflow/backend/internal/infrastructure/config"
	"github.com/returnflow/backend/internal/infrastructure/persistence"
	"github.com/returnflow/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Backend is an opened document store plus the connections it owns
type Backend struct {
	Store    shared.DocumentStore
	Driver   string
	Redis    *redis.Client         // set for the redis driver, or when the document mutex needs it
	Database *persistence.Database // set for the postgres driver
}

// Open builds the store selected by cfg.Store.Driver
func Open(ctx context.Context, cfg *config.Config, metrics *telemetry.EngineMetrics, log *zap.Logger) (*Backend, error) {
	b := &Backend{Driver: cfg.Store.Driver}
	var store shared.DocumentStore

	switch cfg.Store.Driver {
	case config.StoreMemory:
		store = NewMemoryStore()
	case config.StoreRedis:
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		b.Redis = client
		store = NewRedisStore(client, cfg.Store.KeyNamespace, cfg.Store.AtomicRetries, log)
	case config.StorePostgres:
		db, err := persistence.NewDatabase(&cfg.Database, telemetry.DBTracingConfig{
			Enabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			LogFullSQL: cfg.Telemetry.DBLogFullSQL,
		}, log)
		if err != nil {
			return nil, classify("connect", err)
		}
		b.Database = db
		store = NewGormStore(db.DB, GormStoreOptions{
			Retries:      cfg.Store.AtomicRetries,
			PollInterval: cfg.Store.PollInterval,
		}, log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Lock.Enabled && b.Redis == nil && cfg.Store.Driver != config.StoreMemory {
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		b.Redis = client
	}

	b.Store = NewInstrumented(store, cfg.Store.Driver, metrics)
	log.Info("document store opened", zap.String("driver", cfg.Store.Driver))
	return b, nil
}

// NewRedisClient connects and pings Redis
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, classify("connect", fmt.Errorf("failed to connect to Redis: %w", err))
	}
	return client, nil
}

// Ping checks the connections behind the store
func (b *Backend) Ping(ctx context.Context) error {
	if b.Database != nil {
		if err := b.Database.Ping(ctx); err != nil {
			return classify("ping", err)
		}
	}
	if b.Redis != nil {
		if err := b.Redis.Ping(ctx).Err(); err != nil {
			return classify("ping", err)
		}
	}
	return nil
}

// Close closes the store and the connections it owns
func (b *Backend) Close() error {
	err := b.Store.Close()
	if b.Redis != nil {
		if cerr := b.Redis.Close(); err == nil {
			err = cerr
		}
	}
	if b.Database != nil {
		if cerr := b.Database.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
