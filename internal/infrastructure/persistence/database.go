// Package persistence opens the SQL database and implements the return and
// NCR repositories on top of the document store.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/returnflow/backend/internal/infrastructure/config"
	"github.com/returnflow/backend/internal/infrastructure/logger"
	"github.com/returnflow/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Database is the gorm handle behind the postgres document store
type Database struct {
	DB *gorm.DB
}

// NewDatabase connects to the configured Postgres server.
func NewDatabase(cfg *config.DatabaseConfig, tracing telemetry.DBTracingConfig, log *zap.Logger) (*Database, error) {
	return Open(postgres.Open(cfg.DSN()), cfg, tracing, log)
}

// Open builds a Database on any dialector, so tests can hand in sqlmock.
func Open(dialector gorm.Dialector, cfg *config.DatabaseConfig, tracing telemetry.DBTracingConfig, log *zap.Logger) (*Database, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.LogLevel), cfg.SlowThreshold),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	d := &Database{DB: db}
	pool, err := d.pool()
	if err != nil {
		return nil, err
	}
	configurePool(pool, cfg)

	if err := telemetry.RegisterDBTracing(db, tracing, log); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("register database tracing: %w", err)
	}

	log.Info("Database connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.DBName),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)
	return d, nil
}

func configurePool(pool *sql.DB, cfg *config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	}
}

func (d *Database) pool() (*sql.DB, error) {
	pool, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("database pool: %w", err)
	}
	return pool, nil
}

// Ping round-trips to the server
func (d *Database) Ping(ctx context.Context) error {
	pool, err := d.pool()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

func (d *Database) Close() error {
	pool, err := d.pool()
	if err != nil {
		return err
	}
	return pool.Close()
}
