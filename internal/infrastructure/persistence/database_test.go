package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/returnflow/backend/internal/infrastructure/config"
	"github.com/returnflow/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// sqlmock's option type is unexported, so helpers take the ping-monitoring flag directly.
func mockDialector(t *testing.T, monitorPings bool) (gorm.Dialector, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(monitorPings))
	require.NoError(t, err)
	return postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), mock, mockDB
}

func TestOpen(t *testing.T) {
	t.Run("applies pool settings", func(t *testing.T) {
		dialector, _, mockDB := mockDialector(t, false)
		defer mockDB.Close()

		db, err := Open(dialector, &config.DatabaseConfig{
			MaxOpenConns:    7,
			MaxIdleConns:    3,
			ConnMaxLifetime: 5,
			LogLevel:        "silent",
			SlowThreshold:   time.Second,
		}, telemetry.DBTracingConfig{}, zap.NewNop())
		require.NoError(t, err)

		sqlDB, err := db.DB.DB()
		require.NoError(t, err)
		assert.Equal(t, 7, sqlDB.Stats().MaxOpenConnections)
		assert.True(t, db.DB.Config.SkipDefaultTransaction)
		assert.True(t, db.DB.Config.TranslateError)
	})

	t.Run("registers tracing plugin", func(t *testing.T) {
		dialector, _, mockDB := mockDialector(t, false)
		defer mockDB.Close()

		db, err := Open(dialector, &config.DatabaseConfig{LogLevel: "silent"},
			telemetry.DBTracingConfig{Enabled: true}, zap.NewNop())
		require.NoError(t, err)
		assert.Contains(t, db.DB.Config.Plugins, "otelgorm")
	})

	t.Run("no tracing plugin when disabled", func(t *testing.T) {
		dialector, _, mockDB := mockDialector(t, false)
		defer mockDB.Close()

		db, err := Open(dialector, &config.DatabaseConfig{LogLevel: "silent"},
			telemetry.DBTracingConfig{}, zap.NewNop())
		require.NoError(t, err)
		assert.NotContains(t, db.DB.Config.Plugins, "otelgorm")
	})
}

func newMockDatabase(t *testing.T, monitorPings bool) (*Database, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	dialector, mock, mockDB := mockDialector(t, monitorPings)
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)
	return &Database{DB: gormDB}, mock, mockDB
}

func TestDatabase_Ping(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t, true)
		defer mockDB.Close()

		mock.ExpectPing()
		assert.NoError(t, db.Ping(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("connection lost", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t, true)
		defer mockDB.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		assert.ErrorContains(t, db.Ping(context.Background()), "connection refused")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDatabase_Close(t *testing.T) {
	db, mock, _ := newMockDatabase(t, false)

	mock.ExpectClose()
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
