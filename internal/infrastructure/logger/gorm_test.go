package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLogger(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-9")
	sql := func() (string, int64) { return "SELECT 1", 1 }

	t.Run("errors are logged except record not found", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		l := NewGormLogger(zap.New(core), gormlogger.Warn, 0)

		l.Trace(ctx, time.Now(), sql, errors.New("connection reset"))
		l.Trace(ctx, time.Now(), sql, gormlogger.ErrRecordNotFound)

		entries := logs.All()
		if assert.Len(t, entries, 1) {
			assert.Equal(t, "SQL Error", entries[0].Message)
			assert.Equal(t, "req-9", entries[0].ContextMap()["request_id"])
		}
	})

	t.Run("slow queries warn", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		l := NewGormLogger(zap.New(core), gormlogger.Warn, time.Millisecond)

		l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
		assert.Equal(t, 1, logs.FilterMessage("Slow SQL").Len())
	})

	t.Run("silent mode", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		l := NewGormLogger(zap.New(core), gormlogger.Warn, 0).LogMode(gormlogger.Silent)

		l.Trace(ctx, time.Now(), sql, errors.New("x"))
		assert.Zero(t, logs.Len())
	})
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel(""))
}
