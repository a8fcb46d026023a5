package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger sends gorm output to zap with the request context fields
type GormLogger struct {
	logger        *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger creates a gorm logger. A zero slowThreshold disables slow-query warnings.
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{
		logger:        zapLogger.Named("gorm"),
		level:         level,
		slowThreshold: slowThreshold,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, at gormlogger.LogLevel, msg string, data []any) {
	if l.level < at {
		return
	}
	cl := WithLogger(ctx, l.logger)
	text := fmt.Sprintf(msg, data...)
	switch at {
	case gormlogger.Error:
		cl.Error(text)
	case gormlogger.Warn:
		cl.Warn(text)
	default:
		cl.Info(text)
	}
}

// Trace logs one statement. Absent rows are how the document store sees a
// missing document, and canceled contexts are the caller giving up, so
// neither is logged as an error.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold
	failed := err != nil &&
		!errors.Is(err, gormlogger.ErrRecordNotFound) &&
		!errors.Is(err, context.Canceled)

	if !failed && !slow && l.level < gormlogger.Info {
		return
	}

	sql, rows := fc()
	cl := WithLogger(ctx, l.logger).With(
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	)

	switch {
	case failed && l.level >= gormlogger.Error:
		cl.Error("SQL Error", zap.Error(err))
	case slow && l.level >= gormlogger.Warn:
		cl.Warn("Slow SQL", zap.Duration("threshold", l.slowThreshold))
	case l.level >= gormlogger.Info:
		cl.Debug("SQL Query")
	}
}

// MapGormLogLevel maps a log level name to a gorm log level
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
