package telemetry

import (
	"go.opentelemetry.io/contrib/bridges/otelzap"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap/zapcore"
)

func newOTELCore(serviceName string, lp *sdklog.LoggerProvider) zapcore.Core {
	return otelzap.NewCore(serviceName, otelzap.WithLoggerProvider(lp))
}

// levelFilterCore drops entries below floor before they reach the wrapped core.
// The otelzap core accepts every level on its own.
type levelFilterCore struct {
	zapcore.Core
	floor zapcore.Level
}

func newLevelFilterCore(core zapcore.Core, floor zapcore.Level) zapcore.Core {
	return &levelFilterCore{Core: core, floor: floor}
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.floor && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if entry.Level < c.floor {
		return ce
	}
	return c.Core.Check(entry, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return newLevelFilterCore(c.Core.With(fields), c.floor)
}
