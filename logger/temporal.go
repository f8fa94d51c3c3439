package logger

import (
	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// TemporalLogger adapts zap to the Temporal SDK logger so workflow and
// activity logs end up in the same stream as the rest of the process.
type TemporalLogger struct {
	sugar *zap.SugaredLogger
}

var (
	_ log.Logger     = (*TemporalLogger)(nil)
	_ log.WithLogger = (*TemporalLogger)(nil)
)

// NewTemporalLogger wraps z for use in client.Options.Logger.
func NewTemporalLogger(z *zap.Logger) *TemporalLogger {
	return &TemporalLogger{sugar: z.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *TemporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.sugar.Debugw(msg, keyvals...)
}

func (l *TemporalLogger) Info(msg string, keyvals ...interface{}) {
	l.sugar.Infow(msg, keyvals...)
}

func (l *TemporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.sugar.Warnw(msg, keyvals...)
}

func (l *TemporalLogger) Error(msg string, keyvals ...interface{}) {
	l.sugar.Errorw(msg, keyvals...)
}

// With returns a logger that adds keyvals to every entry.
func (l *TemporalLogger) With(keyvals ...interface{}) log.Logger {
	return &TemporalLogger{sugar: l.sugar.With(keyvals...)}
}
