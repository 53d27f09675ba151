// Package zap provides a types.Logger backed by the Uber Zap logging library.
//
// Planner, topology and policy log calls pass key-value pairs; the adapter
// hands them to a zap.SugaredLogger so they end up as structured fields.
//
// Example:
//
//	z, _ := zap.NewProduction()
//	planner, _ := tokenaware.NewPlanner(store, fallback,
//	    tokenaware.WithLogger(zaplog.New(z)),
//	)
package zap

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arloliu/tokenaware/types"
)

// Logger adapts a zap.Logger to types.Logger.
type Logger struct {
	s *zap.SugaredLogger
}

var _ types.Logger = (*Logger)(nil)

// New creates a Logger that wraps the given zap.Logger. A nil logger
// discards everything.
func New(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}

	return &Logger{s: z.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// Debug logs a message at the Debug level with key-value pairs.
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

// Info logs a message at the Info level with key-value pairs.
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.s.Infow(msg, keysAndValues...)
}

// Warn logs a message at the Warn level with key-value pairs.
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.s.Warnw(msg, keysAndValues...)
}

// Error logs a message at the Error level with key-value pairs.
func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.s.Errorw(msg, keysAndValues...)
}

// Named returns a Logger with an additional name scope.
func (l *Logger) Named(name string) *Logger {
	return &Logger{s: l.s.Named(name)}
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.s.Sync()
}

// DefaultLogger creates a Logger that writes to standard output using
// zap's console encoder with ISO8601 timestamps, at the given level and
// above.
func DefaultLogger(level zapcore.Level) *Logger {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		CallerKey:      "C",
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(os.Stdout), level)

	return New(zap.New(core, zap.AddCaller()))
}
