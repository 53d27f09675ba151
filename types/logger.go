package types

// Logger is the structured logger used throughout tokenaware.
//
// Arguments after the message are alternating keys and values. The method
// set matches *slog.Logger, so a standard library logger can be passed
// directly; zap users can use contrib/logging/zap.
//
// Implementations must be safe for concurrent use.
type Logger interface {
	// Debug logs at debug level.
	Debug(msg string, keysAndValues ...any)

	// Info logs at info level.
	Info(msg string, keysAndValues ...any)

	// Warn logs at warn level.
	Warn(msg string, keysAndValues ...any)

	// Error logs at error level.
	Error(msg string, keysAndValues ...any)
}
