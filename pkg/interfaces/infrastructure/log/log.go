// Package log defines the logging interface shared by all components.
package log

import "go.uber.org/zap"

// Logger is the logging interface components depend on. Implementations are
// expected to be safe for concurrent use.
type Logger interface {
	// Debug logs a message at debug level.
	Debug(msg string)

	// Debugf logs a formatted message at debug level.
	Debugf(format string, args ...interface{})

	// Info logs a message at info level.
	Info(msg string)

	// Infof logs a formatted message at info level.
	Infof(format string, args ...interface{})

	// Warn logs a message at warn level.
	Warn(msg string)

	// Warnf logs a formatted message at warn level.
	Warnf(format string, args ...interface{})

	// Error logs a message at error level.
	Error(msg string)

	// Errorf logs a formatted message at error level.
	Errorf(format string, args ...interface{})

	// Fatal logs a message at fatal level and exits.
	Fatal(msg string)

	// Fatalf logs a formatted message at fatal level and exits.
	Fatalf(format string, args ...interface{})

	// With returns a Logger with additional key/value fields attached.
	With(args ...interface{}) Logger

	// Sync flushes buffered log entries.
	Sync() error

	// GetZapLogger exposes the underlying zap logger.
	GetZapLogger() *zap.Logger
}
