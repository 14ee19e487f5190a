package rtmp

import (
	"fmt"
	"log/slog"
)

// Logger is the interface for structured logging.
// *slog.Logger satisfies it.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, args ...any)
	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, args ...any)
	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, args ...any)
	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, args ...any)
}

// defaultLogger returns the default slog logger from the standard library.
func defaultLogger() Logger {
	return slog.Default()
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// LoggerSink adapts a Logger into a LogSink. Engine lines are rendered with
// fmt and tagged with their native severity.
func LoggerSink(l Logger) LogSink {
	return loggerSink{l}
}

type loggerSink struct {
	l Logger
}

func (s loggerSink) Logf(sev Severity, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	switch sev {
	case SeverityFatal, SeverityError:
		s.l.Error(msg, "source", "engine", "severity", sev.String())
	case SeverityWarn:
		s.l.Warn(msg, "source", "engine")
	case SeverityInfo:
		s.l.Info(msg, "source", "engine")
	case SeverityUnknown:
		s.l.Info(msg, "source", "engine", "severity", sev.String())
	default:
		s.l.Debug(msg, "source", "engine", "severity", sev.String())
	}
}
