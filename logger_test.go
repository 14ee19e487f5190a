package rtmp

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/Zereker/rtmp/native"
)

func TestLogger_Interface(t *testing.T) {
	// Verify that *slog.Logger implements our Logger interface
	var _ Logger = slog.Default()
	var _ Logger = NopLogger{}
}

func TestDefaultLogger(t *testing.T) {
	logger := defaultLogger()

	if logger == nil {
		t.Fatal("defaultLogger returned nil")
	}

	if logger != slog.Default() {
		t.Error("defaultLogger did not return slog.Default()")
	}
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

// mockLogger records every call.
type mockLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *mockLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
	l.mu.Unlock()
}

func (l *mockLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *mockLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *mockLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *mockLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

func (l *mockLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

func (l *mockLogger) last() logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return logEntry{}
	}
	return l.entries[len(l.entries)-1]
}

func (e logEntry) arg(key string) (any, bool) {
	for i := 0; i+1 < len(e.args); i += 2 {
		if fmt.Sprint(e.args[i]) == key {
			return e.args[i+1], true
		}
	}
	return nil, false
}

func TestLoggerSink_Levels(t *testing.T) {
	logger := &mockLogger{}
	sink := LoggerSink(logger)

	sink.Logf(SeverityFatal, "fatal %d", 1)
	if e := logger.last(); e.level != "error" || e.msg != "fatal 1" {
		t.Errorf("fatal logged as %s %q, want error \"fatal 1\"", e.level, e.msg)
	}
	if sev, _ := logger.last().arg("severity"); sev != "fatal" {
		t.Errorf("severity = %v, want fatal", sev)
	}

	sink.Logf(SeverityWarn, "warn")
	if e := logger.last(); e.level != "warn" {
		t.Errorf("warn logged as %s", e.level)
	}

	sink.Logf(SeverityInfo, "info")
	if e := logger.last(); e.level != "info" {
		t.Errorf("info logged as %s", e.level)
	}

	sink.Logf(SeverityVerbose, "verbose %s", "line")
	if e := logger.last(); e.level != "debug" || e.msg != "verbose line" {
		t.Errorf("verbose logged as %s %q", e.level, e.msg)
	}

	if source, _ := logger.last().arg("source"); source != "engine" {
		t.Errorf("source = %v, want engine", source)
	}
}

func TestLoggerSink_UnknownLevel(t *testing.T) {
	logger := &mockLogger{}
	NewLogBridge(LoggerSink(logger)).Handle(native.LogLevel(-3), "odd line %d", 7)

	if n := len(logger.entries); n != 2 {
		t.Fatalf("got %d log entries, want 2", n)
	}
	if e := logger.entries[0]; e.level != "error" || e.msg != "Unknown log level -3" {
		t.Errorf("first entry = %s %q", e.level, e.msg)
	}
	// the engine line itself must pass an info level filter
	if e := logger.entries[1]; e.level != "info" || e.msg != "odd line 7" {
		t.Errorf("engine line logged as %s %q, want info", e.level, e.msg)
	}
	if sev, _ := logger.last().arg("severity"); sev != "unknown" {
		t.Errorf("severity = %v, want unknown", sev)
	}
}

func TestNopLogger(t *testing.T) {
	var logger Logger = NopLogger{}
	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")
}
