package rtmp

import (
	"github.com/Zereker/rtmp/native"
)

// Severity is the host side log severity.
type Severity int

// Host severities, least severe first.
const (
	SeverityUnknown Severity = iota
	SeverityVerbose
	SeverityDebug
	SeverityInfo
	SeverityWarn
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityVerbose:
		return "verbose"
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// LogSink receives engine log lines. format and args are the engine's own.
type LogSink interface {
	Logf(sev Severity, format string, args ...any)
}

// LogBridge forwards engine log lines to a LogSink.
type LogBridge struct {
	sink LogSink
}

// NewLogBridge returns a bridge writing to sink.
func NewLogBridge(sink LogSink) *LogBridge {
	return &LogBridge{sink: sink}
}

// SeverityOf maps an engine level to the host severity.
func SeverityOf(level native.LogLevel) (Severity, bool) {
	switch level {
	case native.LogCritical:
		return SeverityFatal, true
	case native.LogError:
		return SeverityError, true
	case native.LogWarning:
		return SeverityWarn, true
	case native.LogInfo:
		return SeverityInfo, true
	case native.LogDebug:
		return SeverityDebug, true
	case native.LogDebug2, native.LogAll:
		return SeverityVerbose, true
	default:
		return SeverityUnknown, false
	}
}

// Handle is a native.LogFunc. An unknown level is reported as an error and
// the line is still forwarded, at SeverityUnknown.
func (b *LogBridge) Handle(level native.LogLevel, format string, args ...any) {
	sev, ok := SeverityOf(level)
	if !ok {
		b.sink.Logf(SeverityError, "Unknown log level %d", int(level))
	}
	b.sink.Logf(sev, format, args...)
}
