// Package logging provides a zerolog backed logger for rtmp bridges.
//
// A *Logger satisfies both rtmp.Logger and rtmp.LogSink, so bridge
// diagnostics and native engine lines end up in the same stream.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Zereker/rtmp"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects the level and format of a Logger.
type Config struct {
	// Level is one of trace, debug, info, warn, error or disabled.
	Level string
	// Format is console or json. Defaults to console.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
	// App is attached to every line when set.
	App string
}

// Logger writes structured lines through zerolog.
type Logger struct {
	zl zerolog.Logger
}

// New builds a Logger from cfg.
func New(cfg Config) (*Logger, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = l
	}

	switch strings.ToLower(cfg.Format) {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case FormatJSON:
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.App != "" {
		ctx = ctx.Str("app", cfg.App)
	}
	return &Logger{zl: ctx.Logger()}, nil
}

// Wrap returns a Logger writing to zl.
func Wrap(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

// Zerolog returns the underlying zerolog logger.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

func (l *Logger) Debug(msg string, args ...any) { l.write(l.zl.Debug(), msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.write(l.zl.Info(), msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.write(l.zl.Warn(), msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.write(l.zl.Error(), msg, args) }

func (l *Logger) write(e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}
	if len(args) > 0 {
		e = e.Fields(normalize(args))
	}
	e.Msg(msg)
}

// normalize turns slog style key/value pairs into what zerolog expects.
// A trailing key without value is kept under "!BADKEY".
func normalize(args []any) []any {
	out := make([]any, 0, len(args)+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			out = append(out, "!BADKEY", args[i])
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		value := args[i+1]
		if s, ok := value.(fmt.Stringer); ok {
			value = s.String()
		}
		out = append(out, key, value)
	}
	return out
}

// Level returns the zerolog level an engine severity is written at.
func Level(sev rtmp.Severity) zerolog.Level {
	switch sev {
	case rtmp.SeverityFatal:
		return zerolog.FatalLevel
	case rtmp.SeverityError:
		return zerolog.ErrorLevel
	case rtmp.SeverityWarn:
		return zerolog.WarnLevel
	case rtmp.SeverityInfo:
		return zerolog.InfoLevel
	case rtmp.SeverityDebug:
		return zerolog.DebugLevel
	case rtmp.SeverityVerbose:
		return zerolog.TraceLevel
	default:
		return zerolog.NoLevel
	}
}

// Logf implements rtmp.LogSink. Fatal engine lines are written at fatal
// level without exiting.
func (l *Logger) Logf(sev rtmp.Severity, format string, args ...any) {
	l.zl.WithLevel(Level(sev)).
		Str("source", "engine").
		Msgf(format, args...)
}
