package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/rtmp"
	"github.com/Zereker/rtmp/native"
)

func newJSON(t *testing.T, level string) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Config{Level: level, Format: FormatJSON, Output: &buf})
	require.NoError(t, err)
	return l, &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Format: "xml"})
	assert.Error(t, err)
}

func TestLogger_KeyValues(t *testing.T) {
	l, buf := newJSON(t, "debug")
	l.Info("session connected", "session", "abc", "handle", rtmp.Handle(7), "status", -1)

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "info", got[0]["level"])
	assert.Equal(t, "session connected", got[0]["message"])
	assert.Equal(t, "abc", got[0]["session"])
	assert.Equal(t, "rtmp#7", got[0]["handle"])
	assert.Equal(t, float64(-1), got[0]["status"])
}

func TestLogger_OddArgs(t *testing.T) {
	l, buf := newJSON(t, "info")
	l.Warn("odd", "dangling")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "dangling", got[0]["!BADKEY"])
}

func TestLogger_LevelFilter(t *testing.T) {
	l, buf := newJSON(t, "warn")
	l.Debug("hidden")
	l.Info("hidden")
	l.Error("shown")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "shown", got[0]["message"])
}

func TestLevel(t *testing.T) {
	cases := map[rtmp.Severity]zerolog.Level{
		rtmp.SeverityFatal:   zerolog.FatalLevel,
		rtmp.SeverityError:   zerolog.ErrorLevel,
		rtmp.SeverityWarn:    zerolog.WarnLevel,
		rtmp.SeverityInfo:    zerolog.InfoLevel,
		rtmp.SeverityDebug:   zerolog.DebugLevel,
		rtmp.SeverityVerbose: zerolog.TraceLevel,
		rtmp.SeverityUnknown: zerolog.NoLevel,
	}
	for sev, want := range cases {
		assert.Equal(t, want, Level(sev), sev.String())
	}
}

// Fatal engine lines must not terminate the process.
func TestLogf_FatalDoesNotExit(t *testing.T) {
	l, buf := newJSON(t, "trace")
	l.Logf(rtmp.SeverityFatal, "handshake failed: %d", 3)

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "fatal", got[0]["level"])
	assert.Equal(t, "handshake failed: 3", got[0]["message"])
	assert.Equal(t, "engine", got[0]["source"])
}

func TestLogf_ThroughLogBridge(t *testing.T) {
	l, buf := newJSON(t, "trace")
	bridge := rtmp.NewLogBridge(l)

	bridge.Handle(native.LogDebug, "chunk %d", 1)
	bridge.Handle(native.LogLevel(42), "mystery")

	got := lines(t, buf)
	require.Len(t, got, 3)
	assert.Equal(t, "debug", got[0]["level"])
	assert.Equal(t, "chunk 1", got[0]["message"])
	assert.Equal(t, "error", got[1]["level"])
	assert.Equal(t, "Unknown log level 42", got[1]["message"])
	assert.Nil(t, got[2]["level"])
	assert.Equal(t, "mystery", got[2]["message"])
}
