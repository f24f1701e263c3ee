package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(level Level, jsonOutput bool) (*DefaultLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: level, JSONOutput: jsonOutput, Stdout: &buf, Stderr: &buf})
	l.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return l, &buf
}

func TestLogger_Text(t *testing.T) {
	l, buf := newTestLogger(InfoLevel, false)
	l.Warn("combinational loop broken", "from", "u1/Z", "to", "u2/A")
	assert.Equal(t, "[2026-01-02 03:04:05] WARN: combinational loop broken from=u1/Z to=u2/A\n", buf.String())
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		level Level
		want  []string
	}{
		{DebugLevel, []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{InfoLevel, []string{"INFO", "WARN", "ERROR"}},
		{WarnLevel, []string{"WARN", "ERROR"}},
		{ErrorLevel, []string{"ERROR"}},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			l, buf := newTestLogger(tt.level, false)
			l.Debug("d")
			l.Info("i")
			l.Warn("w")
			l.Error("e")
			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			require.Len(t, lines, len(tt.want))
			for i, lvl := range tt.want {
				assert.Contains(t, lines[i], "] "+lvl+": ")
			}
		})
	}
}

func TestLogger_SetLevel(t *testing.T) {
	l, buf := newTestLogger(ErrorLevel, false)
	l.Info("hidden")
	l.SetLevel(DebugLevel)
	l.Debug("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogger_JSON(t *testing.T) {
	l, buf := newTestLogger(InfoLevel, true)
	l.With("design", "reg2reg").Error("search failed", "err", errors.New("boom"), "threads", 4)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "search failed", entry["message"])
	assert.Equal(t, "reg2reg", entry["design"])
	assert.Equal(t, "boom", entry["err"])
	assert.Equal(t, float64(4), entry["threads"])
}

func TestLogger_OddArgs(t *testing.T) {
	l, buf := newTestLogger(InfoLevel, false)
	l.Info("msg", "lonely")
	assert.Contains(t, buf.String(), "msg arg=lonely")
}

func TestLogger_WithSharesLevel(t *testing.T) {
	l, buf := newTestLogger(InfoLevel, false)
	child := l.With("pass", "arrivals")
	l.SetLevel(ErrorLevel)
	child.Info("dropped")
	assert.Empty(t, buf.String())

	child.SetLevel(InfoLevel)
	l.SetJSONOutput(true)
	child.Info("kept")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "arrivals", entry["pass"])
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"debug": DebugLevel, "": InfoLevel, "WARNING": WarnLevel, "error": ErrorLevel} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	assert.Same(t, Default(), FromContext(context.Background()))
	l, _ := newTestLogger(InfoLevel, false)
	assert.Same(t, l, FromContext(WithLogger(context.Background(), l)))
}

func TestSpinner_StopClearsLine(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "searching")
	s.Start()
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Stop()
	s.Stop()
	out := buf.String()
	assert.Contains(t, out, "searching")
	assert.True(t, strings.HasSuffix(out, "\r\033[K"))
}
