package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// swapStdout points the console sink at a pipe until the returned func is
// called, which yields everything written meanwhile.
func swapStdout(t *testing.T) func() string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	prev := osStdout
	osStdout = w
	return func() string {
		_ = w.Close()
		osStdout = prev
		var out bytes.Buffer
		_, _ = out.ReadFrom(r)
		_ = r.Close()
		return out.String()
	}
}

func TestSetup_Sinks(t *testing.T) {
	t.Run("file replaces stdout", func(t *testing.T) {
		restore := swapStdout(t)
		var file bytes.Buffer
		m := NewSlogManager()
		m.Setup(Options{Level: "info", File: &file})
		m.Logger().Info("marker added")

		assert.Empty(t, restore())
		assert.Contains(t, file.String(), "marker added")
	})

	t.Run("stdout without file", func(t *testing.T) {
		restore := swapStdout(t)
		m := NewSlogManager()
		m.Setup(Options{Level: "info"})
		m.Logger().Info("extent recomputed")

		assert.Contains(t, restore(), "extent recomputed")
	})

	t.Run("graylog gets json", func(t *testing.T) {
		var file, gl bytes.Buffer
		m := NewSlogManager()
		m.Setup(Options{Level: "info", File: &file, Graylog: &gl})
		m.Logger().Info("session created", "session", "s-1")

		assert.Contains(t, file.String(), "session=s-1")
		assert.Contains(t, gl.String(), `"session":"s-1"`)
	})

	t.Run("otel provider", func(t *testing.T) {
		var file bytes.Buffer
		m := NewSlogManager()
		m.Setup(Options{Level: "info", File: &file, Provider: sdklog.NewLoggerProvider()})
		m.Logger().Info("bridged")

		assert.Contains(t, file.String(), "bridged")
		assert.NoError(t, m.Flush(context.Background()))
	})
}

func TestSetup_Levels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantWarn  bool
	}{
		{level: "debug", wantDebug: true, wantWarn: true},
		{level: "info", wantDebug: false, wantWarn: true},
		{level: "error", wantDebug: false, wantWarn: false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(Options{Level: tt.level, File: &buf})
			m.Logger().Debug("dbg-line")
			m.Logger().Warn("warn-line")

			assert.Equal(t, tt.wantDebug, strings.Contains(buf.String(), "dbg-line"))
			assert.Equal(t, tt.wantWarn, strings.Contains(buf.String(), "warn-line"))
		})
	}
}

func TestSetup_SecondCallSwapsSinks(t *testing.T) {
	var early, late bytes.Buffer
	m := NewSlogManager()

	m.Setup(Options{Level: "info", File: &early})
	m.Logger().Info("before config")
	m.Setup(Options{Level: "info", File: &late})
	m.Logger().Info("after config")

	assert.Contains(t, early.String(), "before config")
	assert.NotContains(t, early.String(), "after config")
	assert.Contains(t, late.String(), "after config")
}

func TestSetup_TimestampsAreUTC(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{Level: "info", File: &buf})
	m.Logger().Info("stamp")

	assert.Regexp(t, `time=\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z`, buf.String())
}

func TestSlogManager_Unconfigured(t *testing.T) {
	m := NewSlogManager()
	assert.Equal(t, slog.Default(), m.Logger())
	assert.NoError(t, m.Flush(context.Background()))
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"Info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestSetup_ContextProvider(t *testing.T) {
	var buf bytes.Buffer
	sessions := 0
	m := NewSlogManager()
	m.Setup(Options{
		Level: "info",
		File:  &buf,
		Context: func() []slog.Attr {
			return []slog.Attr{slog.Int("sessions", sessions)}
		},
	})

	sessions = 3
	m.Logger().Info("tick")

	assert.Contains(t, buf.String(), "sessions=3")
}
