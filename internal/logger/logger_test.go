package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		" INFO ": zapcore.InfoLevel,
		"warn":   zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
		"fatal":  zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)

	_, ok = ParseLogLevel("")
	require.False(t, ok)
}

// TestContextHelpers checks that named loggers travel through the context.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := ToContext(context.Background(), New(&buf))
	ctx = WithName(ctx, "sentinel")
	ctx = WithKV(ctx, "episode", "abc")

	InfoKV(ctx, "Alarm raised", "phase", "ALARMED")

	out := buf.String()
	require.Contains(t, out, "sentinel")
	require.Contains(t, out, "Alarm raised")
	require.Contains(t, out, "abc")
	require.Contains(t, out, "ALARMED")
}

// TestFromContextFallsBackToGlobal ensures a bare context yields the global logger.
func TestFromContextFallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
	require.Equal(t, context.Background(), WithFields(context.Background()))
}
