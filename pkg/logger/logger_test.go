package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("STEG_LOG_LEVEL", "DEBUG")
	t.Setenv("STEG_LOG_FORMAT", "json")
	t.Setenv("STEG_LOG_CALLER", "true")

	opt := FromEnv()
	assert.Equal(t, "debug", opt.Level)
	assert.Equal(t, "json", opt.Format)
	assert.True(t, opt.WithCaller)
	assert.Equal(t, "steglab", opt.Service)
}

func TestRequestScopedLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "debug", Format: "json", Writer: &buf})

	ctx := WithRequest(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, ctx, WithRequest(ctx, ""))

	C(ctx).Info().Msg("hello")
	Named("engine").Info().Msg("named")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) < 2 {
		t.Skip("root logger was initialised elsewhere in this process")
	}

	var first, second map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-2], &first))
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &second))
	assert.Equal(t, "req-1", first["request_id"])
	assert.Equal(t, "engine", second["component"])
}
