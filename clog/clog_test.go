package clog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func newBufferLogger(t *testing.T, level string, opts ...Option) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	opts = append(opts, WithWriter(buf))
	logger, err := New(&Config{Level: level, Format: "json", Output: "stdout"}, opts...)
	require.NoError(t, err)
	return logger, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "日志行不是合法 JSON: %s", line)
		entries = append(entries, entry)
	}
	return entries
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "valid config", config: &Config{Level: "info", Format: "console", Output: "stdout"}},
		{name: "nil config", config: nil},
		{name: "empty config uses defaults", config: &Config{}},
		{name: "invalid level", config: &Config{Level: "invalid"}, wantErr: true},
		{name: "invalid format", config: &Config{Level: "info", Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, "warn")

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "ERROR", entries[1]["level"])
}

func TestSetLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")

	logger.Debug("hidden")
	require.NoError(t, logger.SetLevel(DebugLevel))
	logger.Debug("visible")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "visible", entries[0]["msg"])
	assert.Equal(t, "DEBUG", entries[0]["level"])
}

func TestFields(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")

	logger.Info("allocated",
		String("method", "redis"),
		Int64("worker_id", 7),
		Bool("fenced", false),
		Error(errors.New("clock moved backwards")),
		Error(nil),
	)

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "redis", e["method"])
	assert.EqualValues(t, 7, e["worker_id"])
	assert.Equal(t, false, e["fenced"])
	assert.Equal(t, "clock moved backwards", e["err_msg"])
	_, hasEmpty := e[""]
	assert.False(t, hasEmpty, "nil error 不应输出字段")
}

func TestErrorWithCode(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")
	logger.Error("failed", ErrorWithCode(errors.New("boom"), "E001"))

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	group, ok := entries[0]["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "boom", group["msg"])
	assert.Equal(t, "E001", group["code"])
}

func TestWithAndNamespace(t *testing.T) {
	logger, buf := newBufferLogger(t, "info", WithNamespace("idforge"))

	child := logger.With(String("component", "idgen")).WithNamespace("allocator", "redis")
	sibling := logger.With(String("component", "server"))

	child.Info("child")
	sibling.Info("sibling")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "idgen", entries[0]["component"])
	assert.Equal(t, "idforge.allocator.redis", entries[0][NamespaceKey])
	assert.Equal(t, "server", entries[1]["component"])
	assert.Equal(t, "idforge", entries[1][NamespaceKey])
}

func TestContextExtraction(t *testing.T) {
	logger, buf := newBufferLogger(t, "info", WithStandardContext(), WithTraceContext())

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithRequestID(ctx, "req-1")

	logger.InfoContext(ctx, "with context")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0]["request_id"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entries[0]["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entries[0]["span_id"])
	assert.Equal(t, "req-1", RequestIDFrom(ctx))
}

func TestCustomContextField(t *testing.T) {
	type tenantKey struct{}
	logger, buf := newBufferLogger(t, "info", WithContextField(tenantKey{}, "tenant"))

	logger.InfoContext(context.WithValue(context.Background(), tenantKey{}, "acme"), "tenant")
	logger.InfoContext(context.Background(), "no tenant")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "acme", entries[0]["tenant"])
	_, ok := entries[1]["tenant"]
	assert.False(t, ok)
}

func TestParseLevel(t *testing.T) {
	for input, want := range map[string]Level{
		"debug": DebugLevel,
		"INFO":  InfoLevel,
		"Warn":  WarnLevel,
		"error": ErrorLevel,
		"fatal": FatalLevel,
	} {
		got, err := ParseLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestTrimSourcePath(t *testing.T) {
	assert.Equal(t, "idgen/node.go", trimSourcePath("/src/idforge/idgen/node.go", "/src/idforge"))
	assert.Equal(t, "idforge/idgen/node.go", trimSourcePath("/go/pkg/idforge/idgen/node.go", "idforge"))
	assert.Equal(t, "/a/b.go", trimSourcePath("/a/b.go", ""))
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.NotPanics(t, func() {
		logger.Info("ignored", String("k", "v"))
		logger.With(Int("n", 1)).WithNamespace("x").Error("ignored")
		_ = logger.SetLevel(DebugLevel)
		logger.Flush()
	})
}
