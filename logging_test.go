package athina

import (
	"bytes"
	"log"
	"log/slog"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaskAPIKey(t *testing.T) {
	tests := map[string]string{
		"":                      "",
		"abc":                   "****",
		"abcd":                  "****",
		"athina-1234567890abcd": "*****************abcd",
	}
	for in, want := range tests {
		if got := MaskAPIKey(in); got != want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWrapStdLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := WrapStdLogger(log.New(&buf, "", 0))

	logger.Warn("queue full", "path", PathTrace, "depth", 3)
	logger.Info("plain")
	logger.Error("odd", "dangling")

	want := "[WARN] queue full | path=/api/v1/trace/sdk depth=3\n[INFO] plain\n[ERROR] odd | dangling\n"
	if got := buf.String(); got != want {
		t.Errorf("output:\n%s\nwant:\n%s", got, want)
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger := NewSlogAdapter(base).With("component", "dispatcher")

	logger.Debug("delivered", "path", PathInference)
	out := buf.String()
	for _, part := range []string{"level=DEBUG", "msg=delivered", "component=dispatcher", "path=/api/v1/log/inference"} {
		if !strings.Contains(out, part) {
			t.Errorf("output %q missing %q", out, part)
		}
	}
}

func TestZapAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapAdapter(zap.New(core))

	logger.Error("delivery failed", "path", PathTrace, "attempts", 2)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.ErrorLevel || e.Message != "delivery failed" {
		t.Errorf("entry = %v %q", e.Level, e.Message)
	}
	fields := e.ContextMap()
	if fields["path"] != PathTrace || fields["attempts"] != int64(2) {
		t.Errorf("fields = %v", fields)
	}
}

func TestNopLogger(t *testing.T) {
	var l StructuredLogger = NopLogger{}
	l.Debug("x")
	l.Error("y", "k", "v")
}
