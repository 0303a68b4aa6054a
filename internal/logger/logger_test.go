package logger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestLogsToRotatingFileWithTraceIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	if err := InitWithConfig(LogConfig{Level: "INFO", Format: "json", File: path, MaxSizeMB: 1}); err != nil {
		t.Fatalf("InitWithConfig failed: %v", err)
	}

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "cycle")

	Info(ctx, "cycle started", "symbol", "EURUSD")
	ErrorWithErr(ctx, "cycle failed", errors.New("boom"), "symbol", "EURUSD")
	Debug(ctx, "hidden at info level")
	span.End()

	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(b)

	for _, want := range []string{"cycle started", "EURUSD", "trace_id", span.SpanContext().TraceID().String(), "boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hidden at info level") {
		t.Error("debug entry should be filtered at INFO level")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]string{
		"debug": "debug",
		"WARN":  "warn",
		"error": "error",
		"bogus": "info",
	}
	for in, want := range tests {
		if got := parseLogLevel(in).String(); got != want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
