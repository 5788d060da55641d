package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to parse log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "search served", Field{Key: "count", Value: 3})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e["msg"] != "search served" {
		t.Errorf("msg = %v", e["msg"])
	}
	if e["level"] != "info" {
		t.Errorf("level = %v", e["level"])
	}
	if e["count"] != float64(3) {
		t.Errorf("count = %v", e["count"])
	}
	if _, ok := e["timestamp"].(string); !ok {
		t.Error("missing timestamp")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["level"] != "warn" || entries[1]["level"] != "error" {
		t.Errorf("unexpected levels: %v, %v", entries[0]["level"], entries[1]["level"])
	}
}

func TestLogger_WithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter("debug", &buf)
	scoped := base.With(Field{Key: "component", Value: "router"})
	nested := scoped.With(Field{Key: "filter", Value: "public"})

	nested.Info(context.Background(), "nested")
	base.Info(context.Background(), "base")

	entries := decodeLines(t, &buf)
	if entries[0]["component"] != "router" || entries[0]["filter"] != "public" {
		t.Errorf("nested entry missing scoped fields: %v", entries[0])
	}
	if _, ok := entries[1]["component"]; ok {
		t.Error("With must not modify the parent logger")
	}
}

func TestLogger_WithSiblingsDoNotShareFields(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithWriter("info", &buf).With(Field{Key: "a", Value: 1})
	left := parent.With(Field{Key: "b", Value: 2})
	right := parent.With(Field{Key: "c", Value: 3})

	left.Info(context.Background(), "left")

	entries := decodeLines(t, &buf)
	if _, ok := entries[0]["c"]; ok {
		t.Errorf("sibling field leaked: %v", entries[0])
	}
	_ = right
}

func TestLogger_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "auth",
		Field{Key: "token", Value: "eyJhbGciOi"},
		Field{Key: "authorization", Value: "Bearer abc"},
		Field{Key: "user_id", Value: "u1"},
	)

	out := buf.String()
	if strings.Contains(out, "eyJhbGciOi") || strings.Contains(out, "Bearer abc") {
		t.Errorf("sensitive value leaked: %s", out)
	}
	if !strings.Contains(out, `"user_id":"u1"`) {
		t.Errorf("non-sensitive field missing: %s", out)
	}
}

func TestLogger_IncludesTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	logger.Info(ctx, "traced")

	entries := decodeLines(t, &buf)
	if entries[0]["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("trace_id = %v", entries[0]["trace_id"])
	}
}

func TestLogger_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.With(Field{Key: "worker", Value: i}).Info(context.Background(), "tick")
		}(i)
	}
	wg.Wait()

	if got := len(decodeLines(t, &buf)); got != 20 {
		t.Errorf("expected 20 well-formed lines, got %d", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
		"loud":  LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	l.Info(context.Background(), "ignored", Err(nil))
	if l.With(Field{Key: "k", Value: "v"}) == nil {
		t.Fatal("With should return non-nil logger")
	}
}
