package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newTestTracerProvider returns a TracerProvider with an in-memory exporter
// for inspecting recorded spans.
func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

// captureDefaultLogger swaps the default slog logger for one writing to a
// buffer and restores the original on cleanup.
func captureDefaultLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestSessionID_EmptyByDefault(t *testing.T) {
	if got := SessionID(context.Background()); got != "" {
		t.Errorf("SessionID(background) = %q, want empty", got)
	}
}

func TestSessionID_ReturnsTraceID(t *testing.T) {
	tp, _ := newTestTracerProvider(t)

	ctx, span := tp.Tracer("test").Start(context.Background(), "session")
	defer span.End()

	id := SessionID(ctx)
	if len(id) != 32 {
		t.Fatalf("session ID length = %d, want 32", len(id))
	}
	if id != span.SpanContext().TraceID().String() {
		t.Errorf("session ID = %q, want span trace ID", id)
	}
}

func TestStartSpan_UsesGlobalProvider(t *testing.T) {
	tp, exp := newTestTracerProvider(t)

	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })

	ctx, span := StartSpan(context.Background(), "session.start")
	if SessionID(ctx) == "" {
		t.Error("StartSpan did not create a span with a trace ID")
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "session.start" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "session.start")
	}
}

func TestLogger_IncludesSessionID(t *testing.T) {
	tp, _ := newTestTracerProvider(t)
	buf := captureDefaultLogger(t)

	ctx, span := tp.Tracer("test").Start(context.Background(), "log-test")
	defer span.End()

	Logger(ctx).Info("recording started")

	if !strings.Contains(buf.String(), "session_id="+SessionID(ctx)) {
		t.Errorf("log output missing session_id, got: %s", buf.String())
	}
}

func TestLogger_NoSpan(t *testing.T) {
	buf := captureDefaultLogger(t)

	Logger(context.Background()).Info("idle")

	if strings.Contains(buf.String(), "session_id") {
		t.Errorf("log output should not contain session_id, got: %s", buf.String())
	}
}
