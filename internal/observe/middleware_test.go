package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// scrapeServer wires a mux shaped like the micengine scrape server behind
// Middleware, with metrics and spans captured in memory.
func scrapeServer(t *testing.T) (http.Handler, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()
	m, reader := newTestMetrics(t)

	tp, exp := newTestTracerProvider(t)
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	return Middleware(m)(mux), reader, exp
}

func hasAttr(set attribute.Set, key, value string) bool {
	v, ok := set.Value(attribute.Key(key))
	return ok && v.Emit() == value
}

func TestMiddleware_TraceHeaderMatchesSpan(t *testing.T) {
	h, _, exp := scrapeServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	want := spans[0].SpanContext.TraceID().String()
	if got := rec.Header().Get(TraceHeader); got != want {
		t.Errorf("%s = %q, want span trace ID %q", TraceHeader, got, want)
	}
	if spans[0].Name != "HTTP GET /healthz" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "HTTP GET /healthz")
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	h, _, _ := scrapeServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(TraceHeader); got != "0af7651916cd43dd8448eb211c80319c" {
		t.Errorf("%s = %q, want the incoming trace ID", TraceHeader, got)
	}
}

func TestMiddleware_RecordsRouteAndStatus(t *testing.T) {
	h, reader, exp := scrapeServer(t)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	met := findMetric(collect(t, reader), "micengine.http.request.duration")
	if met == nil {
		t.Fatal("duration histogram not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("duration is not a float64 histogram")
	}

	tests := []struct {
		route, status string
	}{
		{"GET /readyz", "503"},
		{"unmatched", "404"},
	}
	for _, tc := range tests {
		found := false
		for _, dp := range hist.DataPoints {
			if hasAttr(dp.Attributes, "route", tc.route) && hasAttr(dp.Attributes, "status", tc.status) {
				found = dp.Count == 1
			}
		}
		if !found {
			t.Errorf("no single data point for route=%q status=%s", tc.route, tc.status)
		}
	}

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(spans))
	}
	var status int64
	for _, a := range spans[0].Attributes {
		if a.Key == "http.response.status_code" {
			status = a.Value.AsInt64()
		}
	}
	if status != http.StatusServiceUnavailable {
		t.Errorf("span status code = %d, want 503", status)
	}
}

func TestMiddleware_NilMetrics(t *testing.T) {
	var called bool
	h := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))
	if !called {
		t.Error("handler not called")
	}
}
