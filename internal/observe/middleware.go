package observe

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceHeader carries the request's trace ID on every response.
const TraceHeader = "X-Trace-ID"

// statusWriter remembers the status code written by the wrapped handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware instruments the scrape server. Each request runs under a server
// span continued from an incoming W3C traceparent, gets its trace ID echoed
// in [TraceHeader], and is timed into [Metrics.HTTPRequestDuration].
//
// Routes are reported by their mux pattern (e.g. "GET /readyz") so unknown
// paths do not grow the attribute set. Successful requests log at Debug
// since Prometheus scrapes on a fixed interval; failures log at Warn.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "HTTP "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			id := SessionID(ctx)
			if id != "" {
				w.Header().Set(TraceHeader, id)
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			r = r.WithContext(ctx)
			next.ServeHTTP(sw, r)

			// The mux fills in the pattern while routing.
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			} else {
				span.SetName("HTTP " + route)
			}
			d := time.Since(start)
			m.RecordHTTPRequest(ctx, r.Method, route, sw.status, d)
			span.SetAttributes(semconv.HTTPResponseStatusCode(sw.status))

			level := slog.LevelDebug
			if sw.status >= http.StatusBadRequest {
				level = slog.LevelWarn
			}
			slog.LogAttrs(ctx, level, "http request",
				slog.String("trace_id", id),
				slog.String("route", route),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Duration("duration", d),
			)
		})
	}
}
