// Package observe provides application-wide observability primitives for
// micengine: OpenTelemetry metrics, tracing helpers, and the Prometheus
// exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
//
// Every Record* method is safe to call on a nil *Metrics, which makes
// metrics optional for callers that are constructed without them.
package observe

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all micengine metrics.
const meterName = "github.com/MrWong99/micengine"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Capture side ---

	// InputLevel records the smoothed microphone level in [0,1] per block.
	InputLevel metric.Float64Histogram

	// CaptureBlocks counts sample blocks processed by the capture loop.
	CaptureBlocks metric.Int64Counter

	// CaptureErrors counts failed capture reads. Use with attribute:
	//   attribute.String("kind", ...): "io" or "breaker_open"
	CaptureErrors metric.Int64Counter

	// --- Render side ---

	// RenderTicks counts render-loop ticks that drove the ramp controller.
	RenderTicks metric.Int64Counter

	// PlaybackStarts counts successful stream starts (including restarts).
	PlaybackStarts metric.Int64Counter

	// PlaybackFaults counts start or update failures on the sound collaborator.
	PlaybackFaults metric.Int64Counter

	// CaptureBreakerTransitions counts microphone circuit breaker state
	// changes. Use with attribute:
	//   attribute.String("to", ...): "closed", "open" or "half-open"
	CaptureBreakerTransitions metric.Int64Counter

	// --- Scrape server ---

	// HTTPRequestDuration records handling time of the metrics and health
	// endpoints, by method, route and status.
	HTTPRequestDuration metric.Float64Histogram

	// --- Gauges ---

	// ActiveSessions tracks whether a recording session is running (0 or 1).
	ActiveSessions metric.Int64UpDownCounter
}

// levelBuckets defines histogram bucket boundaries for normalised levels.
var levelBuckets = []float64{
	0, 0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.InputLevel, err = m.Float64Histogram("micengine.input.level",
		metric.WithDescription("Smoothed, gated microphone level per captured block."),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(levelBuckets...),
	); err != nil {
		return nil, err
	}

	if met.CaptureBlocks, err = m.Int64Counter("micengine.capture.blocks",
		metric.WithDescription("Total sample blocks processed by the capture loop."),
	); err != nil {
		return nil, err
	}
	if met.CaptureErrors, err = m.Int64Counter("micengine.capture.errors",
		metric.WithDescription("Total failed capture reads by kind."),
	); err != nil {
		return nil, err
	}
	if met.RenderTicks, err = m.Int64Counter("micengine.render.ticks",
		metric.WithDescription("Total render ticks that drove the ramp controller."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackStarts, err = m.Int64Counter("micengine.playback.starts",
		metric.WithDescription("Total engine-sound stream starts, including restarts after faults."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackFaults, err = m.Int64Counter("micengine.playback.faults",
		metric.WithDescription("Total playback start or update failures."),
	); err != nil {
		return nil, err
	}

	if met.CaptureBreakerTransitions, err = m.Int64Counter("micengine.capture.breaker.transitions",
		metric.WithDescription("Microphone circuit breaker state changes by target state."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("micengine.http.request.duration",
		metric.WithDescription("Scrape and health endpoint latency."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("micengine.active_sessions",
		metric.WithDescription("Number of running recording sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCaptureBlock records one processed block and its smoothed level.
func (m *Metrics) RecordCaptureBlock(ctx context.Context, level float64) {
	if m == nil {
		return
	}
	m.CaptureBlocks.Add(ctx, 1)
	m.InputLevel.Record(ctx, level)
}

// RecordCaptureError records a failed capture read of the given kind.
func (m *Metrics) RecordCaptureError(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.CaptureErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordRenderTick records one render tick.
func (m *Metrics) RecordRenderTick(ctx context.Context) {
	if m == nil {
		return
	}
	m.RenderTicks.Add(ctx, 1)
}

// RecordPlaybackStart records a successful stream start.
func (m *Metrics) RecordPlaybackStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.PlaybackStarts.Add(ctx, 1)
}

// RecordPlaybackFault records a playback failure.
func (m *Metrics) RecordPlaybackFault(ctx context.Context) {
	if m == nil {
		return
	}
	m.PlaybackFaults.Add(ctx, 1)
}

// SessionStarted increments the active session gauge.
func (m *Metrics) SessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, 1)
}

// SessionStopped decrements the active session gauge.
func (m *Metrics) SessionStopped(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, -1)
}

// RecordBreakerTransition records a capture circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, to string) {
	if m == nil {
		return
	}
	m.CaptureBreakerTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("to", to)))
}

// RecordHTTPRequest records one handled request on the scrape server.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	))
}
