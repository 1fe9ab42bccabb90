package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumValue returns the total of all data points of an int64 sum metric.
func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordCaptureBlock(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCaptureBlock(ctx, 0.25)
	m.RecordCaptureBlock(ctx, 0.75)

	rm := collect(t, reader)
	if got := sumValue(t, rm, "micengine.capture.blocks"); got != 2 {
		t.Errorf("capture blocks = %d, want 2", got)
	}

	met := findMetric(rm, "micengine.input.level")
	if met == nil {
		t.Fatal("input level histogram not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("input level is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
	if got := hist.DataPoints[0].Sum; got != 1.0 {
		t.Errorf("sample sum = %v, want 1.0", got)
	}
}

func TestRecordCaptureError_ByKind(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCaptureError(ctx, "io")
	m.RecordCaptureError(ctx, "io")
	m.RecordCaptureError(ctx, "breaker_open")

	rm := collect(t, reader)
	met := findMetric(rm, "micengine.capture.errors")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}

	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "kind" && kv.Value.AsString() == "io" {
				if dp.Value != 2 {
					t.Errorf("io errors = %d, want 2", dp.Value)
				}
				return
			}
		}
	}
	t.Error("data point with kind=io not found")
}

func TestRenderAndPlaybackCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	for range 3 {
		m.RecordRenderTick(ctx)
	}
	m.RecordPlaybackStart(ctx)
	m.RecordPlaybackFault(ctx)
	m.RecordPlaybackStart(ctx)

	rm := collect(t, reader)

	tests := []struct {
		name string
		want int64
	}{
		{"micengine.render.ticks", 3},
		{"micengine.playback.starts", 2},
		{"micengine.playback.faults", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := sumValue(t, rm, tc.name); got != tc.want {
				t.Errorf("%s = %d, want %d", tc.name, got, tc.want)
			}
		})
	}
}

func TestActiveSessionsGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SessionStarted(ctx)
	m.SessionStopped(ctx)
	m.SessionStarted(ctx)

	rm := collect(t, reader)
	if got := sumValue(t, rm, "micengine.active_sessions"); got != 1 {
		t.Errorf("active sessions = %d, want 1", got)
	}
}

func TestNilMetrics_IsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	// None of these may panic.
	m.RecordCaptureBlock(ctx, 0.5)
	m.RecordCaptureError(ctx, "io")
	m.RecordRenderTick(ctx)
	m.RecordPlaybackStart(ctx)
	m.RecordPlaybackFault(ctx)
	m.SessionStarted(ctx)
	m.SessionStopped(ctx)
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}

func TestRecordBreakerTransition(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordBreakerTransition(ctx, "open")
	m.RecordBreakerTransition(ctx, "half-open")
	m.RecordBreakerTransition(ctx, "open")

	rm := collect(t, reader)
	if got := sumValue(t, rm, "micengine.capture.breaker.transitions"); got != 3 {
		t.Errorf("transitions = %d, want 3", got)
	}
}
