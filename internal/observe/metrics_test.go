package observe

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

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

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

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

func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.Emit() == value {
				return dp.Value
			}
		}
	}
	return 0
}

func TestDropHookCountsPerHop(t *testing.T) {
	m, reader := newTestMetrics(t)

	audio := m.DropHook("audio")
	audio()
	audio()
	m.RecordDrop("fragments")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "livecaption.relay.drops", "hop", "audio"); got != 2 {
		t.Errorf("audio drops = %d, want 2", got)
	}
	if got := sumFor(t, rm, "livecaption.relay.drops", "hop", "fragments"); got != 1 {
		t.Errorf("fragment drops = %d, want 1", got)
	}
}

func TestRecordReconnectAndFragment(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordReconnect(ctx, "deepgram", "transient")
	m.RecordFragment(ctx, "deepgram", true)
	m.RecordFragment(ctx, "deepgram", false)
	m.RecordFragment(ctx, "deepgram", false)

	rm := collect(t, reader)
	if got := sumFor(t, rm, "livecaption.recognition.reconnects", "reason", "transient"); got != 1 {
		t.Errorf("reconnects = %d, want 1", got)
	}
	if got := sumFor(t, rm, "livecaption.recognition.fragments", "final", "false"); got != 2 {
		t.Errorf("interim fragments = %d, want 2", got)
	}
}

func TestRecordTranslationStatus(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTranslation(ctx, "deepl", 120*time.Millisecond, nil)
	m.RecordTranslation(ctx, "deepl", 300*time.Millisecond, errors.New("boom"))

	rm := collect(t, reader)
	met := findMetric(rm, "livecaption.translation.duration")
	if met == nil {
		t.Fatal("histogram not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	if total != 2 {
		t.Errorf("sample count = %d, want 2", total)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	m.RecordDrop("audio")
	m.DropHook("audio")()
	m.RecordReconnect(ctx, "google", "transient")
	m.RecordFragment(ctx, "google", true)
	m.RecordTranslation(ctx, "openai", time.Second, nil)
	m.RecordCaption(ctx, true)
}

func TestProviderHandlerExportsMetrics(t *testing.T) {
	p, err := InitProvider("test")
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	p.Metrics.RecordCaption(context.Background(), true)

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "livecaption_captions") {
		t.Errorf("exported metrics missing livecaption_captions:\n%s", body)
	}
}
