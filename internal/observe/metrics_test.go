package observe

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
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

func TestRecordCommand(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCommand(ctx, "play", "ok")
	m.RecordCommand(ctx, "play", "ok")
	m.RecordCommand(ctx, "skip", "error")

	got := findMetric(collect(t, reader), "commands_total")
	if got == nil {
		t.Fatal("commands_total not found")
	}
	sum, ok := got.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("data type = %T, want Sum[int64]", got.Data)
	}

	want := map[string]int64{"play/ok": 2, "skip/error": 1}
	for _, dp := range sum.DataPoints {
		cmd, _ := dp.Attributes.Value(attribute.Key("command"))
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		key := cmd.AsString() + "/" + status.AsString()
		if dp.Value != want[key] {
			t.Errorf("%s = %d, want %d", key, dp.Value, want[key])
		}
		delete(want, key)
	}
	if len(want) != 0 {
		t.Errorf("missing data points: %v", want)
	}
}

func TestActiveQueues(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.QueueOpened(ctx)
	m.QueueOpened(ctx)
	m.QueueClosed(ctx)

	got := findMetric(collect(t, reader), "active_queues")
	if got == nil {
		t.Fatal("active_queues not found")
	}
	sum := got.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Errorf("active_queues = %+v, want 1", sum.DataPoints)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordCommand(ctx, "play", "ok")
	m.RecordPlayerEvent(ctx, "playSong")
	m.QueueOpened(ctx)
	m.QueueClosed(ctx)
	m.RecordCacheLookup(ctx, "frames", "hit")
}

func TestProviderHandler(t *testing.T) {
	p, err := InitProvider()
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	m, err := NewMetrics(p.MeterProvider)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordPlayerEvent(context.Background(), "playSong")

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "player_events_total") {
		t.Errorf("/metrics does not expose player_events_total:\n%s", body)
	}
}
