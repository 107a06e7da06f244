package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/courtregistry/taskdesk"
	"github.com/courtregistry/taskdesk/internal/registrytest"
)

type fakeSource struct {
	snapshot taskdesk.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() taskdesk.MetricsSnapshot { return f.snapshot }
func (f fakeSource) EventsDropped() uint64                     { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: taskdesk.MetricsSnapshot{
			Counters:   map[taskdesk.MetricID]uint64{},
			Histograms: map[taskdesk.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: taskdesk.MetricsSnapshot{
			Counters: map[taskdesk.MetricID]uint64{
				taskdesk.MetricReplay: 7,
			},
			Histograms: map[taskdesk.MetricID][]uint64{
				taskdesk.MetricRefreshLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"taskdesk_replay_total 7",
		"taskdesk_refresh_started_total 0",
		`taskdesk_refresh_latency_seconds_bucket{le="0.01"} 1`,
		`taskdesk_refresh_latency_seconds_bucket{le="+Inf"} 36`,
		"taskdesk_refresh_latency_seconds_count 36",
		"taskdesk_events_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderSkipsDisabledHistogram(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: taskdesk.MetricsSnapshot{
			Counters:   map[taskdesk.MetricID]uint64{taskdesk.MetricRequest: 1},
			Histograms: map[taskdesk.MetricID][]uint64{},
		},
	})

	if out := exp.Render(); strings.Contains(out, "latency") {
		t.Fatalf("expected no histogram without latency samples enabled, got:\n%s", out)
	}
}

func TestHandlerServesClientMetrics(t *testing.T) {
	srv := registrytest.New(t)
	client, err := taskdesk.New().WithBaseURL(srv.URL).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer client.Close()

	if _, err := client.RequestOTP(context.Background(), "PJ-1001"); err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	NewExporter(client).Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if !strings.Contains(rec.Body.String(), "taskdesk_request_total 1") {
		t.Fatalf("expected one request counted, got:\n%s", rec.Body.String())
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: taskdesk.MetricsSnapshot{
			Counters: map[taskdesk.MetricID]uint64{
				taskdesk.MetricRequest:        1000,
				taskdesk.MetricUnauthorized:   40,
				taskdesk.MetricReplay:         38,
				taskdesk.MetricRefreshStarted: 3,
				taskdesk.MetricRefreshSuccess: 3,
			},
			Histograms: map[taskdesk.MetricID][]uint64{
				taskdesk.MetricRefreshLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
