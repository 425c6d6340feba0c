package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	grantcore "github.com/railstack/grantcore"
)

type fakeSource struct {
	snapshot grantcore.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() grantcore.MetricsSnapshot { return f.snapshot }
func (f fakeSource) NotifyDropped() uint64                      { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: grantcore.MetricsSnapshot{
			Counters:   map[grantcore.MetricID]uint64{},
			Histograms: map[grantcore.MetricID][]uint64{},
		},
		dropped: 0,
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: grantcore.MetricsSnapshot{
			Counters: map[grantcore.MetricID]uint64{
				grantcore.MetricOfferAccepted: 7,
			},
			Histograms: map[grantcore.MetricID][]uint64{
				grantcore.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "grantcore_offer_accepted_total 7") {
		t.Fatalf("expected offer_accepted counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "grantcore_validate_latency_seconds_bucket{le=\"0.005\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "grantcore_validate_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "grantcore_notify_dropped_total 2") {
		t.Fatalf("expected notify dropped counter in output, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: grantcore.MetricsSnapshot{
			Counters:   map[grantcore.MetricID]uint64{grantcore.MetricSessionIssued: 1},
			Histograms: map[grantcore.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: grantcore.MetricsSnapshot{
			Counters: map[grantcore.MetricID]uint64{
				grantcore.MetricSessionIssued:  1000,
				grantcore.MetricRotateSuccess:  800,
				grantcore.MetricRotateFailure:  10,
				grantcore.MetricOfferCreated:   400,
				grantcore.MetricOfferAccepted:  120,
				grantcore.MetricOfferDenied:    60,
				grantcore.MetricSessionRevoked: 20,
			},
			Histograms: map[grantcore.MetricID][]uint64{
				grantcore.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
		dropped: 0,
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
