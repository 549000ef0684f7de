package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goBankID "github.com/MrEthical07/goBankID"
	"github.com/MrEthical07/goBankID/provider/simulator"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeSource struct {
	snapshot goBankID.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goBankID.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := New(fakeSource{
		snapshot: goBankID.MetricsSnapshot{
			Counters:   map[goBankID.MetricID]uint64{},
			Histograms: map[goBankID.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersAndHistogram(t *testing.T) {
	exp := New(fakeSource{
		snapshot: goBankID.MetricsSnapshot{
			Counters: map[goBankID.MetricID]uint64{
				goBankID.MetricBeginSuccess:  7,
				goBankID.MetricOrderComplete: 3,
			},
			Histograms: map[goBankID.MetricID][]uint64{
				goBankID.MetricCollectLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"gobankid_begin_success_total 7",
		"gobankid_order_complete_total 3",
		"gobankid_order_expired_total 0",
		`gobankid_collect_latency_seconds_bucket{le="0.01"} 1`,
		`gobankid_collect_latency_seconds_bucket{le="1"} 28`,
		`gobankid_collect_latency_seconds_bucket{le="+Inf"} 36`,
		"gobankid_collect_latency_seconds_count 36",
		"gobankid_audit_dropped_total 2",
		"# TYPE gobankid_collect_latency_seconds histogram",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderSkipsHistogramWhenNotRecorded(t *testing.T) {
	exp := New(fakeSource{
		snapshot: goBankID.MetricsSnapshot{
			Counters:   map[goBankID.MetricID]uint64{goBankID.MetricCollect: 1},
			Histograms: map[goBankID.MetricID][]uint64{},
		},
	})

	if out := exp.Render(); strings.Contains(out, "gobankid_collect_latency_seconds") {
		t.Fatalf("expected no histogram, got:\n%s", out)
	}
}

func TestHandlerServesEngineMetrics(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := goBankID.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Metrics.Enabled = true

	engine, err := goBankID.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithProvider(simulator.New()).
		WithUserDirectory(goBankID.NewMemoryStore()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := engine.BeginIdentification(goBankID.WithClientIP(context.Background(), "192.0.2.1"), goBankID.BeginRequest{}); err != nil {
		t.Fatalf("BeginIdentification failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	New(engine).Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if !strings.Contains(rec.Body.String(), "gobankid_begin_success_total 1") {
		t.Fatalf("expected begin counter, got:\n%s", rec.Body.String())
	}
}

func BenchmarkRender(b *testing.B) {
	exp := New(fakeSource{
		snapshot: goBankID.MetricsSnapshot{
			Counters: map[goBankID.MetricID]uint64{
				goBankID.MetricBeginSuccess:   1000,
				goBankID.MetricCollect:        30000,
				goBankID.MetricOrderComplete:  800,
				goBankID.MetricOrderExpired:   150,
				goBankID.MetricSessionCreated: 800,
			},
			Histograms: map[goBankID.MetricID][]uint64{
				goBankID.MetricCollectLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
