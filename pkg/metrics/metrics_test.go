package metrics_test

import (
	"testing"

	"github.com/goliatone/go-starmap/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCountsCacheResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheus(reg)
	if err != nil {
		t.Fatalf("new prometheus: %v", err)
	}

	rec.CacheHit()
	rec.CacheHit()
	rec.CacheMiss()
	rec.CacheSkip()

	if got := testutil.ToFloat64(rec.CacheCounter("hit")); got != 2 {
		t.Fatalf("expected 2 hits, got %v", got)
	}
	if got := testutil.ToFloat64(rec.CacheCounter("miss")); got != 1 {
		t.Fatalf("expected 1 miss, got %v", got)
	}
	if got := testutil.ToFloat64(rec.CacheCounter("skip")); got != 1 {
		t.Fatalf("expected 1 skip, got %v", got)
	}
}

func TestPrometheusCountsWorkerEvents(t *testing.T) {
	rec, err := metrics.NewPrometheus(nil)
	if err != nil {
		t.Fatalf("new prometheus: %v", err)
	}
	rec.WorkerDispatched()
	rec.WorkerFallback(metrics.ReasonTimeout)
	rec.WorkerFallback(metrics.ReasonTimeout)
	rec.WorkerFault()

	if got := testutil.ToFloat64(rec.WorkerCounter("fallback", metrics.ReasonTimeout)); got != 2 {
		t.Fatalf("expected 2 timeout fallbacks, got %v", got)
	}
	if got := testutil.ToFloat64(rec.WorkerCounter("fault", "")); got != 1 {
		t.Fatalf("expected 1 fault, got %v", got)
	}
}

func TestNewPrometheusToleratesDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := metrics.NewPrometheus(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := metrics.NewPrometheus(reg); err != nil {
		t.Fatalf("second registration should be tolerated, got %v", err)
	}
}
