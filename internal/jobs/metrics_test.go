package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatherValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue metrics
				}
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
		}
	}
	return 0
}

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if err := metrics.Track("workpackages_sync").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	boom := errors.New("boom")
	if err := metrics.Track("workpackages_sync").End(boom); !errors.Is(err, boom) {
		t.Fatalf("expected error to be returned untouched, got %v", err)
	}
	metrics.AddSynced("workpackages_sync", 12)
	metrics.CacheBumped("sync")

	if got := gatherValue(t, registry, "worksla_jobs_total", map[string]string{"job": "workpackages_sync", "status": "success"}); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := gatherValue(t, registry, "worksla_jobs_failures_total", map[string]string{"job": "workpackages_sync"}); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := gatherValue(t, registry, "worksla_jobs_synced_work_packages_total", map[string]string{"job": "workpackages_sync"}); got != 12 {
		t.Fatalf("expected 12 synced, got %v", got)
	}
	if got := gatherValue(t, registry, "worksla_list_cache_bumps_total", map[string]string{"reason": "sync"}); got != 1 {
		t.Fatalf("expected 1 bump, got %v", got)
	}
}

func TestNilMetricsTracker(t *testing.T) {
	var metrics *Metrics
	tracker := metrics.Track("noop")
	if err := tracker.End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	metrics.AddSynced("noop", 3)
	metrics.CacheBumped("noop")
}
