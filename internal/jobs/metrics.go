package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	synced   *prometheus.CounterVec
	bumps    *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddSynced records how many work packages a sync job processed.
func (m *Metrics) AddSynced(job string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.synced.WithLabelValues(job).Add(float64(count))
}

// CacheBumped counts list cache invalidations triggered by jobs.
func (m *Metrics) CacheBumped(reason string) {
	if m == nil {
		return
	}
	m.bumps.WithLabelValues(reason).Inc()
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worksla_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worksla_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worksla_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	synced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worksla_jobs_synced_work_packages_total",
		Help: "Work packages processed by backend sync jobs.",
	}, []string{"job"})
	bumps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worksla_list_cache_bumps_total",
		Help: "Work package list cache invalidations, by reason.",
	}, []string{"reason"})
	registerer.MustRegister(runs, failures, duration, synced, bumps)
	return &Metrics{runs: runs, failures: failures, duration: duration, synced: synced, bumps: bumps}
}
