package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the dashboard and its backend calls.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	upstreamTotal    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	refreshTotal     *prometheus.CounterVec
	authExpired      prometheus.Counter
	aggregations     *prometheus.CounterVec
	aggregationPages prometheus.Histogram
	cacheLookups     *prometheus.CounterVec
}

// NewMetrics initialises the registry and collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worksla_http_requests_total",
		Help: "HTTP requests served, by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worksla_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	upstream := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worksla_upstream_requests_total",
		Help: "Backend API calls, by endpoint group and outcome.",
	}, []string{"endpoint", "outcome"})
	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worksla_upstream_request_duration_seconds",
		Help:    "Backend API call latency per endpoint group.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	refresh := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worksla_credential_refresh_total",
		Help: "Credential refresh attempts after a 401, by result.",
	}, []string{"result"})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worksla_auth_expired_total",
		Help: "Requests that ended in a forced sign-in.",
	})
	aggregations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worksla_history_aggregations_total",
		Help: "Activity history aggregations, by final status.",
	}, []string{"status"})
	pages := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "worksla_history_aggregation_pages",
		Help:    "Pages requested per activity history aggregation.",
		Buckets: []float64{1, 2, 3, 5, 10, 15, 20},
	})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worksla_list_cache_lookups_total",
		Help: "Work package list cache lookups, by result.",
	}, []string{"result"})
	registry.MustRegister(requests, duration, upstream, upstreamDuration, refresh, expired, aggregations, pages, cache)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		upstreamTotal:    upstream,
		upstreamDuration: upstreamDuration,
		refreshTotal:     refresh,
		authExpired:      expired,
		aggregations:     aggregations,
		aggregationPages: pages,
		cacheLookups:     cache,
	}
}

// Handler returns the http.Handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ObserveUpstream records one backend call.
func (m *Metrics) ObserveUpstream(endpoint string, status int, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamTotal.WithLabelValues(endpoint, upstreamOutcome(status, err)).Inc()
	m.upstreamDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveRefresh counts a credential refresh by result.
func (m *Metrics) ObserveRefresh(result string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(result).Inc()
}

// ObserveAuthExpired counts a terminal authentication failure.
func (m *Metrics) ObserveAuthExpired() {
	if m == nil {
		return
	}
	m.authExpired.Inc()
}

// ObserveAggregation records how an activity history aggregation ended.
func (m *Metrics) ObserveAggregation(status string, pages int) {
	if m == nil {
		return
	}
	m.aggregations.WithLabelValues(status).Inc()
	m.aggregationPages.Observe(float64(pages))
}

// ObserveCache records a list cache hit or miss.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func upstreamOutcome(status int, err error) string {
	switch {
	case err != nil || status == 0:
		return "network_error"
	case status == http.StatusUnauthorized:
		return "unauthorized"
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "ok"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
