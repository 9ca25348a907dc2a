// Package metrics exposes Prometheus collectors for the newsroom edge service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup results.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheShared = "shared"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	prefetchRequestsTotal      *prometheus.CounterVec
	prefetchWarmTotal          *prometheus.CounterVec
	cacheLookupsTotal          *prometheus.CounterVec
	viewIncrementsTotal        *prometheus.CounterVec
	geocodeUpstreamTotal       *prometheus.CounterVec
	geocodeRateLimitSeconds    prometheus.Histogram
	activeWorkers              prometheus.Gauge
	activityDroppedTotal       prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsroom_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newsroom_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"method", "route"},
		)

		prefetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsroom_prefetch_requests_total",
				Help: "Prefetch intents received, labeled by signal and outcome (queued, dropped).",
			},
			[]string{"signal", "outcome"},
		)

		prefetchWarmTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsroom_prefetch_warm_total",
				Help: "Background cache warm attempts, labeled by status.",
			},
			[]string{"status"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsroom_cache_lookups_total",
				Help: "Keyed cache lookups, labeled by cache name and result.",
			},
			[]string{"cache", "result"},
		)

		viewIncrementsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsroom_video_view_increments_total",
				Help: "Video view increment attempts, labeled by status.",
			},
			[]string{"status"},
		)

		geocodeUpstreamTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsroom_geocode_upstream_total",
				Help: "Reverse geocoding upstream calls, labeled by status.",
			},
			[]string{"status"},
		)

		geocodeRateLimitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "newsroom_geocode_rate_limit_delay_seconds",
				Help:    "Time spent waiting on the geocoding upstream rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "newsroom_prefetch_active_workers",
				Help: "Number of prefetch workers currently warming an entry.",
			},
		)

		activityDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "newsroom_activity_events_dropped_total",
				Help: "Activity events dropped because the hub buffer was full.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObservePrefetchRequest counts a prefetch intent and whether it was queued.
func ObservePrefetchRequest(signal string, queued bool) {
	Init()
	outcome := "queued"
	if !queued {
		outcome = "dropped"
	}
	prefetchRequestsTotal.WithLabelValues(signal, outcome).Inc()
}

// ObservePrefetchWarm counts a background warm attempt.
func ObservePrefetchWarm(err error) {
	Init()
	prefetchWarmTotal.WithLabelValues(status(err)).Inc()
}

// ObserveCacheLookup counts a keyed cache lookup.
func ObserveCacheLookup(cache, result string) {
	Init()
	cacheLookupsTotal.WithLabelValues(cache, result).Inc()
}

// ObserveViewIncrement counts a view increment attempt. Not-found outcomes
// are reported as "not_found" by the caller.
func ObserveViewIncrement(status string) {
	Init()
	viewIncrementsTotal.WithLabelValues(status).Inc()
}

// ObserveGeocodeUpstream counts a geocoding upstream call.
func ObserveGeocodeUpstream(err error) {
	Init()
	geocodeUpstreamTotal.WithLabelValues(status(err)).Inc()
}

// ObserveGeocodeRateLimitDelay records the duration of a rate limit wait.
func ObserveGeocodeRateLimitDelay(duration time.Duration) {
	Init()
	geocodeRateLimitSeconds.Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveActivityDropped adds n dropped activity events.
func ObserveActivityDropped(n int64) {
	Init()
	activityDroppedTotal.Add(float64(n))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
