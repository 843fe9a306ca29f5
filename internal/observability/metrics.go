package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases, SLO breaches.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Weather provider call rate by outcome. Watch for: error vs success ratio.
	ProviderCallsTotal *prometheus.CounterVec

	// Provider call latency. Watch for: p95 > 2s (upstream degradation), p99 near the 10s timeout.
	ProviderCallDuration *prometheus.HistogramVec

	// Per-city fetch outcomes labeled with the error taxonomy (timeout, not_found, auth,
	// rate_limited, http_error, malformed_response, unexpected) or "success".
	CityFetchesTotal *prometheus.CounterVec

	// Batches processed, labeled success (>=1 city succeeded) or failure.
	BatchesTotal *prometheus.CounterVec

	// Cities submitted per batch. Watch for: typical batch width vs pool width.
	CitiesPerBatch prometheus.Histogram

	// Storage failures swallowed after a successful fetch. Any non-zero rate is
	// silent data loss; alert on it. The fetch path logs and continues.
	StorageFailuresSwallowedTotal prometheus.Counter

	// Time spent waiting on the outbound pacer per provider call.
	PacerWaitSeconds prometheus.Histogram

	// Inbound rate limit denials (429). Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Cache hits on the merged-view read cache.
	CacheHitsTotal *prometheus.CounterVec

	// Cache backend errors by operation.
	CacheErrorsTotal *prometheus.CounterVec

	// Per-city query count (allow-list; others go to "other"). Watch for: top cities, traffic distribution.
	CityQueriesTotal *prometheus.CounterVec

	// Cache warming runs and failures at startup.
	CacheWarmingTotal       prometheus.Counter
	CacheWarmingErrorsTotal prometheus.Counter

	// trackedCities is built from config; used to resolve the city label.
	trackedCitiesMu sync.RWMutex
	trackedCities   map[string]struct{}
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	ProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerCallsTotal",
			Help: "Total number of weather provider API calls",
		},
		[]string{"status"},
	)
	ProviderCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "providerCallDurationSeconds",
			Help:    "Weather provider API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	CityFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityFetchesTotal",
			Help: "Per-city fetch outcomes by error category (or success)",
		},
		[]string{"result"},
	)
	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batchesTotal",
			Help: "Batches processed, by outcome",
		},
		[]string{"outcome"},
	)
	CitiesPerBatch = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "citiesPerBatch",
			Help:    "Number of cities submitted per batch",
			Buckets: []float64{1, 2, 3, 5, 10, 15, 20},
		},
	)
	StorageFailuresSwallowedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storageFailuresSwallowedTotal",
			Help: "Persistence failures after a successful fetch; the fetch still counts as success",
		},
	)
	PacerWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pacerWaitSeconds",
			Help:    "Time spent waiting on the outbound call pacer",
			Buckets: []float64{0, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of merged-view cache hits",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend errors by operation",
		},
		[]string{"operation"},
	)
	CityQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityQueriesTotal",
			Help: "Weather queries by city (allow-list; others use city=other)",
		},
		[]string{"city"},
	)

	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Merged-view cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Merged-view cache warming runs that failed",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ProviderCallsTotal, ProviderCallDuration,
		CityFetchesTotal, BatchesTotal, CitiesPerBatch,
		StorageFailuresSwallowedTotal, PacerWaitSeconds,
		RateLimitDeniedTotal,
		CacheHitsTotal, CacheErrorsTotal,
		CityQueriesTotal,
		CacheWarmingTotal, CacheWarmingErrorsTotal,
	)
}

// SetTrackedCities sets the allow-list for city metrics. Non-tracked cities increment "other".
func SetTrackedCities(cities []string) {
	trackedCitiesMu.Lock()
	defer trackedCitiesMu.Unlock()
	trackedCities = make(map[string]struct{}, len(cities))
	for _, c := range cities {
		trackedCities[normalizeCityForMetrics(c)] = struct{}{}
	}
}

// RecordCityQuery records a weather query for the given city.
func RecordCityQuery(city string) {
	c := normalizeCityForMetrics(city)
	trackedCitiesMu.RLock()
	_, ok := trackedCities[c]
	trackedCitiesMu.RUnlock()
	if ok {
		CityQueriesTotal.WithLabelValues(c).Inc()
	} else {
		CityQueriesTotal.WithLabelValues("other").Inc()
	}
}

func normalizeCityForMetrics(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return s
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
