// Package metrics provides Prometheus metrics for the folderview core.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Thumbnail cache metrics
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folderview_thumbcache_lookups_total",
			Help: "Thumbnail cache lookups by result",
		},
		[]string{"result"}, // hit, miss, stale
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folderview_thumbcache_entries",
			Help: "Number of bitmaps held by the thumbnail cache",
		},
	)

	cacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "folderview_thumbcache_evictions_total",
			Help: "Bitmaps evicted from the thumbnail cache",
		},
	)

	cacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folderview_thumbcache_requests_total",
			Help: "Production requests by outcome",
		},
		[]string{"outcome"}, // scheduled, coalesced, negative, cached, dropped
	)

	productionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folderview_thumbnail_production_duration_seconds",
			Help:    "Time spent producing icons and thumbnails",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode", "status"},
	)

	staleResultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "folderview_thumbnail_stale_results_total",
			Help: "Produced bitmaps dropped because their generation was superseded",
		},
	)

	// Virtual list bridge metrics
	bridgeNotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folderview_bridge_notifications_total",
			Help: "Index-space notifications issued to the list control",
		},
		[]string{"kind"}, // count, insert, delete, update, redraw, state
	)

	bridgeStaleQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folderview_bridge_stale_queries_total",
			Help: "Control callbacks answered as unavailable",
		},
		[]string{"query"},
	)

	bridgeProtocolViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folderview_bridge_protocol_violations_total",
			Help: "Control callbacks received out of the documented sequence",
		},
		[]string{"query"},
	)

	bridgeItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folderview_bridge_items",
			Help: "Row count last reported to the list control",
		},
	)

	// Enumeration metrics
	enumerationEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folderview_enumeration_events_total",
			Help: "Folder enumeration events by kind",
		},
		[]string{"kind"},
	)

	watchEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folderview_watch_events_total",
			Help: "Folder change notifications by kind",
		},
		[]string{"kind"},
	)

	feedSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folderview_feed_subscribers",
			Help: "Number of active enumeration feed subscribers",
		},
	)

	// Storage metrics
	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folderview_storage_operation_duration_seconds",
			Help:    "Object storage operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folderview_storage_operations_total",
			Help: "Object storage operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// Search index metrics
	indexQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folderview_index_query_duration_seconds",
			Help:    "Search index query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	// HTTP metrics for the diagnostics listener
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folderview_http_requests_total",
			Help: "Total number of diagnostics HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCacheLookup records a cache Get by result ("hit", "miss", "stale").
func RecordCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// SetCacheEntries sets the number of cached bitmaps.
func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

// RecordEviction records one evicted bitmap.
func RecordEviction() {
	cacheEvictionsTotal.Inc()
}

// RecordRequest records the outcome of a production request.
func RecordRequest(outcome string) {
	cacheRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordProduction records a producer run.
func RecordProduction(mode string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	productionDuration.WithLabelValues(mode, status).Observe(duration.Seconds())
}

// RecordStaleResult records a produced bitmap dropped for a superseded generation.
func RecordStaleResult() {
	staleResultsTotal.Inc()
}

// RecordNotification records a notification sent to the list control.
func RecordNotification(kind string) {
	bridgeNotificationsTotal.WithLabelValues(kind).Inc()
}

// RecordStaleQuery records a benign stale-index callback.
func RecordStaleQuery(query string) {
	bridgeStaleQueriesTotal.WithLabelValues(query).Inc()
}

// RecordProtocolViolation records an out-of-sequence control callback.
func RecordProtocolViolation(query string) {
	bridgeProtocolViolationsTotal.WithLabelValues(query).Inc()
}

// SetBridgeItems sets the row count known to the control.
func SetBridgeItems(n int) {
	bridgeItems.Set(float64(n))
}

// RecordEnumerationEvent records an enumeration event by kind.
func RecordEnumerationEvent(kind string) {
	enumerationEventsTotal.WithLabelValues(kind).Inc()
}

// RecordWatchEvent records a change notification from a folder watcher or poller.
func RecordWatchEvent(kind string) {
	watchEventsTotal.WithLabelValues(kind).Inc()
}

// SetFeedSubscribers sets the number of feed subscribers.
func SetFeedSubscribers(n int) {
	feedSubscribers.Set(float64(n))
}

// RecordStorageOperation records an object storage operation.
func RecordStorageOperation(backend, operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	storageOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}

// RecordIndexQuery records a search index query duration.
func RecordIndexQuery(query string, duration time.Duration) {
	indexQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.statusCode)).Inc()
	})
}
