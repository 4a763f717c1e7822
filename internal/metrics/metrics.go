// Package metrics provides Prometheus metrics for the floatdrop daemon and
// relay server.
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
	// HTTP request metrics (relay)
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floatdrop_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "floatdrop_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Transfer metrics (client and relay)
	bytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floatdrop_bytes_uploaded_total",
			Help: "Total bytes uploaded",
		},
	)

	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floatdrop_bytes_downloaded_total",
			Help: "Total bytes downloaded",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floatdrop_uploads_total",
			Help: "Total number of uploads",
		},
		[]string{"status"},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floatdrop_downloads_total",
			Help: "Total number of downloads",
		},
		[]string{"status"},
	)

	storedBlobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "floatdrop_relay_blobs",
			Help: "Number of blobs held by the relay",
		},
	)

	// Blob backend metrics
	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "floatdrop_storage_operation_duration_seconds",
			Help:    "Blob storage operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floatdrop_storage_operations_total",
			Help: "Total blob storage operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// Scratch sweeper metrics
	sweptFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floatdrop_swept_files_total",
			Help: "Total scratch files removed by age",
		},
		[]string{"dir"},
	)

	// Event surface metrics
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floatdrop_events_total",
			Help: "Total events published",
		},
		[]string{"type"},
	)

	subscribersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "floatdrop_event_subscribers_active",
			Help: "Number of active event subscribers",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUpload records an upload attempt.
func RecordUpload(bytes int64, success bool) {
	if success {
		bytesUploaded.Add(float64(bytes))
	}
	uploadsTotal.WithLabelValues(status(success)).Inc()
}

// RecordDownload records a download attempt.
func RecordDownload(bytes int64, success bool) {
	if success {
		bytesDownloaded.Add(float64(bytes))
	}
	downloadsTotal.WithLabelValues(status(success)).Inc()
}

// SetStoredBlobs sets the number of blobs held by the relay.
func SetStoredBlobs(count int) {
	storedBlobs.Set(float64(count))
}

// RecordStorageOperation records a blob backend operation.
func RecordStorageOperation(backend, operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	storageOperationsTotal.WithLabelValues(backend, operation, status(success)).Inc()
}

// RecordSwept records files removed from a scratch directory.
func RecordSwept(dir string, count int) {
	if count > 0 {
		sweptFilesTotal.WithLabelValues(dir).Add(float64(count))
	}
}

// RecordEvent records an event publication.
func RecordEvent(eventType string) {
	eventsTotal.WithLabelValues(eventType).Inc()
}

// SetSubscribersActive sets the number of active event subscribers.
func SetSubscribersActive(count int) {
	subscribersActive.Set(float64(count))
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

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics. The
// route pattern is used as the path label so ids do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		RecordHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
	})
}
