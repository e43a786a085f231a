// Package metrics exposes Prometheus collectors for the editor service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photo_frame",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "photo_frame",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photo_frame",
			Subsystem: "catalog",
			Name:      "uploads_total",
			Help:      "Total number of stored uploads.",
		},
		[]string{"kind"},
	)

	loads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photo_frame",
			Subsystem: "scene",
			Name:      "loads_total",
			Help:      "Frame and photo loads by outcome.",
		},
		[]string{"layer", "outcome"},
	)

	exports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photo_frame",
			Subsystem: "export",
			Name:      "exports_total",
			Help:      "Total number of exports.",
		},
		[]string{"format", "success"},
	)

	exportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "photo_frame",
			Subsystem: "export",
			Name:      "duration_seconds",
			Help:      "Duration of render and encode.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"format"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "photo_frame",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Current number of editing sessions.",
		},
	)

	expiredSessions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "photo_frame",
			Subsystem: "sessions",
			Name:      "expired_total",
			Help:      "Total number of sessions removed for inactivity.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		uploads,
		loads,
		exports,
		exportDuration,
		activeSessions,
		expiredSessions,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" || strings.HasPrefix(r.URL.Path, "/socket.io/") {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordUpload counts a stored upload of the given asset kind.
func RecordUpload(kind string) {
	uploads.WithLabelValues(kind).Inc()
}

// RecordLoad counts a frame or photo load. outcome is applied, superseded or
// failed.
func RecordLoad(layer, outcome string) {
	loads.WithLabelValues(layer, outcome).Inc()
}

// RecordExport records an export attempt.
func RecordExport(format string, duration time.Duration, success bool) {
	exports.WithLabelValues(format, strconv.FormatBool(success)).Inc()
	exportDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// SetActiveSessions reports the current session count.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// RecordExpiredSessions counts sessions removed by the idle sweeper.
func RecordExpiredSessions(n int) {
	expiredSessions.Add(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath collapses identifiers so label cardinality stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "frames", "uploads", "delete-frame":
		if len(parts) > 1 {
			return "/" + parts[0] + "/:name"
		}
	case "api":
		if len(parts) >= 3 && parts[1] == "sessions" {
			if len(parts) == 3 {
				return "/api/sessions/:id"
			}
			return "/api/sessions/:id/" + parts[3]
		}
	}
	return "/" + strings.Join(parts, "/")
}
