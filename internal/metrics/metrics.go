// Package metrics holds the Prometheus collectors for the backend API and the
// client sync engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Load sources.
const (
	SourceRemote  = "remote"
	SourceCache   = "cache"
	SourceDefault = "default"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "payquest",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payquest",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payquest",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	syncLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payquest",
			Subsystem: "sync",
			Name:      "loads_total",
			Help:      "State loads by entity and winning source.",
		},
		[]string{"entity", "source"},
	)

	syncWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payquest",
			Subsystem: "sync",
			Name:      "remote_writes_total",
			Help:      "Write-through attempts to the remote store.",
		},
		[]string{"entity", "outcome"},
	)

	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payquest",
			Subsystem: "ledger",
			Name:      "transfers_total",
			Help:      "Cross-ledger transfers by outcome.",
		},
		[]string{"outcome"},
	)

	otpEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payquest",
			Subsystem: "otp",
			Name:      "events_total",
			Help:      "Passcode sends and verifications by outcome.",
		},
		[]string{"op", "outcome"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payquest",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the API rate limiter, by route group.",
		},
		[]string{"group"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		syncLoads,
		syncWrites,
		transfers,
		otpEvents,
		rateLimited,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request count and latency per matched route.
func GinMiddleware(skipPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == skipPath {
			c.Next()
			return
		}

		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordSyncLoad counts which source won a manager load.
func RecordSyncLoad(entity, source string) {
	syncLoads.WithLabelValues(entity, source).Inc()
}

// RecordSyncWrite counts one write-through attempt.
func RecordSyncWrite(entity string, err error) {
	syncWrites.WithLabelValues(entity, outcome(err)).Inc()
}

// RecordTransfer counts one transfer attempt.
func RecordTransfer(err error) {
	transfers.WithLabelValues(outcome(err)).Inc()
}

// RecordOTP counts one passcode operation ("send" or "verify").
func RecordOTP(op string, err error) {
	otpEvents.WithLabelValues(op, outcome(err)).Inc()
}

// RecordRateLimited counts one request rejected for the given route group.
func RecordRateLimited(group string) {
	rateLimited.WithLabelValues(group).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
