package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kodekalender_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kodekalender_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	codeSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kodekalender_code_submissions_total",
		Help: "Count of mission code submissions by result",
	}, []string{"result"})

	backendOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kodekalender_backend_op_duration_seconds",
		Help:    "Duration of storage backend operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "op", "result"})

	badgesAwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kodekalender_badges_awarded_total",
		Help: "Count of badges newly awarded",
	})

	crisesResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kodekalender_crises_resolved_total",
		Help: "Count of crises resolved",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kodekalender_active_sessions",
		Help: "Number of family sessions with an open event stream",
	})

	seasonDay = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kodekalender_season_day",
		Help: "Current quest day of the season, 0 outside the season",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveSubmission records a code submission with a result label
// (accepted, duplicate, rejected, invalid)
func ObserveSubmission(result string) {
	codeSubmissions.WithLabelValues(result).Inc()
}

// ObserveBackendOp records the duration of a storage backend operation
func ObserveBackendOp(backend, op, result string, duration time.Duration) {
	backendOpDuration.WithLabelValues(backend, op, result).Observe(duration.Seconds())
}

// ObserveBadgeAwarded increments the badge counter
func ObserveBadgeAwarded() {
	badgesAwarded.Inc()
}

// ObserveCrisisResolved increments the crisis counter
func ObserveCrisisResolved() {
	crisesResolved.Inc()
}

// IncrementSessions increments the active session gauge
func IncrementSessions() {
	activeSessions.Inc()
}

// DecrementSessions decrements the active session gauge
func DecrementSessions() {
	activeSessions.Dec()
}

// SetSeasonDay records the current quest day
func SetSeasonDay(day int) {
	seasonDay.Set(float64(day))
}
