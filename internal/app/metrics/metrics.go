package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Evaluation outcomes used as label values.
const (
	OutcomeOK             = "ok"
	OutcomeDivisionByZero = "division_by_zero"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "calculator",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calculator",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "calculator",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	// EventsTotal counts applied calculator events by kind.
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calculator",
			Subsystem: "events",
			Name:      "total",
			Help:      "Total number of calculator events applied.",
		},
		[]string{"kind"},
	)

	// EvaluationsTotal counts evaluations by outcome.
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calculator",
			Subsystem: "evaluations",
			Name:      "total",
			Help:      "Total number of evaluations by outcome.",
		},
		[]string{"outcome"},
	)

	// HistoryAppends counts calculations persisted to history.
	HistoryAppends = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "calculator",
			Subsystem: "history",
			Name:      "appends_total",
			Help:      "Total number of history records appended.",
		},
	)

	// PrunedRecords counts history records removed by retention.
	PrunedRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "calculator",
			Subsystem: "history",
			Name:      "pruned_total",
			Help:      "Total number of history records pruned by retention.",
		},
	)

	// WindowsOpened counts windows opened since start.
	WindowsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "calculator",
			Subsystem: "windows",
			Name:      "opened_total",
			Help:      "Total number of windows opened.",
		},
	)

	// ExpiredWindows counts idle windows dropped by the sweeper.
	ExpiredWindows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "calculator",
			Subsystem: "windows",
			Name:      "expired_total",
			Help:      "Total number of idle windows expired.",
		},
	)

	// ActiveWindows tracks windows currently open.
	ActiveWindows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "calculator",
			Subsystem: "windows",
			Name:      "active",
			Help:      "Number of windows currently open.",
		},
	)

	// WSConnections tracks open WebSocket event streams.
	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "calculator",
			Subsystem: "websocket",
			Name:      "connections",
			Help:      "Number of open WebSocket connections.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		EventsTotal,
		EvaluationsTotal,
		HistoryAppends,
		PrunedRecords,
		WindowsOpened,
		ExpiredWindows,
		ActiveWindows,
		WSConnections,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one handled request. The middleware passes
// the mux route template as path to keep label cardinality bounded.
func ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// HTTPInflightInc marks a request as started.
func HTTPInflightInc() { httpInFlight.Inc() }

// HTTPInflightDec marks a request as finished.
func HTTPInflightDec() { httpInFlight.Dec() }
