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

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "treasury_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "treasury_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "treasury_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	proposalsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "treasury_layer",
			Subsystem: "proposals",
			Name:      "created_total",
			Help:      "Total number of proposals created.",
		},
	)

	signaturesRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "treasury_layer",
			Subsystem: "proposals",
			Name:      "signatures_total",
			Help:      "Total number of signatures recorded.",
		},
	)

	executions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "treasury_layer",
			Subsystem: "executions",
			Name:      "attempts_total",
			Help:      "Total number of execution attempts by outcome.",
		},
		[]string{"outcome"},
	)

	executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "treasury_layer",
			Subsystem: "executions",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of execution attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"outcome"},
	)

	pendingProposals = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "treasury_layer",
			Subsystem: "proposals",
			Name:      "pending",
			Help:      "Proposals currently awaiting quorum, per wallet.",
		},
		[]string{"wallet_id"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		proposalsCreated,
		signaturesRecorded,
		executions,
		executionDuration,
		pendingProposals,
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
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordProposalCreated counts a newly created proposal.
func RecordProposalCreated() {
	proposalsCreated.Inc()
}

// RecordSignature counts an accepted signature.
func RecordSignature() {
	signaturesRecorded.Inc()
}

// RecordExecution records an execution attempt by outcome.
func RecordExecution(outcome string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	executions.WithLabelValues(outcome).Inc()
	executionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SetPendingProposals publishes the pending-proposal gauge for a wallet. The
// value is always recomputed from the proposal store, never maintained
// incrementally.
func SetPendingProposals(walletID string, count int) {
	pendingProposals.WithLabelValues(walletID).Set(float64(count))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "wallets":
		if len(parts) == 1 {
			return "/wallets"
		}
		if len(parts) == 2 {
			return "/wallets/:wallet"
		}
		return "/wallets/:wallet/" + parts[2]
	case "proposals":
		if len(parts) == 1 {
			return "/proposals"
		}
		if len(parts) == 2 {
			return "/proposals/:proposal"
		}
		return "/proposals/:proposal/" + parts[2]
	}
	return "/" + parts[0]
}
