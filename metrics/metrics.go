package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Derivation outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeDomain    = "domain_error"
	OutcomeReference = "reference_error"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kspbal_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kspbal_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	derivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kspbal_derivations_total",
			Help: "Engine derivations by outcome.",
		},
		[]string{"outcome"},
	)

	loadDiagnosticsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kspbal_load_diagnostics_total",
			Help: "Configuration entries rejected while loading, by kind.",
		},
		[]string{"kind"},
	)

	batchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kspbal_batch_duration_seconds",
			Help:    "Wall time of batch derivations in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(derivationsTotal)
	prometheus.MustRegister(loadDiagnosticsTotal)
	prometheus.MustRegister(batchDurationSeconds)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDerivation counts one derivation with the given outcome.
func RecordDerivation(outcome string) {
	derivationsTotal.WithLabelValues(outcome).Inc()
}

// RecordDiagnostic counts one rejected configuration entry.
func RecordDiagnostic(kind string) {
	loadDiagnosticsTotal.WithLabelValues(kind).Inc()
}

// ObserveBatch records the duration of a batch run.
func ObserveBatch(d time.Duration) {
	batchDurationSeconds.Observe(d.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// normalizeRoute collapses parameterized paths to their route template so
// label cardinality stays bounded.
func normalizeRoute(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "other"
}

// Middleware records request count and duration for each request. Install
// it with Router.Use so the matched route is known.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
