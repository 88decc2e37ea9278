// Package metrics exposes Prometheus collectors for the engine and its HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/payapp-engine/aia"
)

const namespace = "payapp"

// Recorder owns a registry and the collectors registered on it.
// It implements aia.Observer.
type Recorder struct {
	Registry *prometheus.Registry

	mutations     *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	auditRuns     prometheus.Counter
	auditFindings prometheus.Gauge
}

var _ aia.Observer = (*Recorder)(nil)

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		Registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "mutations_total",
				Help:      "Mutations by operation and outcome.",
			},
			[]string{"op", "outcome"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "route"},
		),
		auditRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "runs_total",
			Help:      "Completed audit runs.",
		}),
		auditFindings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "findings",
			Help:      "Applications that failed verification in the last audit run.",
		}),
	}
	r.Registry.MustRegister(r.mutations, r.httpRequests, r.httpDuration, r.auditRuns, r.auditFindings)
	return r
}

// MutationCommitted counts a committed mutation.
func (r *Recorder) MutationCommitted(op string) {
	r.mutations.WithLabelValues(op, "committed").Inc()
}

// MutationRejected counts a rejected mutation by error kind.
func (r *Recorder) MutationRejected(op string, kind aia.ErrorKind) {
	r.mutations.WithLabelValues(op, string(kind)).Inc()
}

// AuditCompleted records the result of an audit run.
func (r *Recorder) AuditCompleted(report aia.AuditReport) {
	r.auditRuns.Inc()
	r.auditFindings.Set(float64(len(report.Findings)))
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency by chi route pattern.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

		next.ServeHTTP(ww, req)

		route := req.URL.Path
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.httpRequests.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
		r.httpDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
	})
}
