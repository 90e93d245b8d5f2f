// Package metrics exposes Prometheus collectors for the HTTP API and the store.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	storeOps     *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
	webhookSends *prometheus.CounterVec
}

// New registers every collector on a fresh registry, so tests and multiple
// servers in one process never collide on the global one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donortrack",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "donortrack",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donortrack",
			Name:      "store_operations_total",
			Help:      "Store operations by name and outcome.",
		}, []string{"op", "outcome"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "donortrack",
			Name:      "store_operation_duration_seconds",
			Help:      "Store operation latency.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"op"}),
		webhookSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donortrack",
			Name:      "webhook_deliveries_total",
			Help:      "Webhook delivery attempts by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.storeOps, m.storeLatency, m.webhookSends,
	)
	return m
}

// ObserveStore matches store.Store.Observe.
func (m *Metrics) ObserveStore(op, outcome string, elapsed time.Duration) {
	m.storeOps.WithLabelValues(op, outcome).Inc()
	m.storeLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) WebhookDelivery(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.webhookSends.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware records every request under its chi route pattern; unmatched
// paths share one label so arbitrary URLs cannot blow up cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
