// Package metrics exposes the engine's Prometheus collectors: counters,
// histograms, and gauges scraped by external monitoring systems
// (Grafana, Alertmanager, etc.).
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineMetrics wraps the prometheus collectors the engine façade,
// registry, and where evaluator record against.
type EngineMetrics struct {
	registry *prometheus.Registry

	firingsTotal       *prometheus.CounterVec
	invocationsEmitted *prometheus.CounterVec
	degradedSkipsTotal *prometheus.CounterVec
	matcherDuration    *prometheus.HistogramVec
	whereQueryDuration *prometheus.HistogramVec
	whereQueryFailures *prometheus.CounterVec

	degradedSyncs  prometheus.Gauge
	actionLogSize  *prometheus.GaugeVec
	conceptHealthy *prometheus.GaugeVec

	uptime prometheus.GaugeFunc
}

var defaultBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000}

var (
	mu    sync.Mutex
	em    *EngineMetrics
	start = time.Now()
)

// Init creates and registers the engine's metric collectors under
// namespace. Safe to call once at startup; subsequent calls replace the
// active registry.
func Init(namespace string) *EngineMetrics {
	mu.Lock()
	defer mu.Unlock()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &EngineMetrics{
		registry: reg,

		firingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sync_firings_total",
			Help: "Total number of sync firings, keyed by sync name",
		}, []string{"sync"}),

		invocationsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "invocations_emitted_total",
			Help: "Total invocations produced by the then emitter, keyed by concept and action",
		}, []string{"concept", "action"}),

		degradedSkipsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "degraded_sync_skips_total",
			Help: "Total times a candidate sync was skipped because it was degraded",
		}, []string{"sync"}),

		matcherDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "matcher_duration_milliseconds",
			Help: "Duration of a single sync's matcher pass in milliseconds", Buckets: defaultBuckets,
		}, []string{"sync"}),

		whereQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "where_query_duration_milliseconds",
			Help: "Duration of a where-evaluator query against a concept in milliseconds", Buckets: defaultBuckets,
		}, []string{"concept"}),

		whereQueryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "where_query_failures_total",
			Help: "Total where-evaluator query failures, keyed by concept",
		}, []string{"concept"}),

		degradedSyncs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "degraded_syncs",
			Help: "Current number of syncs in the degraded set",
		}),

		actionLogSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "action_log_flow_records",
			Help: "Number of records held for a flow, sampled on access",
		}, []string{"flow"}),

		conceptHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "concept_available",
			Help: "1 if the registry currently considers a concept available, else 0",
		}, []string{"concept"}),
	}

	m.uptime = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: "uptime_seconds",
		Help: "Time since the engine process started",
	}, func() float64 { return time.Since(start).Seconds() })

	reg.MustRegister(
		m.firingsTotal,
		m.invocationsEmitted,
		m.degradedSkipsTotal,
		m.matcherDuration,
		m.whereQueryDuration,
		m.whereQueryFailures,
		m.degradedSyncs,
		m.actionLogSize,
		m.conceptHealthy,
		m.uptime,
	)

	em = m
	return m
}

func active() *EngineMetrics {
	mu.Lock()
	defer mu.Unlock()
	return em
}

// RecordFiring increments the firings-total counter for syncName.
func RecordFiring(syncName string) {
	if m := active(); m != nil {
		m.firingsTotal.WithLabelValues(syncName).Inc()
	}
}

// RecordInvocationEmitted increments the emitted-invocations counter.
func RecordInvocationEmitted(concept, action string) {
	if m := active(); m != nil {
		m.invocationsEmitted.WithLabelValues(concept, action).Inc()
	}
}

// RecordDegradedSkip increments the degraded-skip counter for syncName.
func RecordDegradedSkip(syncName string) {
	if m := active(); m != nil {
		m.degradedSkipsTotal.WithLabelValues(syncName).Inc()
	}
}

// ObserveMatcherDuration records how long a sync's matcher pass took.
func ObserveMatcherDuration(syncName string, d time.Duration) {
	if m := active(); m != nil {
		m.matcherDuration.WithLabelValues(syncName).Observe(float64(d.Milliseconds()))
	}
}

// ObserveWhereQueryDuration records how long a where-evaluator query
// against concept took.
func ObserveWhereQueryDuration(concept string, d time.Duration) {
	if m := active(); m != nil {
		m.whereQueryDuration.WithLabelValues(concept).Observe(float64(d.Milliseconds()))
	}
}

// RecordWhereQueryFailure increments the where-query-failure counter.
func RecordWhereQueryFailure(concept string) {
	if m := active(); m != nil {
		m.whereQueryFailures.WithLabelValues(concept).Inc()
	}
}

// SetDegradedSyncs sets the current degraded-sync-set size.
func SetDegradedSyncs(count int) {
	if m := active(); m != nil {
		m.degradedSyncs.Set(float64(count))
	}
}

// SetActionLogFlowSize records the number of records held for flow.
func SetActionLogFlowSize(flow string, count int) {
	if m := active(); m != nil {
		m.actionLogSize.WithLabelValues(flow).Set(float64(count))
	}
}

// SetConceptAvailable records a concept's current availability.
func SetConceptAvailable(concept string, available bool) {
	m := active()
	if m == nil {
		return
	}
	v := 0.0
	if available {
		v = 1.0
	}
	m.conceptHealthy.WithLabelValues(concept).Set(v)
}

// Handler returns an HTTP handler for Prometheus scraping. Before Init
// is called, it responds 503.
func Handler() http.Handler {
	m := active()
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the active prometheus registry, or nil before Init.
func Registry() *prometheus.Registry {
	m := active()
	if m == nil {
		return nil
	}
	return m.registry
}
