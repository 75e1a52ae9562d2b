package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the pipeline's Prometheus instruments on a dedicated
// registry so construction and teardown follow the pipeline lifecycle
// instead of process-global state.
type Metrics struct {
	registry *prometheus.Registry

	TicksIngested  prometheus.Counter
	TicksPersisted prometheus.Counter
	TickConflicts  prometheus.Counter
	PersistRetries prometheus.Counter
	PersistFailed  prometheus.Counter

	BusDropped        *prometheus.CounterVec
	SubscriberDropped prometheus.Counter
	SlowConsumers     prometheus.Counter
	LiveSubscriptions prometheus.Gauge

	RefreshDuration prometheus.Histogram
}

// New creates the metric set on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.TicksIngested = m.counter("fxohlc_ticks_ingested_total", "Ticks accepted onto the distribution bus")
	m.TicksPersisted = m.counter("fxohlc_ticks_persisted_total", "Ticks written to the durable tick log")
	m.TickConflicts = m.counter("fxohlc_tick_conflicts_total", "Ticks dropped because the key was persisted with a different price")
	m.PersistRetries = m.counter("fxohlc_persist_retries_total", "Retried storage writes")
	m.PersistFailed = m.counter("fxohlc_persist_failed_total", "Ticks dropped after exhausting the storage retry budget")

	m.BusDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fxohlc_bus_dropped_total",
		Help: "Items dropped from a consumer group queue (drop-oldest)",
	}, []string{"group"})
	m.registry.MustRegister(m.BusDropped)

	m.SubscriberDropped = m.counter("fxohlc_subscriber_dropped_total", "Messages dropped from slow subscriber queues")
	m.SlowConsumers = m.counter("fxohlc_slow_consumer_warnings_total", "Slow-consumer warnings raised by the broadcast manager")

	m.LiveSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fxohlc_live_subscriptions",
		Help: "Currently registered live subscriptions",
	})
	m.registry.MustRegister(m.LiveSubscriptions)

	m.RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fxohlc_refresh_seconds",
		Help:    "Duration of one aggregate refresh pass",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})
	m.registry.MustRegister(m.RefreshDuration)

	return m
}

func (m *Metrics) counter(name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	m.registry.MustRegister(c)
	return c
}

// Handler serves the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
