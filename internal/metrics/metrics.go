// Package metrics exposes relay counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pushrelay"

// Metrics owns a private Prometheus registry with the relay collectors.
type Metrics struct {
	registry    *prometheus.Registry
	published   *prometheus.CounterVec
	delivered   prometheus.Counter
	connections *prometheus.CounterVec
}

// New registers the relay collectors. connected and registered are sampled
// on every scrape.
func New(connected, registered func() int) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Messages accepted by the publish endpoint.",
		}, []string{"mode"}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_enqueued_total",
			Help:      "Messages enqueued onto client outboxes.",
		}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "WebSocket connection lifecycle events.",
		}, []string{"event"}),
	}

	reg.MustRegister(
		m.published,
		m.delivered,
		m.connections,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clients_connected",
			Help:      "Clients with a live connection.",
		}, func() float64 { return float64(connected()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clients_registered",
			Help:      "Registry entries, connected or not.",
		}, func() float64 { return float64(registered()) }),
		collectors.NewGoCollector(),
	)
	return m
}

// ObservePublish records one publish call and the number of outboxes it reached.
func (m *Metrics) ObservePublish(broadcast bool, delivered int) {
	mode := "targeted"
	if broadcast {
		mode = "broadcast"
	}
	m.published.WithLabelValues(mode).Inc()
	m.delivered.Add(float64(delivered))
}

// ConnectionOpened counts an upgraded connection.
func (m *Metrics) ConnectionOpened() {
	m.connections.WithLabelValues("opened").Inc()
}

// ConnectionClosed counts a finished connection.
func (m *Metrics) ConnectionClosed() {
	m.connections.WithLabelValues("closed").Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
