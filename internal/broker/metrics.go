package broker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the broker's prometheus collectors. Each broker owns its own
// registry so several can run in one process.
type Metrics struct {
	registry *prometheus.Registry

	Connections     prometheus.Gauge
	Topics          prometheus.Gauge
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Pushes          *prometheus.CounterVec
	SlowClients     prometheus.Counter
	Rejected        *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "yamca_broker_connections",
			Help: "Number of connected websocket clients",
		}),
		Topics: factory.NewGauge(prometheus.GaugeOpts{
			Name: "yamca_broker_topics",
			Help: "Number of existing topics",
		}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "yamca_broker_requests_total",
			Help: "Topic requests handled, by operation and result code",
		}, []string{"op", "result"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "yamca_broker_request_duration_seconds",
			Help:    "Time spent handling a topic request",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		Pushes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "yamca_broker_pushes_total",
			Help: "Server-initiated messages queued to clients, by type",
		}, []string{"type"}),
		SlowClients: factory.NewCounter(prometheus.CounterOpts{
			Name: "yamca_broker_slow_clients_total",
			Help: "Clients disconnected because their send queue was full",
		}),
		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "yamca_broker_rejected_connections_total",
			Help: "Websocket connections refused, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
