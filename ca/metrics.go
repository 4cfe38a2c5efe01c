package ca

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the send-path collectors. Conn and SearchWriter accept a
// *Metrics through their options; nil disables collection entirely.
type Metrics struct {
	MessagesCommitted prometheus.Counter
	MessagesDiscarded prometheus.Counter
	Flushes           prometheus.Counter
	BlocksFlushed     prometheus.Counter
	BytesFlushed      prometheus.Counter
	SendErrors        prometheus.Counter
	PendingBytes      prometheus.Gauge
	SearchesSent      prometheus.Counter
	DatagramsSent     prometheus.Counter
}

// MetricsConfig customizes collector registration.
type MetricsConfig struct {
	// Namespace prefixes every metric name. Defaults to "ca".
	Namespace string

	// ConstLabels are attached to every collector, e.g. the circuit's peer
	// address.
	ConstLabels prometheus.Labels

	// Registry receives the collectors. Defaults to the global registerer.
	Registry prometheus.Registerer
}

// NewMetrics builds and registers the send-path collectors.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "ca"
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	counter := func(subsystem, name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.ConstLabels,
		})
	}

	return &Metrics{
		MessagesCommitted: counter("send", "messages_committed_total", "Requests committed to the outgoing queue."),
		MessagesDiscarded: counter("send", "messages_discarded_total", "Partially built requests rolled back."),
		Flushes:           counter("send", "flushes_total", "Queue drains to the socket."),
		BlocksFlushed:     counter("send", "blocks_flushed_total", "Buffer blocks written out."),
		BytesFlushed:      counter("send", "bytes_flushed_total", "Bytes written out."),
		SendErrors:        counter("send", "errors_total", "Socket write failures."),
		PendingBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "send",
			Name:        "pending_bytes",
			Help:        "Bytes queued and not yet written out.",
			ConstLabels: cfg.ConstLabels,
		}),
		SearchesSent:  counter("search", "requests_total", "Name resolution requests sent."),
		DatagramsSent: counter("search", "datagrams_total", "Search datagrams sent."),
	}
}
