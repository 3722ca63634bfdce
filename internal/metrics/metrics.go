package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "callrelay"

// Credential issuance outcomes.
const (
	CredentialIssued         = "issued"
	CredentialMissingSession = "missing_session_id"
	CredentialUnauthorized   = "unauthorized"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing, so components can be built without it in tests.
type Metrics struct {
	registry *prometheus.Registry

	activeSessions prometheus.Gauge
	connections    *prometheus.GaugeVec
	relayed        *prometheus.CounterVec
	delivered      *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	credentials    *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry
// together with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions with at least one attached connection.",
		}),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open relay connections per surface.",
		}, []string{"surface"}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_messages_total",
			Help:      "Messages accepted for fan-out, by surface and event.",
		}, []string{"surface", "event"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_deliveries_total",
			Help:      "Per-recipient deliveries enqueued, by surface.",
		}, []string{"surface"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_dropped_total",
			Help:      "Per-recipient deliveries dropped, by surface.",
		}, []string{"surface"}),
		credentials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_credentials_total",
			Help:      "TURN credential requests by outcome.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.activeSessions,
		m.connections,
		m.relayed,
		m.delivered,
		m.dropped,
		m.credentials,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SessionStarted implements registry.Observer.
func (m *Metrics) SessionStarted(string) {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionEnded implements registry.Observer.
func (m *Metrics) SessionEnded(string) {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *Metrics) ConnectionOpened(surface string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(surface).Inc()
}

func (m *Metrics) ConnectionClosed(surface string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(surface).Dec()
}

// MessageRelayed records one fan-out of event to delivered recipients, with
// dropped recipients whose send buffer rejected the message.
func (m *Metrics) MessageRelayed(surface, event string, delivered, dropped int) {
	if m == nil {
		return
	}
	m.relayed.WithLabelValues(surface, event).Inc()
	if delivered > 0 {
		m.delivered.WithLabelValues(surface).Add(float64(delivered))
	}
	if dropped > 0 {
		m.dropped.WithLabelValues(surface).Add(float64(dropped))
	}
}

func (m *Metrics) Credential(result string) {
	if m == nil {
		return
	}
	m.credentials.WithLabelValues(result).Inc()
}
