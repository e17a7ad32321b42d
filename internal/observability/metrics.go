// Package observability holds the relay's prometheus collectors.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	reg *prometheus.Registry

	connections   prometheus.Gauge
	published     *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	kicked        prometheus.Counter
	callsStarted  *prometheus.CounterVec
	callsEnded    *prometheus.CounterVec
	messagesSent  *prometheus.CounterVec
	rateLimited   prometheus.Counter
	signalsRelays *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relay", Name: "connections_active",
			Help: "Live client connections.",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay", Name: "events_published_total",
			Help: "Events accepted by a connection send buffer.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay", Name: "events_dropped_total",
			Help: "Events refused by a full or closed connection.",
		}, []string{"event"}),
		kicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relay", Name: "connections_kicked_total",
			Help: "Connections closed by the backpressure policy.",
		}),
		callsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay", Name: "calls_started_total",
			Help: "Call sessions created.",
		}, []string{"type"}),
		callsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay", Name: "calls_ended_total",
			Help: "Call sessions moved to ENDED.",
		}, []string{"reason"}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay", Name: "messages_sent_total",
			Help: "Chat messages persisted and fanned out.",
		}, []string{"target", "type"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relay", Name: "inbound_rate_limited_total",
			Help: "Inbound socket events refused by the rate limiter.",
		}),
		signalsRelays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay", Name: "call_signals_total",
			Help: "Call negotiation payloads relayed, by payload class.",
		}, []string{"class"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections, m.published, m.dropped, m.kicked,
		m.callsStarted, m.callsEnded, m.messagesSent, m.rateLimited, m.signalsRelays,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) ConnOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) Published(event string, sent, dropped int) {
	if m == nil {
		return
	}
	if sent > 0 {
		m.published.WithLabelValues(event).Add(float64(sent))
	}
	if dropped > 0 {
		m.dropped.WithLabelValues(event).Add(float64(dropped))
	}
}

func (m *Metrics) Kicked() {
	if m != nil {
		m.kicked.Inc()
	}
}

func (m *Metrics) CallStarted(kind string) {
	if m != nil {
		m.callsStarted.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) CallEnded(reason string) {
	if m != nil {
		m.callsEnded.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) MessageSent(target, kind string) {
	if m != nil {
		m.messagesSent.WithLabelValues(target, kind).Inc()
	}
}

func (m *Metrics) RateLimited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}

func (m *Metrics) SignalRelayed(class string) {
	if m != nil {
		m.signalsRelays.WithLabelValues(class).Inc()
	}
}
