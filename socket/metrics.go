package socket

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the client's Prometheus collectors.
type Metrics struct {
	Reconnects prometheus.Counter
	Received   *prometheus.CounterVec
	Dropped    *prometheus.CounterVec
	Connected  prometheus.Gauge
}

// NewMetrics builds the collectors and registers them with reg when it is not
// nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resocket_reconnects_scheduled_total",
			Help: "Reconnect attempts scheduled after an unexpected close",
		}),
		Received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resocket_messages_received_total",
			Help: "Inbound payloads decoded, by event name",
		}, []string{"event"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resocket_messages_dropped_total",
			Help: "Frames dropped, by reason",
		}, []string{"reason"}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "resocket_connected",
			Help: "1 while a connection is open",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Reconnects, m.Received, m.Dropped, m.Connected)
	}
	return m
}

func (m *Metrics) reconnect() {
	if m != nil {
		m.Reconnects.Inc()
	}
}

func (m *Metrics) received(event Event) {
	if m == nil {
		return
	}
	if event == "" {
		event = EventMessage
	}
	m.Received.WithLabelValues(string(event)).Inc()
}

func (m *Metrics) dropped(reason string) {
	if m != nil {
		m.Dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) setConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}
