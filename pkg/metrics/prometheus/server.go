// Package prometheus implements the metrics interfaces on top of
// prometheus/client_golang.
package prometheus

import (
	"time"

	"github.com/marmos91/tinymmo/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics is the Prometheus implementation of metrics.ServerMetrics.
type serverMetrics struct {
	datagramsReceived prometheus.Counter
	bytesReceived     prometheus.Counter
	datagramsDropped  *prometheus.CounterVec
	datagramsSent     *prometheus.CounterVec
	bytesSent         prometheus.Counter
	tickDuration      prometheus.Histogram
	ticksTotal        prometheus.Counter
	ticksSkipped      prometheus.Counter
	sessions          prometheus.Gauge
	connects          prometheus.Counter
	disconnects       *prometheus.CounterVec
}

// NewServerMetrics creates a ServerMetrics registered on the global registry.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not
// called).
func NewServerMetrics() metrics.ServerMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopServerMetrics()
	}
	return NewServerMetricsWith(metrics.GetRegistry())
}

// NewServerMetricsWith registers the server metrics on reg.
func NewServerMetricsWith(reg prometheus.Registerer) metrics.ServerMetrics {
	return &serverMetrics{
		datagramsReceived: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tinymmo_datagrams_received_total",
				Help: "Total number of datagrams read from the socket",
			},
		),
		bytesReceived: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tinymmo_bytes_received_total",
				Help: "Total bytes read from the socket",
			},
		),
		datagramsDropped: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tinymmo_datagrams_dropped_total",
				Help: "Total number of datagrams discarded by the pump, by reason",
			},
			[]string{"reason"},
		),
		datagramsSent: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tinymmo_datagrams_sent_total",
				Help: "Total number of output datagrams by status",
			},
			[]string{"status"},
		),
		bytesSent: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tinymmo_bytes_sent_total",
				Help: "Total bytes written to peers",
			},
		),
		tickDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "tinymmo_tick_duration_seconds",
				Help: "Wall time spent running one simulation tick",
				Buckets: []float64{
					0.0001, // 100us
					0.0005, // 500us
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.025,  // 25ms
					0.05,   // 50ms
					0.1,    // 100ms
				},
			},
		),
		ticksTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tinymmo_ticks_total",
				Help: "Total number of simulation ticks run",
			},
		),
		ticksSkipped: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tinymmo_ticks_skipped_total",
				Help: "Backlog ticks discarded by the catch-up cap",
			},
		),
		sessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "tinymmo_sessions",
				Help: "Current number of connected sessions",
			},
		),
		connects: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tinymmo_sessions_connected_total",
				Help: "Total number of sessions created",
			},
		),
		disconnects: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tinymmo_sessions_disconnected_total",
				Help: "Total number of sessions removed, by reason",
			},
			[]string{"reason"},
		),
	}
}

func (m *serverMetrics) RecordDatagram(bytes int) {
	m.datagramsReceived.Inc()
	m.bytesReceived.Add(float64(bytes))
}

func (m *serverMetrics) RecordDrop(reason string) {
	m.datagramsDropped.WithLabelValues(reason).Inc()
}

func (m *serverMetrics) RecordSend(bytes int, err error) {
	if err != nil {
		m.datagramsSent.WithLabelValues("error").Inc()
		return
	}
	m.datagramsSent.WithLabelValues("success").Inc()
	m.bytesSent.Add(float64(bytes))
}

func (m *serverMetrics) RecordTick(duration time.Duration) {
	m.ticksTotal.Inc()
	m.tickDuration.Observe(duration.Seconds())
}

func (m *serverMetrics) RecordTicksSkipped(n int) {
	m.ticksSkipped.Add(float64(n))
}

func (m *serverMetrics) SetSessions(count int) {
	m.sessions.Set(float64(count))
}

func (m *serverMetrics) RecordConnect() {
	m.connects.Inc()
}

func (m *serverMetrics) RecordDisconnect(reason string) {
	m.disconnects.WithLabelValues(reason).Inc()
}
