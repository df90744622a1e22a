// Package metrics provides Prometheus metrics for the Celima gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all Prometheus metrics for the service.
type Registry struct {
	// Ingest metrics
	MessagesReceived  *prometheus.CounterVec
	MessagesMalformed prometheus.Counter
	ShiftRollovers    prometheus.Counter

	// Publish metrics
	PublicationsTotal *prometheus.CounterVec
	PublishLatency    prometheus.Histogram
	BufferSize        prometheus.Gauge
	MQTTReconnects    prometheus.Counter

	// State metrics
	LinesTracked *prometheus.GaugeVec
}

// NewRegistry creates a metrics registry with all metrics registered on the
// default Prometheus registerer.
func NewRegistry() *Registry {
	return &Registry{
		MessagesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "celima",
			Subsystem: "ingest",
			Name:      "messages_received_total",
			Help:      "Raw data-topic messages received, by device kind",
		}, []string{"device_kind"}),
		MessagesMalformed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "celima",
			Subsystem: "ingest",
			Name:      "messages_malformed_total",
			Help:      "Messages dropped because the payload was not valid JSON",
		}),
		ShiftRollovers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "celima",
			Subsystem: "ingest",
			Name:      "shift_rollovers_total",
			Help:      "Observed transitions of the plant-wide shift",
		}),

		PublicationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "celima",
			Subsystem: "mqtt",
			Name:      "publications_total",
			Help:      "Outbound publications, by status",
		}, []string{"status"}),
		PublishLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "celima",
			Subsystem: "mqtt",
			Name:      "publish_latency_seconds",
			Help:      "Broker acknowledgement latency for QoS1 publishes",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		BufferSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "celima",
			Subsystem: "mqtt",
			Name:      "buffer_size",
			Help:      "Messages waiting in the publish buffer",
		}),
		MQTTReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "celima",
			Subsystem: "mqtt",
			Name:      "reconnects_total",
			Help:      "Broker reconnection attempts",
		}),

		LinesTracked: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "celima",
			Subsystem: "state",
			Name:      "lines_tracked",
			Help:      "Production lines holding accumulator state, by machine",
		}, []string{"machine"}),
	}
}

// RecordMessage counts one received data message for a device kind.
func (r *Registry) RecordMessage(kind string) {
	r.MessagesReceived.WithLabelValues(kind).Inc()
}

// RecordMalformed counts one dropped unparseable payload.
func (r *Registry) RecordMalformed() {
	r.MessagesMalformed.Inc()
}

// RecordShiftRollover counts one plant-wide shift transition.
func (r *Registry) RecordShiftRollover() {
	r.ShiftRollovers.Inc()
}

// RecordPublish counts one publish attempt and its broker latency.
func (r *Registry) RecordPublish(success bool, seconds float64) {
	status := "success"
	if !success {
		status = "failure"
	}
	r.PublicationsTotal.WithLabelValues(status).Inc()
	if success {
		r.PublishLatency.Observe(seconds)
	}
}

// SetBufferSize updates the publish buffer gauge.
func (r *Registry) SetBufferSize(n int) {
	r.BufferSize.Set(float64(n))
}

// RecordReconnect counts one broker reconnection attempt.
func (r *Registry) RecordReconnect() {
	r.MQTTReconnects.Inc()
}

// SetLinesTracked updates the per-machine line-state gauge.
func (r *Registry) SetLinesTracked(machine string, n int) {
	r.LinesTracked.WithLabelValues(machine).Set(float64(n))
}
