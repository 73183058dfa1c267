// Package metrics holds the Prometheus collectors for engine operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the engine collectors
type Metrics struct {
	Operations       *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec
	BitsEmbedded     *prometheus.CounterVec
	Detections       *prometheus.HistogramVec
	ArtifactsStored  prometheus.Counter
	ArtifactsSwept   prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which tests use to avoid the global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "steglab",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Engine operations by carrier, method and outcome",
			},
			[]string{"operation", "carrier", "method", "outcome"},
		),

		OperationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "steglab",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Engine operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "carrier"},
		),

		BitsEmbedded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "steglab",
				Subsystem: "engine",
				Name:      "bits_embedded_total",
				Help:      "Packed bits written into carriers",
			},
			[]string{"carrier", "method"},
		),

		Detections: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "steglab",
				Subsystem: "detect",
				Name:      "probability",
				Help:      "Detector probabilities; inapplicable detectors are not observed",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"carrier", "detector"},
		),

		ArtifactsStored: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "steglab",
				Subsystem: "artifact",
				Name:      "stored_total",
				Help:      "Artifacts written to the store",
			},
		),

		ArtifactsSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "steglab",
				Subsystem: "artifact",
				Name:      "swept_total",
				Help:      "Artifacts removed by retention sweeps",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.Operations,
			m.OperationLatency,
			m.BitsEmbedded,
			m.Detections,
			m.ArtifactsStored,
			m.ArtifactsSwept,
		)
	}
	return m
}

// Outcome labels
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// RecordOperation counts one operation and observes its latency
func (m *Metrics) RecordOperation(op, carrier, method string, err error, d time.Duration) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.Operations.WithLabelValues(op, carrier, method, outcome).Inc()
	m.OperationLatency.WithLabelValues(op, carrier).Observe(d.Seconds())
}

// RecordDetection observes p unless the detector was inapplicable
func (m *Metrics) RecordDetection(carrier, detector string, p *float64) {
	if p == nil {
		return
	}
	m.Detections.WithLabelValues(carrier, detector).Observe(*p)
}
