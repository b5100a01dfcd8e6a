// Package observability publishes driver metrics through a Prometheus
// registry. Batch runs have no scrape endpoint, so the registry is written
// to a node-exporter textfile at the end of a run.
package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tcrkp"

// Outcome labels for submissions.
const (
	OutcomeSubmitted = "submitted"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Recorder receives driver events. The zero Nop recorder discards them.
type Recorder interface {
	// Observe records one driver operation outcome.
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	ObserveNetwork(forward, reverse, species, record int)
	SampleWritten()
	Submission(outcome string)
	WaitPoll(pending int)
}

// Nop is a Recorder that does nothing.
type Nop struct{}

func (Nop) Observe(context.Context, string, bool, time.Duration) {}
func (Nop) ObserveNetwork(int, int, int, int)                    {}
func (Nop) SampleWritten()                                       {}
func (Nop) Submission(string)                                    {}
func (Nop) WaitPoll(int)                                         {}

// Metrics is the Prometheus-backed Recorder.
type Metrics struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	reactions  *prometheus.GaugeVec
	species    prometheus.Gauge
	record     prometheus.Gauge
	samples    prometheus.Counter
	submits    *prometheus.CounterVec
	polls      prometheus.Counter
	pending    prometheus.Gauge
}

var _ Recorder = (*Metrics)(nil)

// NewMetrics registers the driver collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Driver operations by name and status.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Driver operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"operation"}),
		reactions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "network_reactions",
			Help:      "Reactions in the constructed network by direction.",
		}, []string{"direction"}),
		species: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "network_species",
			Help:      "Distinct species in the constructed network.",
		}),
		record: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "network_record_species",
			Help:      "Tracked output species.",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_written_total",
			Help:      "Per-sample working directories written.",
		}),
		submits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Job submissions by outcome.",
		}, []string{"outcome"}),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wait_polls_total",
			Help:      "Wait loop poll attempts.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wait_pending_outputs",
			Help:      "Expected outputs still missing at the last poll.",
		}),
	}
	m.registry.MustRegister(m.operations, m.durations, m.reactions, m.species,
		m.record, m.samples, m.submits, m.polls, m.pending)
	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observe implements Recorder.
func (m *Metrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	m.operations.WithLabelValues(operation, status).Inc()
	m.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveNetwork implements Recorder.
func (m *Metrics) ObserveNetwork(forward, reverse, species, record int) {
	m.reactions.WithLabelValues("forward").Set(float64(forward))
	m.reactions.WithLabelValues("reverse").Set(float64(reverse))
	m.species.Set(float64(species))
	m.record.Set(float64(record))
}

// SampleWritten implements Recorder.
func (m *Metrics) SampleWritten() { m.samples.Inc() }

// Submission implements Recorder.
func (m *Metrics) Submission(outcome string) { m.submits.WithLabelValues(outcome).Inc() }

// WaitPoll implements Recorder.
func (m *Metrics) WaitPoll(pending int) {
	m.polls.Inc()
	m.pending.Set(float64(pending))
}

// WriteTextfile writes the registry in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
