// Package telemetry exposes Prometheus metrics for the workflow engine.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"caseflow/internal/workflow"
)

// Metrics aggregates the engine's Prometheus collectors.
type Metrics struct {
	gatherer       prometheus.Gatherer
	stageAttempts  *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	staleWrites    prometheus.Counter
	sweptInstances prometheus.Counter
	reclaimed      prometheus.Counter
	activeWorkers  prometheus.Gauge
	queuedJobs     prometheus.Gauge
}

// New registers the engine collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	gatherer, _ := reg.(prometheus.Gatherer)
	return &Metrics{
		gatherer: gatherer,
		stageAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caseflow",
			Name:      "stage_attempts_total",
			Help:      "Stage attempts by stage and outcome.",
		}, []string{"stage", "outcome"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "caseflow",
			Name:      "stage_duration_seconds",
			Help:      "Stage attempt duration by stage.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
		staleWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "caseflow",
			Name:      "stale_writes_total",
			Help:      "Stage results abandoned after losing a concurrent update.",
		}),
		sweptInstances: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "caseflow",
			Name:      "expired_instances_total",
			Help:      "Instances expired by the TTL sweeper.",
		}),
		reclaimed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "caseflow",
			Name:      "reclaimed_attempts_total",
			Help:      "Interrupted stage attempts recovered by the reclaimer.",
		}),
		activeWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "caseflow",
			Name:      "active_workers",
			Help:      "Workers currently executing a stage attempt.",
		}),
		queuedJobs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "caseflow",
			Name:      "queued_jobs",
			Help:      "Jobs waiting in the dispatch queue.",
		}),
	}
}

// NewNop returns metrics backed by a throwaway registry, for tests and
// callers that do not scrape.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Gatherer returns the registry the collectors were registered with, or nil
// when the registerer cannot gather (for example a wrapped registerer).
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.gatherer
}

// ObserveAttempt records a finished stage attempt.
func (m *Metrics) ObserveAttempt(stage workflow.Stage, outcome workflow.Outcome, duration time.Duration) {
	if m == nil {
		return
	}
	m.stageAttempts.WithLabelValues(string(stage), string(outcome)).Inc()
	m.stageDuration.WithLabelValues(string(stage)).Observe(duration.Seconds())
}

// ObserveStaleWrite records an abandoned stage result.
func (m *Metrics) ObserveStaleWrite() {
	if m == nil {
		return
	}
	m.staleWrites.Inc()
}

// ObserveSweep records instances expired in one sweeper pass.
func (m *Metrics) ObserveSweep(expired int) {
	if m == nil || expired <= 0 {
		return
	}
	m.sweptInstances.Add(float64(expired))
}

// ObserveReclaim records attempts recovered in one reclaim pass.
func (m *Metrics) ObserveReclaim(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.reclaimed.Add(float64(count))
}

// WorkerStarted marks a worker as busy.
func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.activeWorkers.Inc()
}

// WorkerFinished marks a worker as idle again.
func (m *Metrics) WorkerFinished() {
	if m == nil {
		return
	}
	m.activeWorkers.Dec()
}

// SetQueuedJobs reports the current dispatch queue depth.
func (m *Metrics) SetQueuedJobs(depth int) {
	if m == nil {
		return
	}
	m.queuedJobs.Set(float64(depth))
}
