// Package metrics records pipeline outcomes as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pubsub2inbox/internal/pipeline/core"
)

// Observer implements core.Observer on its own registry
type Observer struct {
	registry *prometheus.Registry

	StageExecutions *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	Events          *prometheus.CounterVec
	EventDuration   prometheus.Histogram
}

var _ core.Observer = (*Observer)(nil)

// New registers the pipeline metrics on a fresh registry, together with the
// Go runtime and process collectors
func New() *Observer {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Observer{
		registry: registry,
		StageExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pubsub2inbox",
				Subsystem: "stage",
				Name:      "executions_total",
				Help:      "Total number of stage executions by kind, type and status",
			},
			[]string{"kind", "type", "status"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pubsub2inbox",
				Subsystem: "stage",
				Name:      "duration_seconds",
				Help:      "Duration of stage executions in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind", "type"},
		),
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pubsub2inbox",
				Name:      "events_total",
				Help:      "Total number of processed events by status",
			},
			[]string{"status"},
		),
		EventDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pubsub2inbox",
				Name:      "event_duration_seconds",
				Help:      "Duration of a full pipeline run in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),
	}
}

// Registry is what /metrics serves
func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

func (o *Observer) ObserveStage(kind core.Kind, stageType string, status core.Status, duration time.Duration) {
	o.StageExecutions.WithLabelValues(string(kind), stageType, string(status)).Inc()
	o.StageDuration.WithLabelValues(string(kind), stageType).Observe(duration.Seconds())
}

func (o *Observer) ObserveEvent(status core.Status, duration time.Duration) {
	o.Events.WithLabelValues(string(status)).Inc()
	o.EventDuration.Observe(duration.Seconds())
}
