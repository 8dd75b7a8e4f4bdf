// control/prometheus.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus adapter for api.Metrics.

package control

import (
	"errors"
	"fmt"
	"time"

	"github.com/momentics/hioload-mux/api"
	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics exports dispatcher and pool telemetry as Prometheus collectors.
type PrometheusMetrics struct {
	poolWorkers      *prom.GaugeVec
	queueDepth       prom.Gauge
	tasksSubmitted   prom.Counter
	tasksPanicked    prom.Counter
	taskDuration     prom.Histogram
	workerEvents     *prom.CounterVec
	eventsDispatched *prom.CounterVec
	pollTimeouts     prom.Counter
	pollErrors       prom.Counter
}

var _ api.Metrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates and registers the collectors under namespace.
// Registering twice against the same registerer reuses the existing collectors.
func NewPrometheusMetrics(namespace string, reg prom.Registerer) (*PrometheusMetrics, error) {
	if namespace == "" {
		namespace = "hioload_mux"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	poolWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "workers",
		Help:      "Workers in the pool by roster.",
	}, []string{"state"})
	queueDepth := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "queue_depth",
		Help:      "Tasks waiting for a worker.",
	})
	tasksSubmitted := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "tasks_submitted_total",
		Help:      "Tasks accepted by AddJob.",
	})
	tasksPanicked := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "tasks_panicked_total",
		Help:      "Tasks that panicked.",
	})
	taskDuration := prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "task_duration_seconds",
		Help:      "Task execution time.",
		Buckets:   prom.DefBuckets,
	})
	workerEvents := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "worker_events_total",
		Help:      "Workers spawned and reaped.",
	}, []string{"event"})
	eventsDispatched := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Subsystem: "reactor",
		Name:      "events_dispatched_total",
		Help:      "Handlers invoked by kind.",
	}, []string{"kind"})
	pollTimeouts := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Subsystem: "reactor",
		Name:      "poll_timeouts_total",
		Help:      "Poll cycles that timed out.",
	})
	pollErrors := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Subsystem: "reactor",
		Name:      "poll_errors_total",
		Help:      "Poll calls that failed.",
	})

	var err error
	if poolWorkers, err = registerCollector(reg, poolWorkers); err != nil {
		return nil, err
	}
	if queueDepth, err = registerCollector(reg, queueDepth); err != nil {
		return nil, err
	}
	if tasksSubmitted, err = registerCollector(reg, tasksSubmitted); err != nil {
		return nil, err
	}
	if tasksPanicked, err = registerCollector(reg, tasksPanicked); err != nil {
		return nil, err
	}
	if taskDuration, err = registerCollector(reg, taskDuration); err != nil {
		return nil, err
	}
	if workerEvents, err = registerCollector(reg, workerEvents); err != nil {
		return nil, err
	}
	if eventsDispatched, err = registerCollector(reg, eventsDispatched); err != nil {
		return nil, err
	}
	if pollTimeouts, err = registerCollector(reg, pollTimeouts); err != nil {
		return nil, err
	}
	if pollErrors, err = registerCollector(reg, pollErrors); err != nil {
		return nil, err
	}

	return &PrometheusMetrics{
		poolWorkers:      poolWorkers,
		queueDepth:       queueDepth,
		tasksSubmitted:   tasksSubmitted,
		tasksPanicked:    tasksPanicked,
		taskDuration:     taskDuration,
		workerEvents:     workerEvents,
		eventsDispatched: eventsDispatched,
		pollTimeouts:     pollTimeouts,
		pollErrors:       pollErrors,
	}, nil
}

func (m *PrometheusMetrics) PoolSize(current, idle, busy int) {
	m.poolWorkers.WithLabelValues("total").Set(float64(current))
	m.poolWorkers.WithLabelValues("idle").Set(float64(idle))
	m.poolWorkers.WithLabelValues("busy").Set(float64(busy))
}

func (m *PrometheusMetrics) QueueDepth(n int) { m.queueDepth.Set(float64(n)) }

func (m *PrometheusMetrics) TaskSubmitted() { m.tasksSubmitted.Inc() }

func (m *PrometheusMetrics) TaskCompleted(d time.Duration) { m.taskDuration.Observe(d.Seconds()) }

func (m *PrometheusMetrics) TaskPanicked() { m.tasksPanicked.Inc() }

func (m *PrometheusMetrics) WorkerSpawned() { m.workerEvents.WithLabelValues("spawned").Inc() }

func (m *PrometheusMetrics) WorkerReaped() { m.workerEvents.WithLabelValues("reaped").Inc() }

func (m *PrometheusMetrics) EventDispatched(kind api.EventKind) {
	m.eventsDispatched.WithLabelValues(kind.String()).Inc()
}

func (m *PrometheusMetrics) PollTimeout() { m.pollTimeouts.Inc() }

func (m *PrometheusMetrics) PollError() { m.pollErrors.Inc() }

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
