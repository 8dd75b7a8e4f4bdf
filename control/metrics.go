// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// In-memory metrics registry. Implements api.Metrics so the dispatcher and
// the pool can report into it, and exposes a flat snapshot for debug output.

package control

import (
	"sync"
	"time"

	"github.com/momentics/hioload-mux/api"
)

// Metric keys published by MetricsRegistry.
const (
	MetricPoolCurrent    = "pool.current"
	MetricPoolIdle       = "pool.idle"
	MetricPoolBusy       = "pool.busy"
	MetricQueueDepth     = "pool.queue_depth"
	MetricTasksSubmitted = "pool.tasks_submitted"
	MetricTasksCompleted = "pool.tasks_completed"
	MetricTasksPanicked  = "pool.tasks_panicked"
	MetricTaskTimeTotal  = "pool.task_time_total"
	MetricWorkersSpawned = "pool.workers_spawned"
	MetricWorkersReaped  = "pool.workers_reaped"
	MetricPollTimeouts   = "reactor.poll_timeouts"
	MetricPollErrors     = "reactor.poll_errors"
	metricDispatchPrefix = "reactor.dispatched."
)

// MetricsRegistry holds mutable and read-only metrics.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]any
	updated time.Time
}

var _ api.Metrics = (*MetricsRegistry)(nil)

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]any),
	}
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

func (mr *MetricsRegistry) add(key string, delta uint64) {
	mr.mu.Lock()
	v, _ := mr.metrics[key].(uint64)
	mr.metrics[key] = v + delta
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Counter returns the value of a counter key, or zero.
func (mr *MetricsRegistry) Counter(key string) uint64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	v, _ := mr.metrics[key].(uint64)
	return v
}

// GetSnapshot returns the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}

// Updated returns the time of the last write.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}

func (mr *MetricsRegistry) PoolSize(current, idle, busy int) {
	mr.mu.Lock()
	mr.metrics[MetricPoolCurrent] = current
	mr.metrics[MetricPoolIdle] = idle
	mr.metrics[MetricPoolBusy] = busy
	mr.updated = time.Now()
	mr.mu.Unlock()
}

func (mr *MetricsRegistry) QueueDepth(n int) { mr.Set(MetricQueueDepth, n) }
func (mr *MetricsRegistry) TaskSubmitted()   { mr.add(MetricTasksSubmitted, 1) }
func (mr *MetricsRegistry) TaskPanicked()    { mr.add(MetricTasksPanicked, 1) }
func (mr *MetricsRegistry) WorkerSpawned()   { mr.add(MetricWorkersSpawned, 1) }
func (mr *MetricsRegistry) WorkerReaped()    { mr.add(MetricWorkersReaped, 1) }
func (mr *MetricsRegistry) PollTimeout()     { mr.add(MetricPollTimeouts, 1) }
func (mr *MetricsRegistry) PollError()       { mr.add(MetricPollErrors, 1) }

func (mr *MetricsRegistry) TaskCompleted(d time.Duration) {
	mr.mu.Lock()
	v, _ := mr.metrics[MetricTasksCompleted].(uint64)
	mr.metrics[MetricTasksCompleted] = v + 1
	total, _ := mr.metrics[MetricTaskTimeTotal].(time.Duration)
	mr.metrics[MetricTaskTimeTotal] = total + d
	mr.updated = time.Now()
	mr.mu.Unlock()
}

func (mr *MetricsRegistry) EventDispatched(kind api.EventKind) {
	mr.add(metricDispatchPrefix+kind.String(), 1)
}

// DispatchKey returns the counter key for dispatches of kind.
func DispatchKey(kind api.EventKind) string { return metricDispatchPrefix + kind.String() }

// MultiMetrics fans every call out to each of its members.
type MultiMetrics []api.Metrics

var _ api.Metrics = MultiMetrics(nil)

func (m MultiMetrics) PoolSize(current, idle, busy int) {
	for _, x := range m {
		x.PoolSize(current, idle, busy)
	}
}

func (m MultiMetrics) QueueDepth(n int) {
	for _, x := range m {
		x.QueueDepth(n)
	}
}

func (m MultiMetrics) TaskSubmitted() {
	for _, x := range m {
		x.TaskSubmitted()
	}
}

func (m MultiMetrics) TaskCompleted(d time.Duration) {
	for _, x := range m {
		x.TaskCompleted(d)
	}
}

func (m MultiMetrics) TaskPanicked() {
	for _, x := range m {
		x.TaskPanicked()
	}
}

func (m MultiMetrics) WorkerSpawned() {
	for _, x := range m {
		x.WorkerSpawned()
	}
}

func (m MultiMetrics) WorkerReaped() {
	for _, x := range m {
		x.WorkerReaped()
	}
}

func (m MultiMetrics) EventDispatched(kind api.EventKind) {
	for _, x := range m {
		x.EventDispatched(kind)
	}
}

func (m MultiMetrics) PollTimeout() {
	for _, x := range m {
		x.PollTimeout()
	}
}

func (m MultiMetrics) PollError() {
	for _, x := range m {
		x.PollError()
	}
}
