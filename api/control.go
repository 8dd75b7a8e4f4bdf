// File: api/control.go
// Package api defines the Control and Metrics interfaces.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "time"

// Control exposes runtime stats and debug probes of a running mux.
type Control interface {
	Stats() map[string]any
	RegisterDebugProbe(name string, fn func() any)
}

// Metrics receives telemetry from the dispatcher and the worker pool.
// Implementations must be safe for concurrent use.
type Metrics interface {
	PoolSize(current, idle, busy int)
	QueueDepth(n int)
	TaskSubmitted()
	TaskCompleted(d time.Duration)
	TaskPanicked()
	WorkerSpawned()
	WorkerReaped()
	EventDispatched(kind EventKind)
	PollTimeout()
	PollError()
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) PoolSize(int, int, int)      {}
func (NopMetrics) QueueDepth(int)              {}
func (NopMetrics) TaskSubmitted()              {}
func (NopMetrics) TaskCompleted(time.Duration) {}
func (NopMetrics) TaskPanicked()               {}
func (NopMetrics) WorkerSpawned()              {}
func (NopMetrics) WorkerReaped()               {}
func (NopMetrics) EventDispatched(EventKind)   {}
func (NopMetrics) PollTimeout()                {}
func (NopMetrics) PollError()                  {}
