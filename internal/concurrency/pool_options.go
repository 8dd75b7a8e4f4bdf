// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Functional options for WorkerPool.

package concurrency

import (
	"time"

	"github.com/momentics/hioload-mux/api"
	"github.com/momentics/hioload-mux/shutdown"
	"github.com/rs/zerolog"
)

const (
	// DefaultIdleFreeTime is how long a surplus worker may stay idle before it is reaped.
	DefaultIdleFreeTime = 10 * time.Second

	// DefaultManageInterval is the population manager tick.
	DefaultManageInterval = 100 * time.Millisecond
)

type poolConfig struct {
	idleFreeTime      time.Duration
	manageInterval    time.Duration
	populationManager bool
	logger            zerolog.Logger
	metrics           api.Metrics
	hooks             *shutdown.Hooks
	name              string
	startThread       func(ThreadMain, ...ThreadOption) (*Thread, error)
}

// PoolOption customizes WorkerPool construction.
type PoolOption func(*poolConfig)

// WithIdleFreeTime sets how long a worker above the minimum may stay idle.
func WithIdleFreeTime(d time.Duration) PoolOption {
	return func(c *poolConfig) {
		if d > 0 {
			c.idleFreeTime = d
		}
	}
}

// WithManageInterval sets the population manager tick.
func WithManageInterval(d time.Duration) PoolOption {
	return func(c *poolConfig) {
		if d > 0 {
			c.manageInterval = d
		}
	}
}

// WithPopulationManager enables or disables elastic resizing. Without it
// the pool stays at its minimum size and workers return themselves to the
// idle roster after each task.
func WithPopulationManager(enabled bool) PoolOption {
	return func(c *poolConfig) { c.populationManager = enabled }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l zerolog.Logger) PoolOption {
	return func(c *poolConfig) { c.logger = l }
}

// WithMetrics sets the telemetry sink.
func WithMetrics(m api.Metrics) PoolOption {
	return func(c *poolConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithShutdownHooks registers the pool's Close with hooks for signal-driven teardown.
func WithShutdownHooks(h *shutdown.Hooks) PoolOption {
	return func(c *poolConfig) { c.hooks = h }
}

// WithName labels log lines and the shutdown hook.
func WithName(name string) PoolOption {
	return func(c *poolConfig) { c.name = name }
}

func withThreadStarter(fn func(ThreadMain, ...ThreadOption) (*Thread, error)) PoolOption {
	return func(c *poolConfig) { c.startThread = fn }
}
