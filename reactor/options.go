// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"github.com/momentics/hioload-mux/api"
	"github.com/momentics/hioload-mux/shutdown"
	"github.com/rs/zerolog"
)

type options struct {
	logger   *zerolog.Logger
	metrics  api.Metrics
	selector Selector
	hooks    *shutdown.Hooks
	cpu      int
}

// Option customizes a Dispatcher.
type Option func(*options)

// WithLogger sets the dispatcher logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// WithMetrics reports dispatches, poll timeouts and poll errors to m.
func WithMetrics(m api.Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithSelector replaces the platform selector. The dispatcher takes ownership
// and closes it on Close.
func WithSelector(s Selector) Option {
	return func(o *options) { o.selector = s }
}

// WithShutdownHooks registers the dispatcher's Close with h.
func WithShutdownHooks(h *shutdown.Hooks) Option {
	return func(o *options) { o.hooks = h }
}

// WithCPU binds the polling thread to cpu. Negative values disable pinning.
func WithCPU(cpu int) Option {
	return func(o *options) { o.cpu = cpu }
}
