// File: adapters/handler_adapter.go
// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Dispatcher handler middleware: chaining, logging, panic recovery, metrics
// and offloading to a worker pool.

package adapters

import (
	"github.com/momentics/hioload-mux/api"
	"github.com/rs/zerolog"
)

// Middleware wraps an api.Handler.
type Middleware func(api.Handler) api.Handler

// Chain applies middleware so that the first one listed runs outermost.
func Chain(h api.Handler, mw ...Middleware) api.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// LoggingMiddleware logs each invocation at debug level.
func LoggingMiddleware(logger zerolog.Logger, kind api.EventKind) Middleware {
	return func(next api.Handler) api.Handler {
		return func(fd int, arg any) {
			logger.Debug().Int("fd", fd).Stringer("kind", kind).Msg("handler invoked")
			next(fd, arg)
		}
	}
}

// RecoveryMiddleware recovers from panics in handler.
func RecoveryMiddleware(logger zerolog.Logger) Middleware {
	return func(next api.Handler) api.Handler {
		return func(fd int, arg any) {
			defer func() {
				if r := recover(); r != nil {
					logger.Warn().Interface("panic", r).Int("fd", fd).Msg("handler panic recovered")
				}
			}()
			next(fd, arg)
		}
	}
}

// MetricsMiddleware counts invocations as dispatches of kind.
func MetricsMiddleware(m api.Metrics, kind api.EventKind) Middleware {
	return func(next api.Handler) api.Handler {
		return func(fd int, arg any) {
			m.EventDispatched(kind)
			next(fd, arg)
		}
	}
}

// OffloadMiddleware runs the handler on pool instead of the polling thread.
// The descriptor's readiness must not depend on the handler: a Receive
// handler offloaded this way fires again until the data is read.
func OffloadMiddleware(pool api.Pool, logger zerolog.Logger) Middleware {
	return func(next api.Handler) api.Handler {
		return func(fd int, arg any) {
			err := pool.AddJob(func(any) { next(fd, arg) }, nil)
			if err != nil {
				logger.Warn().Err(err).Int("fd", fd).Msg("handler offload rejected")
			}
		}
	}
}
