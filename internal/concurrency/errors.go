// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error definitions for concurrency module.

package concurrency

import (
	"errors"
	"fmt"

	"github.com/momentics/hioload-mux/api"
)

var (
	// ErrPoolClosed indicates the pool has been shut down.
	ErrPoolClosed = fmt.Errorf("worker pool is closed: %w", api.ErrClosed)

	// ErrPoolInitFailed wraps the start-up failure returned by NewWorkerPool.
	ErrPoolInitFailed = errors.New("worker pool initialization failed")

	// ErrInvalidWorkerCount indicates invalid worker count configuration.
	ErrInvalidWorkerCount = fmt.Errorf("invalid worker count: %w", api.ErrInvalidArgument)

	// ErrSemaphoreDestroyed is returned to waiters of a destroyed semaphore.
	ErrSemaphoreDestroyed = errors.New("semaphore destroyed")

	// ErrSemaphoreTimeout is returned by TimedWait when the count stays zero.
	ErrSemaphoreTimeout = errors.New("semaphore wait timed out")

	// ErrThreadDetached is returned by Join on a detached thread.
	ErrThreadDetached = errors.New("thread is detached")
)
