// File: api/sync.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Synchronization primitive contracts consumed by the dispatcher and the pool.

package api

import (
	"context"
	"time"
)

// Mutex is a mutual-exclusion lock.
type Mutex interface {
	Lock()
	Unlock()
	Destroy()
}

// Semaphore is a counting semaphore. Wait blocks until the count is positive
// and decrements it; Post increments it and wakes one waiter.
type Semaphore interface {
	Wait() error
	WaitContext(ctx context.Context) error
	TimedWait(d time.Duration) error
	Post()
	Destroy()
}

// Thread is a handle on a started unit of execution.
type Thread interface {
	ID() uint64
	Cancel()
	Join() error
	Detach()
	Destroy()
}
