// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thread wraps a goroutine with start/cancel/join/detach semantics.

package concurrency

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-mux/api"
)

var threadSeq atomic.Uint64

// ThreadMain is the body of a Thread. It must return once ctx is cancelled.
type ThreadMain func(ctx context.Context)

// Thread is a started goroutine. Cancel is cooperative: it cancels the
// context passed to main; a main that ignores ctx keeps running.
type Thread struct {
	id       uint64
	cancel   context.CancelFunc
	done     chan struct{}
	detached atomic.Bool
	panicked atomic.Value
}

var _ api.Thread = (*Thread)(nil)

// ThreadOption tunes StartThread.
type ThreadOption func(*threadOptions)

type threadOptions struct {
	lockOSThread bool
	cpu          int
	parent       context.Context
}

// WithOSThread pins the goroutine to its OS thread for its whole life.
// Used for loops that spend most of their time in blocking syscalls.
func WithOSThread() ThreadOption {
	return func(o *threadOptions) { o.lockOSThread = true }
}

// WithCPU locks the goroutine to its OS thread and binds that thread to
// cpu. A negative cpu leaves affinity alone. The OS thread is discarded
// when main returns rather than going back to the scheduler pinned.
func WithCPU(cpu int) ThreadOption {
	return func(o *threadOptions) {
		o.cpu = cpu
		if cpu >= 0 {
			o.lockOSThread = true
		}
	}
}

// WithParent derives the thread context from ctx.
func WithParent(ctx context.Context) ThreadOption {
	return func(o *threadOptions) { o.parent = ctx }
}

// StartThread runs main on a new goroutine.
func StartThread(main ThreadMain, opts ...ThreadOption) (*Thread, error) {
	if main == nil {
		return nil, fmt.Errorf("start thread: nil main: %w", api.ErrInvalidArgument)
	}
	o := threadOptions{parent: context.Background(), cpu: -1}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(o.parent)
	t := &Thread{
		id:     threadSeq.Add(1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	pinned := make(chan error, 1)
	go func() {
		if o.lockOSThread {
			runtime.LockOSThread()
			if o.cpu < 0 {
				defer runtime.UnlockOSThread()
			}
		}
		defer close(t.done)
		if o.cpu >= 0 {
			if err := pinCurrentThread(o.cpu); err != nil {
				pinned <- err
				return
			}
		}
		pinned <- nil
		defer func() {
			if r := recover(); r != nil {
				t.panicked.Store(fmt.Sprint(r))
			}
		}()
		main(ctx)
	}()
	if err := <-pinned; err != nil {
		cancel()
		return nil, fmt.Errorf("start thread: pin to cpu %d: %w", o.cpu, err)
	}
	return t, nil
}

// ID returns the process-unique thread identifier.
func (t *Thread) ID() uint64 { return t.id }

// Cancel requests the thread to stop.
func (t *Thread) Cancel() { t.cancel() }

// Done is closed once main has returned.
func (t *Thread) Done() <-chan struct{} { return t.done }

// Join waits for main to return.
func (t *Thread) Join() error {
	if t.detached.Load() {
		return ErrThreadDetached
	}
	<-t.done
	return nil
}

// JoinTimeout waits at most d and reports whether main returned.
func (t *Thread) JoinTimeout(d time.Duration) bool {
	if t.detached.Load() {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.done:
		return true
	case <-timer.C:
		return false
	}
}

// Detach gives up the right to Join.
func (t *Thread) Detach() { t.detached.Store(true) }

// Destroy cancels the thread without waiting for it.
func (t *Thread) Destroy() {
	t.cancel()
	t.Detach()
}

// Panic returns the recovered panic value of main, if any.
func (t *Thread) Panic() (string, bool) {
	v, ok := t.panicked.Load().(string)
	return v, ok
}
