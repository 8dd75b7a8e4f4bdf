// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"
)

// WorkerState is the execution state of a pooled worker.
type WorkerState int32

const (
	WorkerIdle WorkerState = iota
	WorkerWorking
)

func (s WorkerState) String() string {
	if s == WorkerWorking {
		return "working"
	}
	return "idle"
}

type job struct {
	work func(arg any)
	arg  any
}

// worker is a pooled goroutine. state, task and idleSince are guarded by
// the pool roster lock; mu is held for the whole execution of a task.
type worker struct {
	id        uint64
	state     WorkerState
	task      *job
	mu        *Mutex
	wake      *Semaphore
	thread    *Thread
	stop      atomic.Bool
	createdAt time.Time
	idleSince time.Time
	pool      *WorkerPool
}

func (w *worker) run(ctx context.Context) {
	p := w.pool
	for !w.stop.Load() {
		if err := w.wake.WaitContext(ctx); err != nil {
			return
		}
		if w.stop.Load() {
			return
		}

		p.rosterMu.Lock()
		t := w.task
		p.rosterMu.Unlock()
		if t == nil {
			// spurious wake: hand the token back and let the next wait consume it
			w.wake.Post()
			runtime.Gosched()
			continue
		}

		w.mu.Lock()
		p.rosterMu.Lock()
		w.state = WorkerWorking
		p.rosterMu.Unlock()

		p.execute(w, t)

		p.rosterMu.Lock()
		w.task = nil
		w.idleSince = time.Now()
		w.state = WorkerIdle
		p.rosterMu.Unlock()
		w.mu.Unlock()

		if !p.cfg.populationManager {
			p.returnToIdle(w)
		}
	}
}

// halt stops the worker. Idle workers are joined; a worker still inside a
// task is detached and its outcome discarded.
func (w *worker) halt(wait bool) {
	w.stop.Store(true)
	if w.thread == nil {
		return
	}
	w.thread.Cancel()
	w.wake.Post()
	if wait {
		_ = w.thread.Join()
	} else {
		w.thread.Detach()
	}
}

func (w *worker) release() {
	w.wake.Destroy()
	w.mu.Destroy()
}
