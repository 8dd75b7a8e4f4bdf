// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package concurrency holds the synchronization primitives and the elastic
// worker pool that runs deferred work for the dispatcher.
//
// Mutex, Semaphore and Thread are thin, logged wrappers over the runtime
// scheduler. WorkerPool keeps an idle and a busy roster of workers, a FIFO
// task queue, a task manager that pairs queued tasks with idle workers and
// an optional population manager that grows the pool under backlog and
// reaps workers that stayed idle longer than the configured free time.
package concurrency
