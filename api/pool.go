// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Worker pool contract: an unbounded task queue drained by an elastic set of workers.

package api

// Pool executes queued tasks asynchronously on pooled workers.
type Pool interface {
	// AddJob enqueues work(arg). It never blocks on capacity; the queue is unbounded.
	AddJob(work Task, arg any) error

	// Close stops the management loops, cancels every worker and drops queued tasks.
	Close() error
}
