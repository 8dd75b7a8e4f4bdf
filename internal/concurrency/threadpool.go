// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WorkerPool: an unbounded task queue drained by an elastic roster of workers.
//
// Two management loops cooperate:
//   - the task manager pairs the head task with the head idle worker,
//   - the population manager grows the pool under backlog, returns finished
//     workers to the idle roster and reaps workers idle for too long.
//
// Lock order is rosterMu before taskMu.

package concurrency

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-mux/api"
	"github.com/momentics/hioload-mux/internal/collection"
	"github.com/rs/zerolog/log"
)

// PoolStats is a point-in-time view of a WorkerPool.
type PoolStats struct {
	Min, Current, Max int
	Idle, Busy        int
	Queued            int
	Submitted         uint64
	Completed         uint64
	Panicked          uint64
	Spawned           uint64
	Reaped            uint64
}

// WorkerPool executes tasks on a roster of workers sized between min and max.
type WorkerPool struct {
	cfg      poolConfig
	min, max int

	rosterMu *Mutex
	idle     *collection.List[*worker]
	busy     *collection.List[*worker]
	cur      int

	taskMu *Mutex
	tasks  *queue.Queue

	hasWork *Semaphore
	hasIdle *Semaphore

	taskManager       *Thread
	populationManager *Thread
	taskStop          atomic.Bool
	populationStop    atomic.Bool

	idleFreeTime atomic.Int64

	closed    atomic.Bool
	closeOnce sync.Once
	unhook    func()

	seq       atomic.Uint64
	submitted atomic.Uint64
	completed atomic.Uint64
	panicked  atomic.Uint64
	spawned   atomic.Uint64
	reaped    atomic.Uint64
}

var _ api.Pool = (*WorkerPool)(nil)

// NewWorkerPool starts a pool with min workers that may grow to max.
// If the pool cannot start min workers or its management loops, the
// partially built pool is torn down and the error returned.
func NewWorkerPool(min, max int, opts ...PoolOption) (*WorkerPool, error) {
	if min < 1 || max < min {
		return nil, fmt.Errorf("new worker pool: min=%d max=%d: %w", min, max, ErrInvalidWorkerCount)
	}
	cfg := poolConfig{
		idleFreeTime:      DefaultIdleFreeTime,
		manageInterval:    DefaultManageInterval,
		populationManager: true,
		logger:            log.Logger,
		metrics:           api.NopMetrics{},
		name:              "pool",
		startThread:       StartThread,
	}
	for _, o := range opts {
		o(&cfg)
	}
	cfg.logger = cfg.logger.With().Str("component", "workerpool").Str("pool", cfg.name).Logger()

	p := &WorkerPool{
		cfg:      cfg,
		min:      min,
		max:      max,
		rosterMu: NewMutex(cfg.logger),
		idle:     collection.New[*worker](),
		busy:     collection.New[*worker](),
		taskMu:   NewMutex(cfg.logger),
		tasks:    queue.New(),
		hasWork:  NewSemaphore(0),
		hasIdle:  NewSemaphore(0),
	}
	p.idleFreeTime.Store(int64(cfg.idleFreeTime))

	if err := p.init(); err != nil {
		p.closed.Store(true)
		p.teardown()
		return nil, err
	}
	if cfg.hooks != nil {
		p.unhook = cfg.hooks.RegisterCloser(cfg.name, p)
	}
	cfg.logger.Debug().Int("min", min).Int("max", max).Msg("worker pool started")
	return p, nil
}

func (p *WorkerPool) init() error {
	for i := 0; i < p.min; i++ {
		if err := p.spawnWorker(); err != nil {
			return fmt.Errorf("%w: spawn worker %d of %d: %w", ErrPoolInitFailed, i+1, p.min, err)
		}
	}
	var err error
	if p.taskManager, err = p.cfg.startThread(p.manageTasks); err != nil {
		return fmt.Errorf("%w: task manager: %w", ErrPoolInitFailed, err)
	}
	if p.cfg.populationManager {
		if p.populationManager, err = p.cfg.startThread(p.managePopulation); err != nil {
			return fmt.Errorf("%w: population manager: %w", ErrPoolInitFailed, err)
		}
	}
	return nil
}

// AddJob enqueues work(arg). The queue is unbounded; when the pool is at
// its ceiling the task simply waits for a worker.
func (p *WorkerPool) AddJob(work api.Task, arg any) error {
	if work == nil {
		return fmt.Errorf("add job: nil work: %w", api.ErrInvalidArgument)
	}
	p.taskMu.Lock()
	if p.closed.Load() {
		p.taskMu.Unlock()
		return ErrPoolClosed
	}
	p.tasks.Add(&job{work: work, arg: arg})
	depth := p.tasks.Length()
	p.hasWork.Post()
	p.taskMu.Unlock()

	p.submitted.Add(1)
	p.cfg.metrics.TaskSubmitted()
	p.cfg.metrics.QueueDepth(depth)
	return nil
}

// Submit adapts a plain func to AddJob.
func (p *WorkerPool) Submit(fn func()) error {
	if fn == nil {
		return fmt.Errorf("submit: nil func: %w", api.ErrInvalidArgument)
	}
	return p.AddJob(func(any) { fn() }, nil)
}

// Size returns the current number of workers.
func (p *WorkerPool) Size() int {
	p.rosterMu.Lock()
	defer p.rosterMu.Unlock()
	return p.cur
}

// SetIdleFreeTime changes the reap threshold of a running pool.
func (p *WorkerPool) SetIdleFreeTime(d time.Duration) {
	if d > 0 {
		p.idleFreeTime.Store(int64(d))
	}
}

// Stats returns a consistent snapshot of rosters and counters.
func (p *WorkerPool) Stats() PoolStats {
	p.rosterMu.Lock()
	p.taskMu.Lock()
	s := PoolStats{
		Min:     p.min,
		Current: p.cur,
		Max:     p.max,
		Idle:    p.idle.Count(),
		Busy:    p.busy.Count(),
		Queued:  p.tasks.Length(),
	}
	p.taskMu.Unlock()
	p.rosterMu.Unlock()

	s.Submitted = p.submitted.Load()
	s.Completed = p.completed.Load()
	s.Panicked = p.panicked.Load()
	s.Spawned = p.spawned.Load()
	s.Reaped = p.reaped.Load()
	return s
}

// Close stops both management loops, cancels every worker and drops
// queued tasks. A task already running is abandoned, not awaited.
func (p *WorkerPool) Close() error {
	p.closeOnce.Do(func() {
		p.taskMu.Lock()
		p.closed.Store(true)
		p.taskMu.Unlock()
		if p.unhook != nil {
			p.unhook()
		}
		p.teardown()
		p.cfg.logger.Debug().Msg("worker pool closed")
	})
	return nil
}

// Shutdown implements api.GracefulShutdown.
func (p *WorkerPool) Shutdown() error { return p.Close() }

func (p *WorkerPool) teardown() {
	p.populationStop.Store(true)
	if p.populationManager != nil {
		p.populationManager.Cancel()
		_ = p.populationManager.Join()
	}

	p.taskStop.Store(true)
	p.hasIdle.Post()
	p.hasWork.Post()
	if p.taskManager != nil {
		p.taskManager.Cancel()
		_ = p.taskManager.Join()
	}

	type victim struct {
		w    *worker
		wait bool
	}
	var victims []victim
	p.rosterMu.Lock()
	for w, ok := p.idle.Top(); ok; w, ok = p.idle.Top() {
		victims = append(victims, victim{w, true})
		p.cur--
	}
	for w, ok := p.busy.Top(); ok; w, ok = p.busy.Top() {
		victims = append(victims, victim{w, w.state == WorkerIdle})
		p.cur--
	}
	p.rosterMu.Unlock()

	for _, v := range victims {
		v.w.halt(v.wait)
		v.w.release()
	}

	p.taskMu.Lock()
	dropped := p.tasks.Length()
	for p.tasks.Length() > 0 {
		p.tasks.Remove()
	}
	p.taskMu.Unlock()
	if dropped > 0 {
		p.cfg.logger.Debug().Int("dropped", dropped).Msg("queued tasks discarded")
	}

	p.hasWork.Destroy()
	p.hasIdle.Destroy()
	p.rosterMu.Destroy()
	p.taskMu.Destroy()
	p.cfg.metrics.QueueDepth(0)
	p.cfg.metrics.PoolSize(0, 0, 0)
}

// spawnWorker starts one idle worker and announces it on hasIdle.
func (p *WorkerPool) spawnWorker() error {
	now := time.Now()
	w := &worker{
		id:        p.seq.Add(1),
		state:     WorkerIdle,
		mu:        NewMutex(p.cfg.logger),
		wake:      NewSemaphore(0),
		createdAt: now,
		idleSince: now,
		pool:      p,
	}
	th, err := p.cfg.startThread(w.run)
	if err != nil {
		w.release()
		return err
	}
	w.thread = th

	p.rosterMu.Lock()
	p.idle.InsertLast(w)
	p.cur++
	cur, idle, busy := p.cur, p.idle.Count(), p.busy.Count()
	p.rosterMu.Unlock()
	p.hasIdle.Post()

	p.spawned.Add(1)
	p.cfg.metrics.WorkerSpawned()
	p.cfg.metrics.PoolSize(cur, idle, busy)
	p.cfg.logger.Debug().Uint64("worker", w.id).Int("size", cur).Msg("worker spawned")
	return nil
}

func (p *WorkerPool) execute(w *worker, t *job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			p.cfg.metrics.TaskPanicked()
			p.cfg.logger.Warn().Uint64("worker", w.id).Interface("panic", r).Msg("task panicked")
		}
		p.completed.Add(1)
		p.cfg.metrics.TaskCompleted(time.Since(start))
	}()
	t.work(t.arg)
}

// manageTasks pairs work tokens with idle tokens. The idle head and the
// task head are taken in one roster-lock critical section, so a worker is
// never handed a task while it sits in the busy roster.
func (p *WorkerPool) manageTasks(ctx context.Context) {
	for !p.taskStop.Load() {
		if err := p.hasWork.WaitContext(ctx); err != nil {
			return
		}
		if err := p.hasIdle.WaitContext(ctx); err != nil {
			return
		}
		if p.taskStop.Load() {
			return
		}

		p.rosterMu.Lock()
		w, ok := p.idle.Peek()
		if !ok {
			p.rosterMu.Unlock()
			// stale idle token (worker reaped); keep the work token for the next idle one
			p.hasWork.Post()
			continue
		}
		p.taskMu.Lock()
		if p.tasks.Length() == 0 {
			p.taskMu.Unlock()
			p.rosterMu.Unlock()
			p.hasIdle.Post()
			continue
		}
		t := p.tasks.Remove().(*job)
		depth := p.tasks.Length()
		p.taskMu.Unlock()

		p.idle.Top()
		w.task = t
		w.state = WorkerWorking
		p.busy.InsertLast(w)
		cur, idle, busy := p.cur, p.idle.Count(), p.busy.Count()
		p.rosterMu.Unlock()

		w.wake.Post()
		p.cfg.metrics.QueueDepth(depth)
		p.cfg.metrics.PoolSize(cur, idle, busy)
	}
}

// managePopulation runs the elasticity policy every manage interval.
func (p *WorkerPool) managePopulation(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.manageInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if p.populationStop.Load() {
				return
			}
			p.tick(now)
		}
	}
}

func (p *WorkerPool) tick(now time.Time) {
	p.taskMu.Lock()
	queued := p.tasks.Length()
	p.taskMu.Unlock()

	if queued > 1 && p.Size() < p.max {
		if err := p.spawnWorker(); err != nil {
			p.cfg.logger.Error().Err(err).Msg("grow pool")
		}
		return
	}

	for moved := p.reconcile(); moved > 0; moved-- {
		p.hasIdle.Post()
	}

	p.reap(now)
}

// reconcile moves finished workers from the busy to the idle roster.
func (p *WorkerPool) reconcile() int {
	p.rosterMu.Lock()
	defer p.rosterMu.Unlock()
	moved := 0
	e := p.busy.Enumerate()
	for w, ok := e.Next(); ok; w, ok = e.Next() {
		if w.state != WorkerIdle || w.task != nil {
			continue
		}
		e.RemoveCurrent()
		p.idle.InsertLast(w)
		moved++
	}
	return moved
}

// returnToIdle is the self-reconcile path used when the population manager is off.
func (p *WorkerPool) returnToIdle(w *worker) {
	p.rosterMu.Lock()
	if p.closed.Load() || w.stop.Load() {
		p.rosterMu.Unlock()
		return
	}
	removed := p.busy.Remove(func(x *worker) bool { return x == w })
	if removed > 0 {
		p.idle.InsertLast(w)
	}
	p.rosterMu.Unlock()
	if removed > 0 {
		p.hasIdle.Post()
	}
}

// reap tears down idle workers past the free time, never going below min.
func (p *WorkerPool) reap(now time.Time) {
	free := time.Duration(p.idleFreeTime.Load())
	var victims []*worker

	p.rosterMu.Lock()
	if p.cur <= p.min {
		p.rosterMu.Unlock()
		return
	}
	e := p.idle.Enumerate()
	for w, ok := e.Next(); ok && p.cur > p.min; w, ok = e.Next() {
		if now.Sub(w.idleSince) < free {
			continue
		}
		e.RemoveCurrent()
		p.cur--
		victims = append(victims, w)
	}
	cur, idle, busy := p.cur, p.idle.Count(), p.busy.Count()
	p.rosterMu.Unlock()

	for _, w := range victims {
		w.halt(true)
		w.release()
		p.reaped.Add(1)
		p.cfg.metrics.WorkerReaped()
		p.cfg.logger.Debug().Uint64("worker", w.id).Int("size", cur).Msg("idle worker reaped")
	}
	if len(victims) > 0 {
		p.cfg.metrics.PoolSize(cur, idle, busy)
	}
}
