// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-mux/api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, min, max int, opts ...PoolOption) *WorkerPool {
	t.Helper()
	opts = append([]PoolOption{
		WithLogger(zerolog.Nop()),
		WithManageInterval(10 * time.Millisecond),
	}, opts...)
	p, err := NewWorkerPool(min, max, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestWorkerPool_InvalidSizes(t *testing.T) {
	for _, tc := range []struct{ min, max int }{{0, 1}, {-1, 4}, {3, 2}} {
		_, err := NewWorkerPool(tc.min, tc.max)
		assert.ErrorIs(t, err, ErrInvalidWorkerCount)
		assert.ErrorIs(t, err, api.ErrInvalidArgument)
	}
}

func TestWorkerPool_AddJobNil(t *testing.T) {
	p := newTestPool(t, 1, 1)
	assert.ErrorIs(t, p.AddJob(nil, nil), api.ErrInvalidArgument)
}

func TestWorkerPool_DeliversEveryTaskOnce(t *testing.T) {
	p := newTestPool(t, 2, 4)
	const n = 200
	var (
		mu   sync.Mutex
		hits = make(map[int]int, n)
	)
	for i := 0; i < n; i++ {
		require.NoError(t, p.AddJob(func(arg any) {
			mu.Lock()
			hits[arg.(int)]++
			mu.Unlock()
		}, i))
	}
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(hits) == n
	}, 10*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < n; i++ {
		assert.Equal(t, 1, hits[i], "task %d", i)
	}
	assert.EqualValues(t, n, p.Stats().Submitted)
}

func TestWorkerPool_SizeBoundsAndPartition(t *testing.T) {
	p := newTestPool(t, 2, 4, WithIdleFreeTime(30*time.Millisecond))
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			s := p.Stats()
			assert.GreaterOrEqual(t, s.Current, s.Min)
			assert.LessOrEqual(t, s.Current, s.Max)
			assert.Equal(t, s.Current, s.Idle+s.Busy)
			time.Sleep(time.Millisecond)
		}
	}()

	for i := 0; i < 50; i++ {
		require.NoError(t, p.Submit(func() { time.Sleep(2 * time.Millisecond) }))
	}
	assert.Eventually(t, func() bool { return p.Stats().Completed == 50 }, 10*time.Second, 5*time.Millisecond)
	close(stop)
	wg.Wait()
}

// min=2 max=4: a burst of fast tasks completes and the pool shrinks back
// to its floor once the surplus workers have been idle long enough.
func TestWorkerPool_GrowsAndShrinksBackToMin(t *testing.T) {
	p := newTestPool(t, 2, 4, WithIdleFreeTime(100*time.Millisecond))
	var done atomic.Int32
	block := make(chan struct{})
	for i := 0; i < 10; i++ {
		require.NoError(t, p.AddJob(func(any) {
			<-block
			done.Add(1)
		}, nil))
	}
	assert.Eventually(t, func() bool { return p.Size() == 4 }, 5*time.Second, 5*time.Millisecond)
	close(block)

	assert.Eventually(t, func() bool { return done.Load() == 10 }, 5*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return p.Size() == 2 }, 5*time.Second, 10*time.Millisecond)
	s := p.Stats()
	assert.EqualValues(t, 2, s.Spawned-s.Reaped)
	assert.Equal(t, 2, s.Idle+s.Busy)
}

// min=max=1: tasks never overlap.
func TestWorkerPool_SingleWorkerIsSequential(t *testing.T) {
	p := newTestPool(t, 1, 1)
	var (
		running, overlap atomic.Int32
		order            []int
		mu               sync.Mutex
		wg               sync.WaitGroup
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		require.NoError(t, p.AddJob(func(arg any) {
			defer wg.Done()
			if running.Add(1) > 1 {
				overlap.Add(1)
			}
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			order = append(order, arg.(int))
			mu.Unlock()
			running.Add(-1)
		}, i))
	}
	wg.Wait()
	assert.Zero(t, overlap.Load())
	assert.Equal(t, []int{0, 1, 2}, order)
	assert.Equal(t, 1, p.Size())
}

func TestWorkerPool_WithoutPopulationManager(t *testing.T) {
	p := newTestPool(t, 2, 8, WithPopulationManager(false))
	var n atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, p.Submit(func() { n.Add(1) }))
	}
	assert.Eventually(t, func() bool { return n.Load() == 20 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, 2, p.Size())
}

func TestWorkerPool_PanicDoesNotKillWorker(t *testing.T) {
	p := newTestPool(t, 1, 1)
	require.NoError(t, p.Submit(func() { panic("task failure") }))
	ok := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(ok) }))
	select {
	case <-ok:
	case <-time.After(5 * time.Second):
		t.Fatal("worker died after task panic")
	}
	assert.EqualValues(t, 1, p.Stats().Panicked)
}

func TestWorkerPool_CloseDropsQueueAndRejects(t *testing.T) {
	p, err := NewWorkerPool(1, 1, WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(started); <-release }))
	<-started
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(func() { ran.Add(1) }))
	}

	closed := make(chan struct{})
	go func() { _ = p.Close(); close(closed) }()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close waited for an in-flight task")
	}
	close(release)

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
	assert.ErrorIs(t, p.Submit(func() {}), api.ErrClosed)
	require.NoError(t, p.Close())
	assert.Zero(t, p.Size())
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, ran.Load())
}

func TestWorkerPool_InitFailureTearsDown(t *testing.T) {
	var calls atomic.Int32
	var started []*Thread
	var mu sync.Mutex
	starter := func(main ThreadMain, opts ...ThreadOption) (*Thread, error) {
		if calls.Add(1) == 3 {
			return nil, errors.New("no more threads")
		}
		th, err := StartThread(main, opts...)
		mu.Lock()
		started = append(started, th)
		mu.Unlock()
		return th, err
	}
	p, err := NewWorkerPool(3, 3, WithLogger(zerolog.Nop()), withThreadStarter(starter))
	require.Error(t, err)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrPoolInitFailed)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, started, 2)
	for _, th := range started {
		select {
		case <-th.Done():
		case <-time.After(time.Second):
			t.Fatal("worker of failed pool still running")
		}
	}
}

func TestWorkerPool_ManagerStartFailure(t *testing.T) {
	var calls atomic.Int32
	starter := func(main ThreadMain, opts ...ThreadOption) (*Thread, error) {
		// 2 workers, then task manager fails
		if calls.Add(1) == 3 {
			return nil, errors.New("manager refused")
		}
		return StartThread(main, opts...)
	}
	_, err := NewWorkerPool(2, 2, WithLogger(zerolog.Nop()), withThreadStarter(starter))
	assert.ErrorIs(t, err, ErrPoolInitFailed)
}

func TestWorkerPool_SetIdleFreeTime(t *testing.T) {
	p := newTestPool(t, 1, 2, WithIdleFreeTime(time.Hour))
	block := make(chan struct{})
	for i := 0; i < 4; i++ {
		require.NoError(t, p.Submit(func() { <-block }))
	}
	assert.Eventually(t, func() bool { return p.Size() == 2 }, 5*time.Second, 5*time.Millisecond)
	close(block)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, p.Size())

	p.SetIdleFreeTime(20 * time.Millisecond)
	assert.Eventually(t, func() bool { return p.Size() == 1 }, 5*time.Second, 5*time.Millisecond)
}
