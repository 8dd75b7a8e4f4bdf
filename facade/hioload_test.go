package facade_test

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-mux/api"
	"github.com/momentics/hioload-mux/control"
	"github.com/momentics/hioload-mux/facade"
	"github.com/momentics/hioload-mux/fake"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *facade.Config {
	cfg := facade.DefaultConfig()
	cfg.Dispatcher.Timeout = control.Duration{Duration: 20 * time.Millisecond}
	cfg.Pool.MinSize = 1
	cfg.Pool.MaxSize = 2
	cfg.Pool.ManageInterval = control.Duration{Duration: 10 * time.Millisecond}
	return cfg
}

// Full lifecycle: a dispatched event offloads work into the pool, metrics
// and probes observe it, and Close tears everything down.
func TestMuxFullLifecycle(t *testing.T) {
	sel := fake.NewSelector()
	m, err := facade.New(testConfig(), facade.WithSelector(sel), facade.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	ran := make(chan int, 1)
	require.NoError(t, m.Add(3, api.EventReceive, m.Offload(func(fd int, _ any) { ran <- fd }), nil))
	sel.SetAvailable(3, 4)
	sel.Push(fake.Step{Ready: []int{3}})

	select {
	case fd := <-ran:
		assert.Equal(t, 3, fd)
	case <-time.After(2 * time.Second):
		t.Fatal("offloaded handler did not run")
	}

	stats := m.GetControl().Stats()
	assert.Equal(t, 1, stats["debug.reactor.registrations"])
	assert.Equal(t, true, stats["debug.reactor.running"])
	assert.Contains(t, stats, "debug.pool.stats")
	assert.EqualValues(t, 1, stats[control.DispatchKey(api.EventReceive)])
	assert.GreaterOrEqual(t, m.Hooks().Len(), 2)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	<-m.Done()
	assert.True(t, sel.Closed())
	assert.ErrorIs(t, m.Submit(func() {}), api.ErrClosed)
	assert.ErrorIs(t, m.Add(3, api.EventReceive, func(int, any) {}, nil), api.ErrClosed)
	assert.Zero(t, m.Pool().Size())
}

func TestMuxRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Pool.MaxSize = 0
	_, err := facade.New(cfg, facade.WithSelector(fake.NewSelector()))
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestMuxPrometheusMetrics(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Namespace = "facade"
	reg := prom.NewRegistry()
	m, err := facade.New(cfg, facade.WithSelector(fake.NewSelector()),
		facade.WithLogger(zerolog.Nop()), facade.WithRegisterer(reg))
	require.NoError(t, err)
	defer m.Close()

	var done atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, m.AddJob(func(any) { done.Add(1) }, nil))
	}
	require.Eventually(t, func() bool { return done.Load() == 5 }, 2*time.Second, time.Millisecond)
	assert.Eventually(t, func() bool {
		mfs, err := reg.Gather()
		if err != nil {
			return false
		}
		for _, mf := range mfs {
			if mf.GetName() == "facade_pool_task_duration_seconds" {
				return mf.GetMetric()[0].GetHistogram().GetSampleCount() == 5
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "facade_pool_tasks_submitted_total"))
}

func TestMuxTimeoutCallback(t *testing.T) {
	m, err := facade.New(testConfig(), facade.WithSelector(fake.NewSelector()), facade.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer m.Close()

	var ticks atomic.Int32
	m.SetExceptionHandler(api.ExceptionTimeout, func(any) { ticks.Add(1) }, nil)
	assert.Eventually(t, func() bool { return ticks.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, m.Delete(3, api.EventReceive))
}

func TestMuxHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mux.toml")
	write := func(body string) {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	write("[pool]\nmin_size = 1\nmax_size = 2\nidle_free_time = \"1h\"\nmanage_interval = \"10ms\"\n")

	cfg, err := facade.LoadConfig(path)
	require.NoError(t, err)
	cfg.ReloadInterval = 5 * time.Millisecond
	m, err := facade.New(cfg, facade.WithSelector(fake.NewSelector()), facade.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer m.Close()

	block := make(chan struct{})
	for i := 0; i < 4; i++ {
		require.NoError(t, m.Submit(func() { <-block }))
	}
	require.Eventually(t, func() bool { return m.Pool().Size() == 2 }, 2*time.Second, 5*time.Millisecond)
	close(block)

	write("[pool]\nmin_size = 1\nmax_size = 2\nidle_free_time = \"20ms\"\nmanage_interval = \"10ms\"\n")
	assert.Eventually(t, func() bool { return m.Pool().Size() == 1 }, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, m.GetControl().GetConfig().Pool.IdleFreeTime.Duration)
}
