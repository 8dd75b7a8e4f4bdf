// File: facade/hioload.go
// Unified facade layer for hioload-mux.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Mux aggregates the event dispatcher, the worker pool, metrics, debug
// probes and shutdown hooks behind a single value built from one Config.

package facade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/momentics/hioload-mux/adapters"
	"github.com/momentics/hioload-mux/api"
	"github.com/momentics/hioload-mux/control"
	"github.com/momentics/hioload-mux/internal/concurrency"
	"github.com/momentics/hioload-mux/reactor"
	"github.com/momentics/hioload-mux/shutdown"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the parameters of one Mux.
type Config struct {
	control.Config

	ConfigPath     string        // TOML file watched for hot reload; empty disables watching
	ReloadInterval time.Duration // How often ConfigPath is polled
	HandleSignals  bool          // Run shutdown hooks on SIGINT/SIGTERM
	ExitOnSignal   bool          // Exit the process after the hooks ran
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		Config:         control.DefaultConfig(),
		ReloadInterval: time.Second,
	}
}

// LoadConfig reads path into a Config and enables watching it.
func LoadConfig(path string) (*Config, error) {
	base, err := control.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	cfg.Config = base
	cfg.ConfigPath = path
	return cfg, nil
}

type options struct {
	logger     *zerolog.Logger
	selector   reactor.Selector
	registerer prom.Registerer
}

// Option customizes New.
type Option func(*options)

// WithLogger sets the root logger; components derive from it.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.logger = &l } }

// WithSelector replaces the platform selector of the dispatcher.
func WithSelector(s reactor.Selector) Option { return func(o *options) { o.selector = s } }

// WithRegisterer sets the Prometheus registerer used when metrics are enabled.
func WithRegisterer(r prom.Registerer) Option { return func(o *options) { o.registerer = r } }

// Mux is the main facade type.
type Mux struct {
	config     *Config
	log        zerolog.Logger
	control    *adapters.ControlAdapter
	metrics    api.Metrics
	hooks      *shutdown.Hooks
	pool       *concurrency.WorkerPool
	dispatcher *reactor.Dispatcher

	stopSignals func()
	stopWatch   context.CancelFunc
	watchDone   chan struct{}

	mu     sync.Mutex
	closed bool
}

var (
	_ api.GracefulShutdown = (*Mux)(nil)
	_ api.Dispatcher       = (*Mux)(nil)
	_ api.Pool             = (*Mux)(nil)
)

// New builds the pool first, then the dispatcher, so handlers can offload
// work from the first event on. A failure tears down whatever was built.
func New(cfg *Config, opts ...Option) (*Mux, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("facade: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	m := &Mux{config: cfg}
	if o.logger != nil {
		m.log = *o.logger
	} else {
		m.log = log.Logger
	}
	m.control = adapters.NewControlAdapter(cfg.Config)
	m.hooks = shutdown.New(m.log.With().Str("component", "shutdown").Logger())

	m.metrics = m.control.Metrics()
	if cfg.Metrics.Enabled {
		pm, err := control.NewPrometheusMetrics(cfg.Metrics.Namespace, o.registerer)
		if err != nil {
			return nil, fmt.Errorf("facade: metrics: %w", err)
		}
		m.metrics = control.MultiMetrics{m.control.Metrics(), pm}
	}

	pc := cfg.Pool
	pool, err := concurrency.NewWorkerPool(pc.MinSize, pc.MaxSize,
		concurrency.WithIdleFreeTime(pc.IdleFreeTime.Duration),
		concurrency.WithManageInterval(pc.ManageInterval.Duration),
		concurrency.WithPopulationManager(pc.PopulationManager),
		concurrency.WithLogger(m.log.With().Str("component", "pool").Logger()),
		concurrency.WithMetrics(m.metrics),
		concurrency.WithShutdownHooks(m.hooks),
		concurrency.WithName("mux"),
	)
	if err != nil {
		return nil, fmt.Errorf("facade: pool: %w", err)
	}
	m.pool = pool

	ropts := []reactor.Option{
		reactor.WithLogger(m.log.With().Str("component", "reactor").Logger()),
		reactor.WithMetrics(m.metrics),
		reactor.WithShutdownHooks(m.hooks),
		reactor.WithCPU(cfg.Dispatcher.CPU),
	}
	if o.selector != nil {
		ropts = append(ropts, reactor.WithSelector(o.selector))
	}
	d, err := reactor.New(reactor.Config{
		Timeout:    cfg.Dispatcher.Timeout.Duration,
		WatchWrite: cfg.Dispatcher.WatchWrite,
	}, ropts...)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("facade: dispatcher: %w", err)
	}
	m.dispatcher = d

	m.control.OnReload(func(c control.Config) {
		m.pool.SetIdleFreeTime(c.Pool.IdleFreeTime.Duration)
		m.log.Info().Dur("idle_free_time", c.Pool.IdleFreeTime.Duration).Msg("pool reconfigured")
	})
	m.control.RegisterDebugProbe("pool.stats", func() any { return m.pool.Stats() })
	m.control.RegisterDebugProbe("reactor.registrations", func() any { return m.dispatcher.Len() })
	m.control.RegisterDebugProbe("reactor.running", func() any { return m.dispatcher.Running() })

	if cfg.ConfigPath != "" {
		ctx, cancel := context.WithCancel(context.Background())
		m.stopWatch = cancel
		m.watchDone = make(chan struct{})
		go func() {
			defer close(m.watchDone)
			control.WatchFile(ctx, m.control.Store(), cfg.ConfigPath, cfg.ReloadInterval, m.log)
		}()
	}
	if cfg.HandleSignals {
		m.stopSignals = m.hooks.Listen(context.Background(), cfg.ExitOnSignal)
	}
	return m, nil
}

// Add registers h with the dispatcher.
func (m *Mux) Add(fd int, kind api.EventKind, h api.Handler, arg any) error {
	return m.dispatcher.Add(fd, kind, h, arg)
}

// Delete removes a dispatcher registration.
func (m *Mux) Delete(fd int, kind api.EventKind) error {
	return m.dispatcher.Delete(fd, kind)
}

// SetExceptionHandler installs a dispatcher timeout or error callback.
func (m *Mux) SetExceptionHandler(kind api.ExceptionKind, h api.ExceptionHandler, arg any) {
	m.dispatcher.SetExceptionHandler(kind, h, arg)
}

// AddJob enqueues work on the pool.
func (m *Mux) AddJob(work api.Task, arg any) error {
	return m.pool.AddJob(work, arg)
}

// Submit enqueues fn on the pool.
func (m *Mux) Submit(fn func()) error {
	return m.pool.Submit(fn)
}

// Offload wraps h so that it runs on the pool instead of the polling thread.
func (m *Mux) Offload(h api.Handler) api.Handler {
	return adapters.Chain(h, adapters.OffloadMiddleware(m.pool, m.log))
}

// Dispatcher returns the event dispatcher.
func (m *Mux) Dispatcher() *reactor.Dispatcher { return m.dispatcher }

// Pool returns the worker pool.
func (m *Mux) Pool() *concurrency.WorkerPool { return m.pool }

// Hooks returns the shutdown registry; callers may add their own hooks.
func (m *Mux) Hooks() *shutdown.Hooks { return m.hooks }

// GetControl returns the Control interface for config, metrics and probes.
func (m *Mux) GetControl() *adapters.ControlAdapter { return m.control }

// Metrics returns the sink every component reports into.
func (m *Mux) Metrics() api.Metrics { return m.metrics }

// Done is closed when the dispatcher loop exits.
func (m *Mux) Done() <-chan struct{} { return m.dispatcher.Done() }

// Close stops watching, uninstalls signal handling and runs every shutdown
// hook. Calling Close more than once is a no-op.
func (m *Mux) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.stopSignals != nil {
		m.stopSignals()
	}
	if m.stopWatch != nil {
		m.stopWatch()
		<-m.watchDone
	}
	return m.hooks.Shutdown()
}

// Shutdown implements api.GracefulShutdown.
func (m *Mux) Shutdown() error { return m.Close() }
