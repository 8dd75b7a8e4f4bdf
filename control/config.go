// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Typed runtime configuration: defaults, TOML loading and a thread-safe
// store with hot-reload propagation.

package control

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/momentics/hioload-mux/api"
)

// Duration is a time.Duration that decodes from TOML strings like "10s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DispatcherConfig configures the event dispatcher.
type DispatcherConfig struct {
	Timeout    Duration `toml:"timeout"`
	WatchWrite bool     `toml:"watch_write"`
	CPU        int      `toml:"cpu"`
}

// PoolConfig configures the worker pool.
type PoolConfig struct {
	MinSize           int      `toml:"min_size"`
	MaxSize           int      `toml:"max_size"`
	IdleFreeTime      Duration `toml:"idle_free_time"`
	ManageInterval    Duration `toml:"manage_interval"`
	PopulationManager bool     `toml:"population_manager"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// Config is the full mux configuration.
type Config struct {
	Dispatcher DispatcherConfig `toml:"dispatcher"`
	Pool       PoolConfig       `toml:"pool"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Dispatcher: DispatcherConfig{Timeout: Duration{time.Second}, CPU: -1},
		Pool: PoolConfig{
			MinSize:           2,
			MaxSize:           8,
			IdleFreeTime:      Duration{10 * time.Second},
			ManageInterval:    Duration{100 * time.Millisecond},
			PopulationManager: true,
		},
		Metrics: MetricsConfig{Namespace: "hioload_mux"},
	}
}

// Validate reports every inconsistency in c.
func (c Config) Validate() error {
	var errs []error
	if c.Pool.MinSize < 1 {
		errs = append(errs, fmt.Errorf("pool.min_size %d < 1", c.Pool.MinSize))
	}
	if c.Pool.MaxSize < c.Pool.MinSize {
		errs = append(errs, fmt.Errorf("pool.max_size %d < min_size %d", c.Pool.MaxSize, c.Pool.MinSize))
	}
	if c.Pool.IdleFreeTime.Duration <= 0 {
		errs = append(errs, errors.New("pool.idle_free_time must be positive"))
	}
	if c.Pool.ManageInterval.Duration <= 0 {
		errs = append(errs, errors.New("pool.manage_interval must be positive"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", api.ErrInvalidArgument, errors.Join(errs...))
}

// LoadConfig reads a TOML file on top of DefaultConfig. Unknown keys are an
// error so typos do not silently fall back to defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("load config %s: unknown keys %s: %w",
			path, strings.Join(keys, ", "), api.ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// ConfigStore holds the current Config with atomic snapshot and listener support.
type ConfigStore struct {
	mu        sync.RWMutex
	config    Config
	listeners []func(Config)
}

// NewConfigStore initializes a store with cfg.
func NewConfigStore(cfg Config) *ConfigStore {
	return &ConfigStore{config: cfg}
}

// Snapshot returns the current configuration.
func (cs *ConfigStore) Snapshot() Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.config
}

// Update validates and installs cfg, then notifies listeners synchronously
// in registration order.
func (cs *ConfigStore) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cs.mu.Lock()
	cs.config = cfg
	listeners := append([]func(Config){}, cs.listeners...)
	cs.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
	return nil
}

// Reload loads path and installs it.
func (cs *ConfigStore) Reload(path string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	return cs.Update(cfg)
}

// OnReload registers a listener called after every successful Update.
func (cs *ConfigStore) OnReload(fn func(Config)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
