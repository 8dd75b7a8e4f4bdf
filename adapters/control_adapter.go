// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Control adapter implementing api.Control interface using control package primitives.

package adapters

import (
	"github.com/momentics/hioload-mux/api"
	"github.com/momentics/hioload-mux/control"
)

type ControlAdapter struct {
	config  *control.ConfigStore
	metrics *control.MetricsRegistry
	debug   *control.DebugProbes
}

var _ api.Control = (*ControlAdapter)(nil)

func NewControlAdapter(cfg control.Config) *ControlAdapter {
	return &ControlAdapter{
		config:  control.NewConfigStore(cfg),
		metrics: control.NewMetricsRegistry(),
		debug:   control.NewDebugProbes(),
	}
}

func (c *ControlAdapter) GetConfig() control.Config {
	return c.config.Snapshot()
}

func (c *ControlAdapter) SetConfig(cfg control.Config) error {
	return c.config.Update(cfg)
}

func (c *ControlAdapter) Store() *control.ConfigStore {
	return c.config
}

// Metrics is the registry the dispatcher and pool report into.
func (c *ControlAdapter) Metrics() *control.MetricsRegistry {
	return c.metrics
}

func (c *ControlAdapter) Stats() map[string]any {
	stats := c.metrics.GetSnapshot()
	debugStats := c.debug.DumpState()
	combined := make(map[string]any, len(stats)+len(debugStats))
	for k, v := range stats {
		combined[k] = v
	}
	for k, v := range debugStats {
		combined["debug."+k] = v
	}
	return combined
}

func (c *ControlAdapter) OnReload(fn func(control.Config)) {
	c.config.OnReload(fn)
}

func (c *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}
