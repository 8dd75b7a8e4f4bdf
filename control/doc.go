// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics and debug introspection for the mux.
//
// Provides:
//   - typed Config with TOML loading and a hot-reloadable ConfigStore
//   - api.Metrics implementations: in-memory MetricsRegistry and PrometheusMetrics
//   - DebugProbes for named state probes
package control
