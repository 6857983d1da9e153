// Package metrics provides Prometheus metrics collection for dtftp.
//
// All metrics are optional. If InitRegistry is never called, constructors
// return no-op implementations with zero overhead, so the framework can run
// with or without metrics enabled.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	tftpMetrics := metrics.NewTFTPMetrics()
//	srv, err := server.New(cfg, handler, tftpMetrics)
//
//	// Or pass nil for no-op behavior
//	srv, err := server.New(cfg, handler, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry for all dtftp metrics.
	// Written once under registryOnce, read many.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// Must be called before creating metrics instances. Safe to call multiple
// times; subsequent calls are ignored. If never called, constructors return
// no-op implementations.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry, or nil when metrics
// are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether metrics collection is enabled.
func IsEnabled() bool {
	return GetRegistry() != nil
}
