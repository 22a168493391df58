// Package metrics exposes fire-sentinel counters on a private Prometheus registry.
package metrics
