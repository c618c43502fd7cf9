// Package metrics exposes expvar-published counters and gauges used by the
// FlowCore runtime (node computes, propagation, and scheduler). It
// intentionally avoids external dependencies and is consumable through the
// standard /debug/vars endpoint.
package metrics
