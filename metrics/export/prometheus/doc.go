// Package prometheus exposes a client's counters as a prometheus.Collector.
//
// Counters are named dashauth_*_total; the request latency histogram is
// dashauth_request_latency_seconds. [Handler] mounts the collector on a private
// registry.
//
// # What this package must NOT do
//
//   - Register into the global Prometheus registry.
//   - Mutate client state.
package prometheus
