// Package prometheus exposes passport engine metrics through
// prometheus/client_golang.
//
// [Collector] turns each engine snapshot into const metrics on scrape:
// passport_*_total counters, the passport_verify_latency_seconds histogram
// and passport_audit_dropped_total. [Exporter] wraps it in a private
// registry and serves it over HTTP.
//
// # What this package must NOT do
//
//   - Register into the global Prometheus registry.
//   - Mutate engine state.
package prometheus
