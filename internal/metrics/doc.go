// Package metrics keeps the engine's counters and latency histograms in
// fixed arrays indexed by MetricID.
//
// Every slot is padded to its own cache line and updated with atomic adds,
// so recording never allocates or locks. Histograms have eight buckets, the
// last one unbounded. [Metrics.Snapshot] copies the current values for the
// exporters under metrics/export.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Import passport or any sibling package.
//   - Register anything globally.
package metrics
