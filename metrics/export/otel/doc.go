// Package otel binds passport engine metrics to an OpenTelemetry meter.
//
// Counters become Int64ObservableCounter instruments under the same names the
// Prometheus exporter uses. The verify latency histogram is exposed as one
// cumulative gauge per bucket plus a _count gauge. One callback reads
// [passport.Engine.MetricsSnapshot] per collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
