// Package internaldefs holds the metric names and bucket layout shared by the
// Prometheus and OpenTelemetry exporters, so both expose identical names.
//
// # What this package must NOT do
//
//   - Import an exporter package.
//   - Perform I/O.
package internaldefs
