// Package otel provides OpenTelemetry metric bindings for authkit counters
// and histograms.
//
// [NewOTelExporter] registers Int64ObservableCounter instruments for each
// core metric and Int64ObservableGauge per histogram bucket. A single
// callback reads [authkit.Service.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate service state.
package otel
