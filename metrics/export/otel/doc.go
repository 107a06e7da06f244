// Package otel publishes taskdesk client metrics through an OpenTelemetry Meter.
//
// [NewExporter] registers one Int64ObservableCounter per client counter and one
// Int64ObservableGauge per refresh latency bucket. A single callback reads the
// client snapshot on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate client state.
package otel
