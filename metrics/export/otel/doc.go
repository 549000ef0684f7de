// Package otel publishes goBankID engine metrics through an OpenTelemetry
// Meter.
//
// [New] registers one Int64ObservableCounter per engine counter and, for the
// collect latency histogram, a cumulative bucket gauge carrying an "le"
// attribute plus a count gauge. A single callback reads the engine snapshot
// on every collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
